// Package document holds a single oversized document and the working state
// built up while it is processed piecewise: cached metadata, the current
// chunk sequence, a result scratchpad and a log of sub-agent calls.
//
// A Context has a single writer. Callers that share one across goroutines
// must serialize access themselves.
package document

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/dgallion1/chunkwise/internal/chunker"
)

// SubCall records one sub-agent reply for a chunk.
type SubCall struct {
	ChunkIndex int    `json:"chunk_index"`
	Query      string `json:"query"`
	Result     string `json:"result"`
}

// Context wraps one document's text and processing state.
type Context struct {
	text string

	metaOnce sync.Once
	meta     Metadata

	chunks   []chunker.Chunk
	results  *ResultStore[Entry]
	subCalls []SubCall
}

// New creates a Context around text. The text is never modified.
func New(text string) *Context {
	return &Context{
		text:    text,
		results: NewResultStore[Entry](),
	}
}

func (c *Context) Text() string {
	return c.text
}

// Len returns the document length in bytes, the unit of all offsets.
func (c *Context) Len() int {
	return len(c.text)
}

// Metadata is computed on first use and cached.
func (c *Context) Metadata() Metadata {
	c.metaOnce.Do(func() {
		c.meta = Analyze(c.text)
	})
	return c.meta
}

// Search returns every match of pattern in document order.
func (c *Context) Search(pattern string) ([]Match, error) {
	return Search(c.text, pattern, 0)
}

// SearchN is Search capped at limit matches.
func (c *Context) SearchN(pattern string, limit int) ([]Match, error) {
	return Search(c.text, pattern, limit)
}

// Section returns text[start:end] with both bounds clamped to the document.
// A bound inside a multi-byte rune moves inward to the nearest rune start.
func (c *Context) Section(start, end int) string {
	start = min(max(start, 0), len(c.text))
	end = min(max(end, 0), len(c.text))
	for start < end && start < len(c.text) && !utf8.RuneStart(c.text[start]) {
		start++
	}
	for end > start && end < len(c.text) && !utf8.RuneStart(c.text[end]) {
		end--
	}
	if start >= end {
		return ""
	}
	return c.text[start:end]
}

// Chunk splits the document and replaces the current chunk sequence. On error
// the previous chunks are kept.
func (c *Context) Chunk(size, overlap int, strategy chunker.Strategy) ([]chunker.Chunk, error) {
	chunks, err := chunker.Split(c.text, chunker.Options{Size: size, Overlap: overlap, Strategy: strategy})
	if err != nil {
		return nil, err
	}
	c.chunks = chunks
	return slices.Clone(chunks), nil
}

// Chunks returns a copy of the current chunk sequence.
func (c *Context) Chunks() []chunker.Chunk {
	return slices.Clone(c.chunks)
}

// FilterChunks returns the chunks for which keep reports true, in their
// original order.
func (c *Context) FilterChunks(keep func(chunker.Chunk) bool) []chunker.Chunk {
	var out []chunker.Chunk
	for _, ch := range c.chunks {
		if keep(ch) {
			out = append(out, ch)
		}
	}
	return out
}

func (c *Context) StoreResult(key string, e Entry) {
	c.results.Store(key, e)
}

func (c *Context) AppendResult(key string, e Entry) {
	c.results.Append(key, e)
}

func (c *Context) Result(key string) (Entry, bool) {
	return c.results.Get(key)
}

func (c *Context) ResultList(key string) []Entry {
	return c.results.List(key)
}

// RecordSubCall logs a sub-agent reply.
func (c *Context) RecordSubCall(chunkIndex int, query, result string) {
	c.subCalls = append(c.subCalls, SubCall{ChunkIndex: chunkIndex, Query: query, Result: result})
}

func (c *Context) SubCalls() []SubCall {
	return slices.Clone(c.subCalls)
}

// KeySummary describes one result-store key.
type KeySummary struct {
	Key   string `json:"key"`
	Shape string `json:"shape"`
}

// StateSummary is a read-only view of a Context for diagnostics.
type StateSummary struct {
	CharCount     int          `json:"char_count"`
	TokenEstimate int          `json:"token_estimate"`
	ChunkCount    int          `json:"chunk_count"`
	SubCallCount  int          `json:"sub_call_count"`
	Keys          []KeySummary `json:"keys"`
}

func (c *Context) StateSummary() StateSummary {
	meta := c.Metadata()
	s := StateSummary{
		CharCount:     meta.CharCount,
		TokenEstimate: meta.TokenEstimate,
		ChunkCount:    len(c.chunks),
		SubCallCount:  len(c.subCalls),
		Keys:          []KeySummary{},
	}
	for _, k := range c.results.Keys() {
		s.Keys = append(s.Keys, KeySummary{Key: k, Shape: c.results.Describe(k, Entry.Shape)})
	}
	return s
}

func (s StateSummary) String() string {
	var sb strings.Builder
	sb.WriteString("State summary:\n")
	fmt.Fprintf(&sb, "- Document length: %d chars (~%d tokens)\n", s.CharCount, s.TokenEstimate)
	fmt.Fprintf(&sb, "- Chunks created: %d\n", s.ChunkCount)
	fmt.Fprintf(&sb, "- Sub-calls made: %d\n", s.SubCallCount)
	sb.WriteString("- Buffer keys:")
	if len(s.Keys) == 0 {
		sb.WriteString(" none\n")
		return sb.String()
	}
	sb.WriteString("\n")
	for _, k := range s.Keys {
		fmt.Fprintf(&sb, "  - %s: %s\n", k.Key, k.Shape)
	}
	return sb.String()
}

// Snapshot is a JSON-safe copy of the state handed to callers that should not
// see the full text.
type Snapshot struct {
	Metadata     Metadata       `json:"metadata"`
	Results      map[string]any `json:"results"`
	ChunkCount   int            `json:"chunk_count"`
	SubCallCount int            `json:"sub_call_count"`
}

func (c *Context) Snapshot() Snapshot {
	results := make(map[string]any, c.results.Len())
	for _, k := range c.results.Keys() {
		if e, ok := c.results.Get(k); ok {
			results[k] = e
			continue
		}
		results[k] = c.results.List(k)
	}
	return Snapshot{
		Metadata:     c.Metadata(),
		Results:      results,
		ChunkCount:   len(c.chunks),
		SubCallCount: len(c.subCalls),
	}
}

package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// breakMargin is how far back from a window edge the uniform strategy
	// looks for a newline or sentence end.
	breakMargin = 200

	// previewRunes is the length of Chunk.Preview.
	previewRunes = 100
)

// HeaderPattern matches markdown ATX header lines. Group 1 is the run of '#'
// characters, group 2 the heading text.
var HeaderPattern = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+(.*)$`)

// blankLinePattern separates paragraphs.
var blankLinePattern = regexp.MustCompile(`\n\s*\n`)

// Chunk is a contiguous slice of a document. Start and End are half-open byte
// offsets into the source text and always fall on rune boundaries.
type Chunk struct {
	Index         int    `json:"index"`
	Start         int    `json:"start"`
	End           int    `json:"end"`
	Content       string `json:"content"`
	TokenEstimate int    `json:"token_estimate"`
	Preview       string `json:"preview"`
}

// Len returns the chunk length in bytes.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Options controls chunking behavior.
type Options struct {
	Size     int      // Target chunk size in bytes. Must be > 0.
	Overlap  int      // Look-back between uniform chunks. 0 <= Overlap < Size.
	Strategy Strategy // Splitting algorithm.
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Size:     50000,
		Overlap:  500,
		Strategy: Uniform,
	}
}

// Validate checks the size, overlap and strategy.
func (o Options) Validate() error {
	if o.Size <= 0 {
		return &ParameterError{Param: "size", Value: o.Size, Reason: "must be greater than zero"}
	}
	if o.Overlap < 0 {
		return &ParameterError{Param: "overlap", Value: o.Overlap, Reason: "must not be negative"}
	}
	if o.Overlap >= o.Size {
		return &ParameterError{Param: "overlap", Value: o.Overlap, Reason: "must be smaller than size"}
	}
	if !o.Strategy.Valid() {
		return &StrategyError{Name: o.Strategy.String()}
	}
	return nil
}

type span struct {
	start, end int
}

// Split divides text into an ordered, gap-free sequence of chunks. Only the
// uniform strategy produces overlapping neighbours.
func Split(text string, opts Options) ([]Chunk, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	var spans []span
	switch opts.Strategy {
	case Uniform:
		spans = uniformSpans(text, opts.Size, opts.Overlap)
	case Paragraph:
		spans = accumulate(paragraphSegments(text), opts.Size)
	case Semantic:
		spans = semanticSpans(text, opts.Size)
	}

	chunks := make([]Chunk, len(spans))
	for i, s := range spans {
		chunks[i] = newChunk(text, i, s.start, s.end)
	}
	return chunks, nil
}

func newChunk(text string, index, start, end int) Chunk {
	content := text[start:end]
	return Chunk{
		Index:         index,
		Start:         start,
		End:           end,
		Content:       content,
		TokenEstimate: EstimateTokens(content),
		Preview:       preview(content),
	}
}

// uniformSpans walks fixed windows across text. Each window is cut at the
// last newline (or ". ") inside the trailing margin when one exists, and the
// next window begins overlap bytes before the cut.
func uniformSpans(text string, size, overlap int) []span {
	n := len(text)
	var spans []span
	start := 0
	for start < n {
		if start+size >= n {
			spans = append(spans, span{start, n})
			break
		}
		end := alignEnd(text, start+size, start+overlap)
		end = naturalBreak(text, start, end, overlap)
		spans = append(spans, span{start, end})

		// end > start+overlap, so the window always advances.
		next := end - overlap
		for next < end && !utf8.RuneStart(text[next]) {
			next++
		}
		start = next
	}
	return spans
}

// alignEnd moves end onto a rune boundary, shrinking the window when that
// keeps it above floor and growing it otherwise.
func alignEnd(text string, end, floor int) int {
	e := end
	for e > floor && e < len(text) && !utf8.RuneStart(text[e]) {
		e--
	}
	if e > floor {
		return e
	}
	e = end
	for e < len(text) && !utf8.RuneStart(text[e]) {
		e++
	}
	return e
}

// naturalBreak returns the cut point closest to end that follows a newline or
// a sentence-ending period. Cuts that would leave the chunk no longer than
// overlap are ignored.
func naturalBreak(text string, start, end, overlap int) int {
	lo := max(end-breakMargin, start+overlap)
	if lo >= end {
		return end
	}
	window := text[lo:end]
	if i := strings.LastIndexByte(window, '\n'); i >= 0 {
		return lo + i + 1
	}
	if i := strings.LastIndex(window, ". "); i >= 0 {
		return lo + i + 2
	}
	return end
}

// paragraphSegments splits text after every blank-line separator so that the
// segments concatenate back to text.
func paragraphSegments(text string) []span {
	var segs []span
	prev := 0
	for _, m := range blankLinePattern.FindAllStringIndex(text, -1) {
		segs = append(segs, span{prev, m[1]})
		prev = m[1]
	}
	if prev < len(text) {
		segs = append(segs, span{prev, len(text)})
	}
	return segs
}

// accumulate packs contiguous segments into spans of at most size bytes. A
// segment larger than size becomes a span of its own.
func accumulate(segs []span, size int) []span {
	var out []span
	cur := span{-1, -1}
	for _, s := range segs {
		switch {
		case cur.start < 0:
			cur = s
		case s.end-cur.start > size:
			out = append(out, cur)
			cur = s
		default:
			cur.end = s.end
		}
	}
	if cur.start >= 0 {
		out = append(out, cur)
	}
	return out
}

type heading struct {
	pos   int
	level int
}

func findHeadings(text string) []heading {
	var hs []heading
	for _, m := range HeaderPattern.FindAllStringSubmatchIndex(text, -1) {
		hs = append(hs, heading{pos: m[0], level: m[3] - m[2]})
	}
	return hs
}

func semanticSpans(text string, size int) []span {
	hs := findHeadings(text)
	if len(hs) == 0 {
		return []span{{0, len(text)}}
	}
	return accumulate(sectionSegments(span{0, len(text)}, hs, size), size)
}

type section struct {
	span
	level int       // 0 for text preceding the first heading
	inner []heading // deeper headings contained in the section
}

// sections groups r into header sections. A section opened by a heading runs
// until the next heading at the same or a shallower level.
func sections(r span, hs []heading) []section {
	var out []section
	if len(hs) == 0 || hs[0].pos > r.start {
		end := r.end
		if len(hs) > 0 {
			end = hs[0].pos
		}
		out = append(out, section{span: span{r.start, end}})
	}
	for _, h := range hs {
		if n := len(out); n > 0 && out[n-1].level > 0 && h.level > out[n-1].level {
			out[n-1].inner = append(out[n-1].inner, h)
			continue
		}
		if n := len(out); n > 0 {
			out[n-1].end = h.pos
		}
		out = append(out, section{span: span{h.pos, r.end}, level: h.level})
	}
	return out
}

// sectionSegments flattens sections, descending into the nested headings of
// any section larger than size.
func sectionSegments(r span, hs []heading, size int) []span {
	var segs []span
	for _, s := range sections(r, hs) {
		if s.end-s.start > size && len(s.inner) > 0 {
			segs = append(segs, sectionSegments(s.span, s.inner, size)...)
			continue
		}
		segs = append(segs, s.span)
	}
	return segs
}

func preview(s string) string {
	n := 0
	for i := range s {
		if n == previewRunes {
			return s[:i]
		}
		n++
	}
	return s
}

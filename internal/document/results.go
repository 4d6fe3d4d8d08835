package document

import (
	"fmt"
	"slices"
	"sort"
)

// ResultStore is a keyed scratchpad for intermediate and aggregated values.
// A key holds either a single value (Store) or an ordered list (Append).
// It is not safe for concurrent use.
type ResultStore[V any] struct {
	slots map[string]*slot[V]
}

type slot[V any] struct {
	value  V
	list   []V
	isList bool
}

func NewResultStore[V any]() *ResultStore[V] {
	return &ResultStore[V]{slots: make(map[string]*slot[V])}
}

// Store sets key to v, replacing whatever was there.
func (s *ResultStore[V]) Store(key string, v V) {
	s.slots[key] = &slot[V]{value: v}
}

// Append adds v to the list under key, creating the list if needed. A single
// value already stored under key becomes the first element.
func (s *ResultStore[V]) Append(key string, v V) {
	sl, ok := s.slots[key]
	switch {
	case !ok:
		s.slots[key] = &slot[V]{list: []V{v}, isList: true}
	case !sl.isList:
		sl.list = []V{sl.value, v}
		sl.isList = true
		var zero V
		sl.value = zero
	default:
		sl.list = append(sl.list, v)
	}
}

// Get returns the single value under key. It reports false for missing keys
// and for keys holding a list.
func (s *ResultStore[V]) Get(key string) (V, bool) {
	sl, ok := s.slots[key]
	if !ok || sl.isList {
		var zero V
		return zero, false
	}
	return sl.value, true
}

// List returns a copy of the values under key. A single value is returned as
// a one-element list.
func (s *ResultStore[V]) List(key string) []V {
	sl, ok := s.slots[key]
	if !ok {
		return nil
	}
	if !sl.isList {
		return []V{sl.value}
	}
	return slices.Clone(sl.list)
}

// Keys returns the stored keys in sorted order.
func (s *ResultStore[V]) Keys() []string {
	keys := make([]string, 0, len(s.slots))
	for k := range s.slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *ResultStore[V]) Len() int {
	return len(s.slots)
}

// Describe summarizes the shape of the value under key using shape for
// single values.
func (s *ResultStore[V]) Describe(key string, shape func(V) string) string {
	sl, ok := s.slots[key]
	switch {
	case !ok:
		return "missing"
	case sl.isList:
		return fmt.Sprintf("list[%d]", len(sl.list))
	default:
		return shape(sl.value)
	}
}

// EntryKind tags the shape of an Entry.
type EntryKind string

const (
	KindText   EntryKind = "text"
	KindNumber EntryKind = "number"
	KindAnswer EntryKind = "answer"
)

// Answer is one chunk's reply as kept in the result store.
type Answer struct {
	ChunkIndex int    `json:"chunk_index"`
	Confidence string `json:"confidence"`
	Answer     string `json:"answer"`
	Evidence   string `json:"evidence,omitempty"`
}

// Entry is the value type of a document's result store.
type Entry struct {
	Kind   EntryKind `json:"kind"`
	Text   string    `json:"text,omitempty"`
	Number float64   `json:"number,omitempty"`
	Answer *Answer   `json:"answer,omitempty"`
}

func TextEntry(s string) Entry {
	return Entry{Kind: KindText, Text: s}
}

func NumberEntry(f float64) Entry {
	return Entry{Kind: KindNumber, Number: f}
}

func AnswerEntry(a Answer) Entry {
	return Entry{Kind: KindAnswer, Answer: &a}
}

// Shape returns a short description such as "text(12 chars)".
func (e Entry) Shape() string {
	switch e.Kind {
	case KindText:
		return fmt.Sprintf("text(%d chars)", len(e.Text))
	case KindNumber:
		return "number"
	case KindAnswer:
		if e.Answer == nil {
			return "answer"
		}
		return fmt.Sprintf("answer(chunk %d, %s)", e.Answer.ChunkIndex, e.Answer.Confidence)
	}
	return string(e.Kind)
}

// Validate checks that the payload matches the kind.
func (e Entry) Validate() error {
	switch e.Kind {
	case KindText, KindNumber:
		return nil
	case KindAnswer:
		if e.Answer == nil {
			return fmt.Errorf("answer entry without answer")
		}
		return nil
	}
	return fmt.Errorf("unknown entry kind %q", e.Kind)
}

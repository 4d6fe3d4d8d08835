package pipeline

import (
	"github.com/dgallion1/chunkwise/internal/chunker"
	"github.com/dgallion1/chunkwise/internal/document"
	"github.com/dgallion1/chunkwise/internal/extract"
)

// BuildTasks creates one task per chunk of doc accepted by keep, in chunk
// order. A nil keep accepts every chunk.
func BuildTasks(doc *document.Context, query string, keep func(chunker.Chunk) bool) []extract.Task {
	chunks := doc.Chunks()
	tasks := make([]extract.Task, 0, len(chunks))
	for _, c := range chunks {
		if keep != nil && !keep(c) {
			continue
		}
		tasks = append(tasks, extract.Task{
			Query:       query,
			ChunkIndex:  c.Index,
			TotalChunks: len(chunks),
			Start:       c.Start,
			End:         c.End,
			TotalChars:  doc.Len(),
			Content:     c.Content,
		})
	}
	return tasks
}

// nearMatches keeps chunks that overlap at least one match.
func nearMatches(matches []document.Match) func(chunker.Chunk) bool {
	return func(c chunker.Chunk) bool {
		for _, m := range matches {
			if m.Start < c.End && c.Start < max(m.End, m.Start+1) {
				return true
			}
		}
		return false
	}
}

func both(a, b func(chunker.Chunk) bool) func(chunker.Chunk) bool {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(c chunker.Chunk) bool { return a(c) && b(c) }
}

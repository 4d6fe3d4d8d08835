package extract

import "fmt"

// Task is the unit of work handed to a sub-agent: one query against one
// chunk. Start, End and TotalChars are byte offsets into the full document.
type Task struct {
	Query       string `json:"query"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	TotalChars  int    `json:"total_chars"`
	Content     string `json:"content"`
}

// Position describes where the chunk sits in the document. Chunk numbers are
// shown 1-based.
func (t Task) Position() string {
	return fmt.Sprintf("chunk %d of %d, characters %d-%d of %d",
		t.ChunkIndex+1, t.TotalChunks, t.Start, t.End, t.TotalChars)
}

func (t Task) Prompt() string {
	return BuildChunkPrompt(t)
}

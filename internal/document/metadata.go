package document

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/chunkwise/internal/chunker"
)

const (
	previewRunes   = 500
	maxHeaderLines = 10
)

// Metadata summarizes the size and structure of a document.
type Metadata struct {
	CharCount      int      `json:"char_count"`
	ByteCount      int      `json:"byte_count"`
	WordCount      int      `json:"word_count"`
	LineCount      int      `json:"line_count"`
	TokenEstimate  int      `json:"token_estimate"`
	HeaderCount    int      `json:"header_count"`
	HeadersPreview []string `json:"headers_preview"`
	Head           string   `json:"first_500_chars"`
	Tail           string   `json:"last_500_chars"`
}

// Analyze computes Metadata for text. An empty text yields zero counts.
func Analyze(text string) Metadata {
	chars := utf8.RuneCountInString(text)
	meta := Metadata{
		CharCount:      chars,
		ByteCount:      len(text),
		WordCount:      len(strings.Fields(text)),
		TokenEstimate:  chars / 4,
		HeadersPreview: []string{},
		Head:           headRunes(text, previewRunes),
		Tail:           tailRunes(text, previewRunes),
	}
	if text != "" {
		meta.LineCount = strings.Count(text, "\n") + 1
	}

	for _, m := range chunker.HeaderPattern.FindAllStringIndex(text, -1) {
		meta.HeaderCount++
		if len(meta.HeadersPreview) < maxHeaderLines {
			meta.HeadersPreview = append(meta.HeadersPreview, strings.TrimRight(text[m[0]:m[1]], " \t\r"))
		}
	}
	return meta
}

func headRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func tailRunes(s string, n int) string {
	i := len(s)
	for count := 0; count < n && i > 0; count++ {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return s[i:]
}

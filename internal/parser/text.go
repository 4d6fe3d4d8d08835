package parser

import (
	"io"
)

// TextParser handles plain text files. The text is kept as is apart from
// UTF-8 repair and line-ending normalization.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &Document{
		Title:  stem(filename),
		Format: "text",
		Text:   cleanText(string(data)),
	}, nil
}

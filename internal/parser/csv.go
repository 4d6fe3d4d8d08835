package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/chunkwise/internal/doctree"
)

// csvBatchRows is how many data rows share one section.
const csvBatchRows = 20

// CSVParser handles CSV files. Rows are rendered as "header: value" lines
// under one section per batch of rows.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: stem(filename), Children: rowSections(records)}

	return &Document{
		Title:    tree.Title,
		Format:   "csv",
		Text:     cleanText(tree.Render()),
		Sections: tree.Sections(),
	}, nil
}

// rowSections renders records, whose first row is the header, as one level-2
// section per batch of data rows.
func rowSections(records [][]string) []*doctree.DocNode {
	if len(records) == 0 {
		return nil
	}
	headers := records[0]
	dataRows := records[1:]

	var nodes []*doctree.DocNode
	for i := 0; i < len(dataRows); i += csvBatchRows {
		end := min(i+csvBatchRows, len(dataRows))

		var text strings.Builder
		text.WriteString("Columns: " + strings.Join(headers, ", ") + "\n")
		for _, row := range dataRows[i:end] {
			text.WriteString(formatRow(headers, row))
			text.WriteByte('\n')
		}
		nodes = append(nodes, &doctree.DocNode{
			Title: fmt.Sprintf("Rows %d-%d", i+2, end+1), // 1-indexed, header is row 1
			Level: 2,
			Text:  text.String(),
		})
	}
	return nodes
}

func formatRow(headers, row []string) string {
	cells := make([]string, len(row))
	for j, cell := range row {
		if j < len(headers) && headers[j] != "" {
			cells[j] = headers[j] + ": " + cell
		} else {
			cells[j] = cell
		}
	}
	return strings.Join(cells, ", ")
}

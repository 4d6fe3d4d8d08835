package parser

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/shakinm/xlsReader/xls/structure"
	"github.com/xuri/excelize/v2"

	"github.com/dgallion1/chunkwise/internal/doctree"
)

// XLSXParser handles Excel workbooks. Each sheet becomes a top-level section
// whose rows are rendered like CSV rows. Formula cells carry their formula.
type XLSXParser struct{}

func (p *XLSXParser) Parse(r io.Reader, filename string) (*Document, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	tree := &doctree.DocTree{Title: stem(filename)}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		// GetRows drops trailing empty cells, so formulas without a cached
		// value are looked up across the header width too.
		width := len(rows[0])
		for i, row := range rows {
			for j := 0; j < max(width, len(row)); j++ {
				cell, _ := excelize.CoordinatesToCellName(j+1, i+1)
				formula, _ := f.GetCellFormula(sheet, cell)
				if formula == "" {
					continue
				}
				for len(row) <= j {
					row = append(row, "")
				}
				row[j] = withFormula(row[j], formula)
			}
			rows[i] = row
		}
		tree.Children = append(tree.Children, sheetNode(sheet, rows))
	}
	return spreadsheetDocument(tree, "xlsx"), nil
}

func withFormula(val, formula string) string {
	if val == "" {
		return "f=" + formula
	}
	return val + " (f=" + formula + ")"
}

// XLSParser handles legacy binary Excel workbooks.
type XLSParser struct{}

func (p *XLSParser) Parse(r io.Reader, filename string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read xls: %w", err)
	}
	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}

	tree := &doctree.DocTree{Title: stem(filename)}
	for i := 0; i < wb.GetNumberSheets(); i++ {
		sheet, err := wb.GetSheet(i)
		if err != nil || sheet == nil {
			continue
		}
		var rows [][]string
		for _, row := range sheet.GetRows() {
			rows = append(rows, xlsValues(row.GetCols()))
		}
		if len(rows) == 0 {
			continue
		}
		tree.Children = append(tree.Children, sheetNode(sheet.GetName(), rows))
	}
	return spreadsheetDocument(tree, "xls"), nil
}

func xlsValues(cols []structure.CellData) []string {
	out := make([]string, 0, len(cols))
	for _, col := range cols {
		val := col.GetString()
		if val == "" {
			if num := col.GetFloat64(); num != 0 {
				val = strconv.FormatFloat(num, 'f', -1, 64)
			} else if n := col.GetInt64(); n != 0 {
				val = strconv.FormatInt(n, 10)
			}
		}
		out = append(out, val)
	}
	return out
}

func sheetNode(name string, rows [][]string) *doctree.DocNode {
	node := &doctree.DocNode{Title: name, Level: 1, Children: rowSections(rows)}
	if len(rows) == 1 {
		node.Text = "Columns: " + strings.Join(rows[0], ", ")
	}
	return node
}

func spreadsheetDocument(tree *doctree.DocTree, format string) *Document {
	return &Document{
		Title:    tree.Title,
		Format:   format,
		Text:     cleanText(tree.Render()),
		Sections: tree.Sections(),
	}
}

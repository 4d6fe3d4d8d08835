package parser

import (
	"fmt"
	"strings"
	"testing"
)

func TestCSVParser_RowsRenderedUnderSections(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("name,score\n")
	for i := range 25 {
		fmt.Fprintf(&sb, "user%d,%d\n", i, i*10)
	}

	p := &CSVParser{}
	doc, err := p.Parse(strings.NewReader(sb.String()), "scores.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "scores" {
		t.Errorf("expected title %q, got %q", "scores", doc.Title)
	}
	if doc.Sections != 2 {
		t.Fatalf("expected 2 row sections, got %d", doc.Sections)
	}
	for _, want := range []string{
		"## Rows 2-21\n\nColumns: name, score\nname: user0, score: 0\n",
		"## Rows 22-26",
		"name: user24, score: 240",
	} {
		if !strings.Contains(doc.Text, want) {
			t.Errorf("expected text to contain %q", want)
		}
	}
}

func TestCSVParser_RaggedRows(t *testing.T) {
	p := &CSVParser{}
	doc, err := p.Parse(strings.NewReader("a,b\n1,2,3\n4\n"), "ragged.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(doc.Text, "a: 1, b: 2, 3\na: 4\n") {
		t.Errorf("unexpected text %q", doc.Text)
	}
}

func TestCSVParser_EmptyInput(t *testing.T) {
	p := &CSVParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Text != "" {
		t.Errorf("expected empty text, got %q", doc.Text)
	}
}

package doctree

import "testing"

func TestRender_HeadingsAndBlocks(t *testing.T) {
	tree := &DocTree{
		Title: "Report",
		Children: []*DocNode{
			{Text: "Preamble."},
			{Title: "Results", Level: 1, Text: "Revenue grew.", Children: []*DocNode{
				{Title: "Q4", Text: "Strong  quarter."},
			}},
			{Title: "  Multi\nline   title ", Level: 3},
		},
	}

	want := "Preamble.\n\n# Results\n\nRevenue grew.\n\n## Q4\n\nStrong  quarter.\n\n### Multi line title\n"
	if got := tree.Render(); got != want {
		t.Errorf("render mismatch:\n got %q\nwant %q", got, want)
	}
	if n := tree.Sections(); n != 3 {
		t.Errorf("expected 3 sections, got %d", n)
	}
}

func TestRender_LevelCappedAtSix(t *testing.T) {
	tree := &DocTree{Children: []*DocNode{{Title: "Deep", Level: 9}}}
	if got := tree.Render(); got != "###### Deep\n" {
		t.Errorf("unexpected render %q", got)
	}
}

func TestRender_Empty(t *testing.T) {
	tree := &DocTree{Title: "empty", Children: []*DocNode{{Text: "   "}}}
	if got := tree.Render(); got != "" {
		t.Errorf("expected empty render, got %q", got)
	}
}

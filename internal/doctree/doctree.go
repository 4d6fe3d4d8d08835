// Package doctree is the intermediate heading tree built by the structured
// loaders before it is flattened to engine text.
package doctree

import (
	"strings"
)

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for untitled text)
	Level    int        // Source heading level 1-6, 0 to derive from depth
	Text     string     // Body text of this node
	Page     int        // Source page (0 if N/A)
	Children []*DocNode // Subsections
}

// Render flattens the tree to text. Headings become markdown ATX lines at
// their source level and blocks are separated by blank lines.
func (t *DocTree) Render() string {
	var sb strings.Builder
	block := func(s string) {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(s)
	}

	var walk func(nodes []*DocNode, depth int)
	walk = func(nodes []*DocNode, depth int) {
		for _, n := range nodes {
			if title := strings.Join(strings.Fields(n.Title), " "); title != "" {
				level := n.Level
				if level <= 0 {
					level = depth
				}
				block(strings.Repeat("#", min(level, 6)) + " " + title)
			}
			if text := strings.TrimSpace(n.Text); text != "" {
				block(text)
			}
			walk(n.Children, depth+1)
		}
	}
	walk(t.Children, 1)

	if sb.Len() > 0 {
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Sections counts titled nodes in the tree.
func (t *DocTree) Sections() int {
	n := 0
	var walk func(nodes []*DocNode)
	walk = func(nodes []*DocNode) {
		for _, c := range nodes {
			if c.Title != "" {
				n++
			}
			walk(c.Children)
		}
	}
	walk(t.Children)
	return n
}

package parser

import (
	"strings"

	"github.com/dgallion1/chunkwise/internal/doctree"
)

// treeBuilder assembles a heading tree from a flat stream of headings and
// text blocks. A heading nests under the nearest preceding heading with a
// lower level.
type treeBuilder struct {
	root  *doctree.DocNode
	stack []*doctree.DocNode
	buf   strings.Builder
}

func newTreeBuilder() *treeBuilder {
	root := &doctree.DocNode{}
	return &treeBuilder{root: root, stack: []*doctree.DocNode{root}}
}

func (b *treeBuilder) flush() {
	t := strings.TrimSpace(b.buf.String())
	b.buf.Reset()
	if t == "" {
		return
	}
	top := b.stack[len(b.stack)-1]
	if top == b.root {
		// Text before the first heading is kept as an untitled node so it
		// renders ahead of the first section.
		top.Children = append(top.Children, &doctree.DocNode{Text: t})
		return
	}
	if top.Text != "" {
		top.Text += "\n\n"
	}
	top.Text += t
}

func (b *treeBuilder) heading(title string, level int) {
	if title == "" {
		return
	}
	b.flush()
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].Level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	node := &doctree.DocNode{Title: title, Level: level}
	parent := b.stack[len(b.stack)-1]
	parent.Children = append(parent.Children, node)
	b.stack = append(b.stack, node)
}

func (b *treeBuilder) text(t string) {
	if t == "" {
		return
	}
	if b.buf.Len() > 0 {
		b.buf.WriteString("\n\n")
	}
	b.buf.WriteString(t)
}

func (b *treeBuilder) finish() []*doctree.DocNode {
	b.flush()
	return b.root.Children
}

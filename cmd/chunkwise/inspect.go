package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/chunkwise/internal/document"
	"github.com/dgallion1/chunkwise/internal/pipeline"
)

func newInspectCmd(opts *globalOptions) *cobra.Command {
	var archetype string

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Report document size and structure",
		Long: `Report size, header outline and the first and last characters of a
document, plus the chunking plan an archetype would use on it.

Examples:
  chunkwise inspect notes.md
  chunkwise inspect report.pdf --archetype summarization --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, opts)
			if err != nil {
				return err
			}
			a, err := pipeline.ParseArchetype(archetype)
			if err != nil {
				return err
			}
			return runInspect(e, args[0], a)
		},
	}

	cmd.Flags().StringVarP(&archetype, "archetype", "a", pipeline.NeedleSearch.String(), "Task archetype for the suggested plan")

	return cmd
}

type inspectResult struct {
	Title    string                `json:"title"`
	Format   string                `json:"format"`
	Metadata document.Metadata     `json:"metadata"`
	Plan     pipeline.Plan         `json:"plan"`
	State    document.StateSummary `json:"state"`
}

func runInspect(e *env, path string, a pipeline.Archetype) error {
	parsed, doc, err := e.load(path)
	if err != nil {
		return err
	}
	res := inspectResult{
		Title:    parsed.Title,
		Format:   parsed.Format,
		Metadata: doc.Metadata(),
		Plan:     e.planner.Plan(a),
		State:    doc.StateSummary(),
	}
	if e.json {
		return e.writeJSON(res)
	}

	m := res.Metadata
	e.printf("%s (%s)\n", res.Title, res.Format)
	e.printf("  characters: %d (%d bytes)\n", m.CharCount, m.ByteCount)
	e.printf("  words:      %d\n", m.WordCount)
	e.printf("  lines:      %d\n", m.LineCount)
	e.printf("  tokens:     ~%d\n", m.TokenEstimate)
	e.printf("  headers:    %d\n", m.HeaderCount)
	for _, h := range m.HeadersPreview {
		e.printf("    %s\n", h)
	}
	e.printf("\nPlan for %s: %s chunks of %d (overlap %d)\n", res.Plan.Archetype, res.Plan.Strategy, res.Plan.ChunkSize, res.Plan.Overlap)
	for _, step := range res.Plan.Approach {
		e.printf("  - %s\n", step)
	}
	if m.CharCount > 0 {
		e.printf("\nStart:\n%s\n", indent(m.Head))
		if m.Tail != m.Head {
			e.printf("\nEnd:\n%s\n", indent(m.Tail))
		}
	}
	return nil
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n  ")
}

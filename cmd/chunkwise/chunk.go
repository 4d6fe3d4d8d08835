package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/chunkwise/internal/chunker"
	"github.com/dgallion1/chunkwise/internal/pipeline"
)

// chunkOptions holds CLI flags for chunk selection, shared by chunk, tasks
// and query.
type chunkOptions struct {
	size      int
	overlap   int
	strategy  string
	archetype string
}

func (o *chunkOptions) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.size, "size", 0, "Chunk size in bytes (default: archetype plan)")
	cmd.Flags().IntVar(&o.overlap, "overlap", -1, "Overlap between uniform chunks (default: archetype plan)")
	cmd.Flags().StringVar(&o.strategy, "strategy", "", "Chunking strategy: uniform, paragraph, semantic (default: archetype plan)")
	cmd.Flags().StringVarP(&o.archetype, "archetype", "a", pipeline.NeedleSearch.String(), "Task archetype: "+archetypeNames())
}

// plan resolves the archetype plan with any explicit flags applied on top.
func (o *chunkOptions) plan(e *env) (pipeline.Plan, error) {
	a, err := pipeline.ParseArchetype(o.archetype)
	if err != nil {
		return pipeline.Plan{}, err
	}
	plan := e.planner.Plan(a)
	if o.strategy != "" {
		s, err := chunker.ParseStrategy(o.strategy)
		if err != nil {
			return plan, err
		}
		if s != plan.Strategy && o.overlap < 0 {
			plan.Overlap = 0
			if s == chunker.Uniform {
				plan.Overlap = min(e.cfg.DefaultChunkOverlap, plan.ChunkSize/10)
			}
		}
		plan.Strategy = s
	}
	if o.size > 0 {
		plan.ChunkSize = o.size
		if o.overlap < 0 && plan.Overlap >= plan.ChunkSize {
			plan.Overlap = plan.ChunkSize / 10
		}
	}
	if o.overlap >= 0 {
		plan.Overlap = o.overlap
	}
	return plan, plan.Options().Validate()
}

func archetypeNames() string {
	var names []string
	for _, a := range pipeline.Archetypes() {
		names = append(names, a.String())
	}
	return strings.Join(names, ", ")
}

func newChunkCmd(opts *globalOptions) *cobra.Command {
	var co chunkOptions

	cmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Split a document and list the chunks",
		Long: `Split a document with the archetype's plan, or with explicit size,
overlap and strategy, and list each chunk's offsets, token estimate and
preview.

Examples:
  chunkwise chunk book.md --archetype summarization
  chunkwise chunk notes.txt --strategy paragraph --size 4000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, opts)
			if err != nil {
				return err
			}
			plan, err := co.plan(e)
			if err != nil {
				return err
			}
			return runChunk(e, args[0], plan)
		},
	}

	co.register(cmd)

	return cmd
}

func runChunk(e *env, path string, plan pipeline.Plan) error {
	_, doc, err := e.load(path)
	if err != nil {
		return err
	}
	chunks, err := doc.Chunk(plan.ChunkSize, plan.Overlap, plan.Strategy)
	if err != nil {
		return err
	}
	if e.json {
		return e.writeJSON(map[string]any{
			"plan":   plan,
			"chunks": chunks,
		})
	}

	e.printf("%d %s chunks (size %d, overlap %d)\n\n", len(chunks), plan.Strategy, plan.ChunkSize, plan.Overlap)
	for _, c := range chunks {
		e.printf("#%-4d %8d-%-8d ~%-6d tokens  %s\n", c.Index+1, c.Start, c.End, c.TokenEstimate, oneLine(c.Preview, 60))
	}
	return nil
}

// oneLine collapses whitespace and cuts s to n runes.
func oneLine(s string, n int) string {
	r := []rune(collapse(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

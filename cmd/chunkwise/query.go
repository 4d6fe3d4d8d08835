package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/chunkwise/internal/chunker"
	"github.com/dgallion1/chunkwise/internal/document"
	"github.com/dgallion1/chunkwise/internal/extract"
	"github.com/dgallion1/chunkwise/internal/pipeline"
)

// newAgent builds the sub-agent used by query. Tests replace it.
var newAgent = func(e *env) (pipeline.Agent, error) {
	if e.cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for query")
	}
	return extract.NewClaudeClient(e.cfg.AnthropicAPIKey, e.cfg.AnthropicModel), nil
}

// queryOptions holds CLI flags shared by tasks and query.
type queryOptions struct {
	chunkOptions
	pattern  string
	contains string
}

func (o *queryOptions) register(cmd *cobra.Command) {
	o.chunkOptions.register(cmd)
	cmd.Flags().StringVarP(&o.pattern, "pattern", "p", "", "Only process chunks near matches of this regex (search-first archetypes)")
	cmd.Flags().StringVar(&o.contains, "contains", "", "Only process chunks containing this text")
}

// prepare loads and chunks the document and builds the request.
func (o *queryOptions) prepare(e *env, path, query string) (*document.Context, pipeline.Request, error) {
	plan, err := o.plan(e)
	if err != nil {
		return nil, pipeline.Request{}, err
	}
	_, doc, err := e.load(path)
	if err != nil {
		return nil, pipeline.Request{}, err
	}
	if _, err := doc.Chunk(plan.ChunkSize, plan.Overlap, plan.Strategy); err != nil {
		return nil, pipeline.Request{}, err
	}
	req := plan.Request(query, o.pattern)
	if o.contains != "" {
		req.Filter = func(c chunker.Chunk) bool { return strings.Contains(c.Content, o.contains) }
	}
	return doc, req, nil
}

func newTasksCmd(opts *globalOptions) *cobra.Command {
	var qo queryOptions

	cmd := &cobra.Command{
		Use:   "tasks <file> <query>",
		Short: "Print the sub-agent prompts a query would send",
		Long: `Build one sub-agent task per selected chunk and print its prompt
without calling any model. Useful for checking chunking and prompts, or
for feeding the batch to another runner with --json.

Examples:
  chunkwise tasks report.pdf "When was the contract signed?"
  chunkwise tasks report.pdf "revenue" --pattern "(?i)revenue" --json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, opts)
			if err != nil {
				return err
			}
			return runTasks(e, args[0], strings.Join(args[1:], " "), qo)
		},
	}

	qo.register(cmd)

	return cmd
}

func runTasks(e *env, path, query string, qo queryOptions) error {
	doc, req, err := qo.prepare(e, path, query)
	if err != nil {
		return err
	}
	orch := pipeline.NewOrchestrator(nil, nil, e.planner, 0, e.log)
	tasks, err := orch.Tasks(doc, req)
	if err != nil {
		return err
	}
	if e.json {
		if tasks == nil {
			tasks = []extract.Task{}
		}
		return e.writeJSON(tasks)
	}

	for i, t := range tasks {
		if i > 0 {
			e.printf("\n%s\n\n", strings.Repeat("=", 72))
		}
		e.printf("%s\n", t.Prompt())
	}
	e.printf("\n%d tasks\n", len(tasks))
	return nil
}

func newQueryCmd(opts *globalOptions) *cobra.Command {
	var (
		qo          queryOptions
		synthesize  bool
		concurrency int
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query <file> <query>",
		Short: "Ask a question across every chunk with Claude sub-agents",
		Long: `Fan a question out to one Claude sub-agent per chunk, wait for the
whole batch, and fold the confidence-tagged answers. Conflicting answers
at the winning confidence level are all shown. With --synthesize the
answers are reconciled by one more model call.

Requires ANTHROPIC_API_KEY.

Examples:
  chunkwise query contract.pdf "What is the termination notice period?"
  chunkwise query book.md "Summarize the plot" --archetype summarization --synthesize`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd, opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") {
				e.cfg.MaxConcurrentExtract = concurrency
			}
			if cmd.Flags().Changed("timeout") {
				e.cfg.BatchTimeout = timeout
			}
			return runQuery(cmd.Context(), e, args[0], strings.Join(args[1:], " "), qo, synthesize)
		},
	}

	qo.register(cmd)
	cmd.Flags().BoolVar(&synthesize, "synthesize", false, "Reconcile the answers with one more model call")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 5, "Maximum concurrent sub-agent calls (default: $MAX_CONCURRENT_EXTRACT)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Batch timeout, 0 for none (default: $BATCH_TIMEOUT)")

	return cmd
}

type queryResult struct {
	Outcome   pipeline.Outcome `json:"outcome"`
	Answer    string           `json:"answer"`
	Synthesis *extract.Final   `json:"synthesis,omitempty"`
}

func runQuery(ctx context.Context, e *env, path, query string, qo queryOptions, synthesize bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	doc, req, err := qo.prepare(e, path, query)
	if err != nil {
		return err
	}
	agent, err := newAgent(e)
	if err != nil {
		return err
	}
	if c, ok := agent.(interface{ Close() }); ok {
		defer c.Close()
	}

	pool := pipeline.NewAgentPool(agent, e.cfg.MaxConcurrentExtract, e.log)
	orch := pipeline.NewOrchestrator(pool, agent, e.planner, e.cfg.BatchTimeout, e.log)
	out, err := orch.Run(ctx, doc, req)
	if err != nil {
		return err
	}

	res := queryResult{Outcome: out, Answer: out.Text()}
	if synthesize {
		final, err := orch.Synthesize(ctx, doc, query, out)
		if err != nil {
			return err
		}
		res.Synthesis = &final
	}
	if e.json {
		return e.writeJSON(res)
	}

	e.printf("%s\n", res.Answer)
	if res.Synthesis != nil {
		e.printf("\nSynthesis (%s", res.Synthesis.Confidence)
		if res.Synthesis.Coverage != "" {
			e.printf(", coverage %s", res.Synthesis.Coverage)
		}
		e.printf("):\n%s\n", res.Synthesis.Answer)
	}
	e.log.Info("query complete", "state", doc.StateSummary().String())
	return nil
}

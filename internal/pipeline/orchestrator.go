package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgallion1/chunkwise/internal/chunker"
	"github.com/dgallion1/chunkwise/internal/document"
	"github.com/dgallion1/chunkwise/internal/extract"
)

// Result store keys written by the orchestrator.
const (
	KeyChunkAnswers = "chunk_answers"
	KeyFinalAnswer  = "final_answer"
	KeySynthesis    = "synthesis"
)

var (
	ErrEmptyQuery = errors.New("query is empty")
	ErrNoChunks   = errors.New("document has not been chunked")
	ErrNoAgent    = errors.New("no agent configured for synthesis")
)

// Request is one query against a chunked document.
type Request struct {
	Query string

	// Pattern, when set, narrows the batch to chunks overlapping a match.
	// If nothing matches every chunk is processed.
	Pattern string

	// Filter further restricts the chunks processed. Nil keeps all.
	Filter func(chunker.Chunk) bool
}

// Orchestrator turns a chunked document and a query into a batch of
// sub-agent tasks and folds the replies.
type Orchestrator struct {
	exec    Executor
	agent   Agent
	planner atomic.Pointer[Planner]
	timeout time.Duration
	log     *slog.Logger
}

// NewOrchestrator creates an orchestrator. agent is only used by Synthesize
// and may be nil. A zero timeout leaves batches bounded by the caller's
// context alone.
func NewOrchestrator(exec Executor, agent Agent, planner *Planner, timeout time.Duration, log *slog.Logger) *Orchestrator {
	if planner == nil {
		planner = NewPlanner()
	}
	o := &Orchestrator{
		exec:    exec,
		agent:   agent,
		timeout: timeout,
		log:     log,
	}
	o.planner.Store(planner)
	return o
}

func (o *Orchestrator) Planner() *Planner {
	return o.planner.Load()
}

// SetPlanner swaps the plans used by later calls.
func (o *Orchestrator) SetPlanner(p *Planner) {
	o.planner.Store(p)
}

// Prepare chunks doc using the plan for archetype a.
func (o *Orchestrator) Prepare(doc *document.Context, a Archetype) ([]chunker.Chunk, Plan, error) {
	plan := o.Planner().Plan(a)
	chunks, err := doc.Chunk(plan.ChunkSize, plan.Overlap, plan.Strategy)
	if err != nil {
		return nil, plan, fmt.Errorf("chunk for %s: %w", a, err)
	}
	return chunks, plan, nil
}

// Tasks builds the batch Run would submit for req without submitting it.
func (o *Orchestrator) Tasks(doc *document.Context, req Request) ([]extract.Task, error) {
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	if doc.Len() > 0 && len(doc.Chunks()) == 0 {
		return nil, ErrNoChunks
	}
	keep := req.Filter
	if req.Pattern != "" {
		matches, err := doc.Search(req.Pattern)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			keep = both(keep, nearMatches(matches))
		}
	}
	return BuildTasks(doc, req.Query, keep), nil
}

// Run submits one task per selected chunk as a single batch, waits for the
// whole batch, and aggregates the replies. Every reply is logged as a
// sub-call and appended under KeyChunkAnswers; the rendered outcome is
// stored under KeyFinalAnswer.
//
// The caller must not touch doc while Run is in progress.
func (o *Orchestrator) Run(ctx context.Context, doc *document.Context, req Request) (Outcome, error) {
	tasks, err := o.Tasks(doc, req)
	if err != nil {
		return Outcome{}, err
	}
	log := o.log.With("tasks", len(tasks))
	if len(tasks) == 0 {
		out := Aggregate(nil)
		doc.StoreResult(KeyFinalAnswer, document.TextEntry(out.Text()))
		return out, nil
	}

	bctx, cancel := ctx, context.CancelFunc(func() {})
	if o.timeout > 0 {
		bctx, cancel = context.WithTimeout(ctx, o.timeout)
	}
	defer cancel()

	started := time.Now()
	replies, execErr := o.exec.Execute(bctx, tasks)
	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}
	incomplete := errors.Is(bctx.Err(), context.DeadlineExceeded)
	if execErr != nil && !incomplete {
		log.Warn("executor error", "error", execErr)
	}
	replies = Align(tasks, replies)

	for _, r := range replies {
		raw := r.Raw
		if r.Err != nil {
			raw = "error: " + r.Err.Error()
		}
		doc.RecordSubCall(r.ChunkIndex, req.Query, raw)
		doc.AppendResult(KeyChunkAnswers, document.AnswerEntry(document.Answer{
			ChunkIndex: r.ChunkIndex,
			Confidence: r.Confidence.String(),
			Answer:     r.Answer,
			Evidence:   r.Evidence,
		}))
	}

	out := Aggregate(replies)
	out.Incomplete = incomplete
	doc.StoreResult(KeyFinalAnswer, document.TextEntry(out.Text()))

	log.Info("batch complete",
		"status", out.Status,
		"tier", out.Tier,
		"found", out.Found,
		"failed", out.Failed,
		"incomplete", incomplete,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return out, nil
}

// Synthesize asks the agent to reconcile every found reply into one answer
// and stores it under KeySynthesis. An outcome with nothing found is returned
// as NOT_FOUND without calling the agent.
func (o *Orchestrator) Synthesize(ctx context.Context, doc *document.Context, query string, out Outcome) (extract.Final, error) {
	if out.Status == StatusNotFound {
		return extract.Final{Answer: out.Text(), Confidence: extract.NotFound}, nil
	}
	if o.agent == nil {
		return extract.Final{}, ErrNoAgent
	}
	raw, err := o.agent.Complete(ctx, extract.BuildAggregationPrompt(query, out.Replies))
	if err != nil {
		return extract.Final{}, fmt.Errorf("synthesize: %w", err)
	}
	final := extract.ParseFinal(raw)
	doc.StoreResult(KeySynthesis, document.TextEntry(final.Answer))
	return final, nil
}

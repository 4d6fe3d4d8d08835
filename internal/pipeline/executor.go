package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/chunkwise/internal/extract"
)

// ErrMissingReply marks a task the executor returned no reply for.
var ErrMissingReply = errors.New("executor returned no reply for chunk")

// Executor runs a batch of independent tasks and returns once every task has
// a reply or ctx is done. Replies may come back in any order.
type Executor interface {
	Execute(ctx context.Context, tasks []extract.Task) ([]extract.Reply, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, tasks []extract.Task) ([]extract.Reply, error)

func (f ExecutorFunc) Execute(ctx context.Context, tasks []extract.Task) ([]extract.Reply, error) {
	return f(ctx, tasks)
}

// Agent answers one prompt.
type Agent interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AgentPool is an Executor that sends each task's prompt to an Agent with
// bounded concurrency.
type AgentPool struct {
	agent       Agent
	limit       int
	maxAttempts int
	backoff     func(attempt int) time.Duration
	log         *slog.Logger
}

func NewAgentPool(agent Agent, limit int, log *slog.Logger) *AgentPool {
	return &AgentPool{
		agent:       agent,
		limit:       max(limit, 1),
		maxAttempts: MaxAttempts,
		backoff:     Backoff,
		log:         log,
	}
}

// Execute fans tasks out and blocks until all of them finish. Failed tasks
// yield NOT_FOUND replies with Err set. When ctx ends first, tasks that had
// not replied are recorded as NOT_FOUND and ctx's error is returned with the
// full reply slice.
func (p *AgentPool) Execute(ctx context.Context, tasks []extract.Task) ([]extract.Reply, error) {
	replies := make([]extract.Reply, len(tasks))
	var g errgroup.Group
	g.SetLimit(p.limit)

	for i, t := range tasks {
		if ctx.Err() != nil {
			replies[i] = extract.NotFoundReply(t.ChunkIndex, ctx.Err())
			continue
		}
		g.Go(func() error {
			replies[i] = p.run(ctx, t)
			return nil
		})
	}
	g.Wait()
	return replies, ctx.Err()
}

func (p *AgentPool) run(ctx context.Context, t extract.Task) extract.Reply {
	log := p.log.With("chunk", t.ChunkIndex)
	prompt := t.Prompt()

	var lastErr error
	for attempt := range p.maxAttempts {
		raw, err := p.agent.Complete(ctx, prompt)
		if err == nil {
			return extract.Sanitize(extract.ParseReply(t.ChunkIndex, raw))
		}
		lastErr = err
		if !IsRetryable(err) || attempt == p.maxAttempts-1 {
			break
		}
		log.Warn("retryable agent error", "attempt", attempt, "error", err)
		select {
		case <-time.After(p.backoff(attempt)):
		case <-ctx.Done():
			return extract.NotFoundReply(t.ChunkIndex, ctx.Err())
		}
	}
	if ctx.Err() != nil {
		// The agent's own error may not wrap the deadline.
		return extract.NotFoundReply(t.ChunkIndex, ctx.Err())
	}
	log.Error("agent call failed", "error", lastErr)
	return extract.NotFoundReply(t.ChunkIndex, lastErr)
}

// Align returns exactly one reply per task, in task order. Replies are
// matched by chunk index; tasks without a reply become NOT_FOUND with
// ErrMissingReply, and replies for unknown chunks are dropped.
func Align(tasks []extract.Task, replies []extract.Reply) []extract.Reply {
	byChunk := make(map[int]extract.Reply, len(replies))
	for _, r := range replies {
		if _, seen := byChunk[r.ChunkIndex]; !seen {
			byChunk[r.ChunkIndex] = r
		}
	}
	out := make([]extract.Reply, len(tasks))
	for i, t := range tasks {
		r, ok := byChunk[t.ChunkIndex]
		if !ok {
			r = extract.NotFoundReply(t.ChunkIndex, ErrMissingReply)
		}
		out[i] = r
	}
	return out
}

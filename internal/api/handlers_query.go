package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dgallion1/chunkwise/internal/chunker"
	"github.com/dgallion1/chunkwise/internal/document"
	"github.com/dgallion1/chunkwise/internal/extract"
	"github.com/dgallion1/chunkwise/internal/pipeline"
)

// defaultSearchLimit caps matches returned when the request sets no limit.
const defaultSearchLimit = 100

type searchRequest struct {
	Pattern string `json:"pattern"`
	Limit   int    `json:"limit"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Pattern == "" {
		writeError(w, badRequest("pattern is required"))
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultSearchLimit
	}

	var matches []document.Match
	err := sess.Do(func(doc *document.Context) (err error) {
		matches, err = doc.SearchN(req.Pattern, req.Limit)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if matches == nil {
		matches = []document.Match{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pattern": req.Pattern,
		"count":   len(matches),
		"matches": matches,
	})
}

// chunkSummary is a chunk without its content. Content is read through the
// section endpoint.
type chunkSummary struct {
	Index         int    `json:"index"`
	Start         int    `json:"start"`
	End           int    `json:"end"`
	TokenEstimate int    `json:"token_estimate"`
	Preview       string `json:"preview"`
}

func summarize(chunks []chunker.Chunk) []chunkSummary {
	out := make([]chunkSummary, len(chunks))
	for i, c := range chunks {
		out[i] = chunkSummary{
			Index:         c.Index,
			Start:         c.Start,
			End:           c.End,
			TokenEstimate: c.TokenEstimate,
			Preview:       c.Preview,
		}
	}
	return out
}

type chunkRequest struct {
	Size      int    `json:"size"`
	Overlap   *int   `json:"overlap"`
	Strategy  string `json:"strategy"`
	Archetype string `json:"archetype"`
}

// handleChunk replaces the session's chunk sequence. Either an archetype
// (its plan picks the parameters) or explicit size/overlap/strategy may be
// given; unset fields fall back to the configured defaults.
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req chunkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	var (
		chunks []chunker.Chunk
		plan   *pipeline.Plan
		opts   chunker.Options
		err    error
	)
	if req.Archetype != "" {
		a, perr := pipeline.ParseArchetype(req.Archetype)
		if perr != nil {
			writeError(w, perr)
			return
		}
		err = sess.Do(func(doc *document.Context) error {
			c, p, err := s.orchestrator.Prepare(doc, a)
			chunks, plan, opts = c, &p, p.Options()
			return err
		})
	} else {
		opts, err = s.chunkOptions(req)
		if err != nil {
			writeError(w, err)
			return
		}
		err = sess.Do(func(doc *document.Context) (err error) {
			chunks, err = doc.Chunk(opts.Size, opts.Overlap, opts.Strategy)
			return err
		})
	}
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"strategy": opts.Strategy,
		"size":     opts.Size,
		"overlap":  opts.Overlap,
		"count":    len(chunks),
		"chunks":   summarize(chunks),
	}
	if plan != nil {
		resp["plan"] = plan
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) chunkOptions(req chunkRequest) (chunker.Options, error) {
	opts := chunker.Options{Size: req.Size, Strategy: chunker.Uniform}
	if req.Strategy != "" {
		strategy, err := chunker.ParseStrategy(req.Strategy)
		if err != nil {
			return opts, err
		}
		opts.Strategy = strategy
	}
	if opts.Size == 0 {
		opts.Size = s.cfg.DefaultChunkSize
	}
	switch {
	case req.Overlap != nil:
		opts.Overlap = *req.Overlap
	case opts.Strategy == chunker.Uniform:
		opts.Overlap = min(s.cfg.DefaultChunkOverlap, max(opts.Size-1, 0))
	}
	return opts, nil
}

// handleListChunks lists the current chunks, optionally only those whose
// content contains a substring.
func (s *Server) handleListChunks(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	contains := r.URL.Query().Get("contains")

	var chunks []chunker.Chunk
	sess.Do(func(doc *document.Context) error {
		if contains == "" {
			chunks = doc.Chunks()
			return nil
		}
		chunks = doc.FilterChunks(func(c chunker.Chunk) bool {
			return strings.Contains(c.Content, contains)
		})
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(chunks),
		"chunks": summarize(chunks),
	})
}

type queryRequest struct {
	Query      string `json:"query"`
	Archetype  string `json:"archetype"`
	Pattern    string `json:"pattern"`
	Synthesize bool   `json:"synthesize"`
}

type queryResponse struct {
	Outcome        pipeline.Outcome `json:"outcome"`
	Answer         string           `json:"answer"`
	Synthesis      *extract.Final   `json:"synthesis,omitempty"`
	SynthesisError string           `json:"synthesis_error,omitempty"`
}

// handleQuery runs one sub-agent batch over the session's chunks. With an
// archetype the document is first re-chunked under that archetype's plan;
// without one the existing chunks are used, or the needle-search plan when
// the document has not been chunked yet.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, pipeline.ErrEmptyQuery)
		return
	}

	archetype := pipeline.NeedleSearch
	if req.Archetype != "" {
		a, err := pipeline.ParseArchetype(req.Archetype)
		if err != nil {
			writeError(w, err)
			return
		}
		archetype = a
	}
	log := s.log.With("session_id", sess.ID, "archetype", archetype.String())

	var resp queryResponse
	err := sess.Do(func(doc *document.Context) error {
		plan := s.orchestrator.Planner().Plan(archetype)
		if req.Archetype != "" || (doc.Len() > 0 && len(doc.Chunks()) == 0) {
			_, p, err := s.orchestrator.Prepare(doc, archetype)
			if err != nil {
				return err
			}
			plan = p
		}

		out, err := s.orchestrator.Run(r.Context(), doc, plan.Request(req.Query, req.Pattern))
		if err != nil {
			return err
		}
		sess.CountQuery()
		resp.Outcome = out
		resp.Answer = out.Text()

		if req.Synthesize {
			final, err := s.orchestrator.Synthesize(r.Context(), doc, req.Query, out)
			switch {
			case errors.Is(err, pipeline.ErrNoAgent):
				resp.SynthesisError = err.Error()
			case err != nil:
				log.Warn("synthesis failed", "error", err)
				resp.SynthesisError = err.Error()
			default:
				resp.Synthesis = &final
			}
		}
		return nil
	})
	if err != nil {
		log.Warn("query failed", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgallion1/chunkwise/internal/extract"
)

// Status is the overall result of aggregating a batch.
type Status string

const (
	StatusAnswered Status = "answered"
	StatusConflict Status = "conflict"
	StatusNotFound Status = "not_found"
)

// Finding is one distinct answer and the chunks that gave it.
type Finding struct {
	Answer   string   `json:"answer"`
	Evidence []string `json:"evidence"`
	Chunks   []int    `json:"chunks"`
}

// Outcome is the folded result of one batch.
type Outcome struct {
	Status   Status             `json:"status"`
	Tier     extract.Confidence `json:"tier"`
	Findings []Finding          `json:"answers"`

	Tasks  int `json:"tasks"`
	Found  int `json:"found"`
	Failed int `json:"failed"`

	// TimedOut counts the failed tasks cut off by the batch deadline.
	TimedOut int `json:"timed_out"`

	// Incomplete is set when the batch timed out before every task replied.
	Incomplete bool `json:"incomplete"`

	// Replies holds every found reply, across all tiers, in chunk order.
	Replies []extract.Reply `json:"-"`
}

// Aggregate folds a batch of replies into one outcome. NOT_FOUND replies are
// discarded, the highest non-empty confidence tier is selected, and
// equivalent answers inside it are merged. More than one distinct answer in
// the selected tier is reported as a conflict carrying every answer.
func Aggregate(replies []extract.Reply) Outcome {
	out := Outcome{Status: StatusNotFound, Tasks: len(replies), Findings: []Finding{}}

	sorted := slices.Clone(replies)
	slices.SortStableFunc(sorted, func(a, b extract.Reply) int {
		return a.ChunkIndex - b.ChunkIndex
	})

	for _, r := range sorted {
		if r.Err != nil {
			out.Failed++
			if errors.Is(r.Err, context.DeadlineExceeded) {
				out.TimedOut++
			}
		}
		if !r.Found() {
			continue
		}
		out.Found++
		out.Replies = append(out.Replies, r)
		out.Tier = max(out.Tier, r.Confidence)
	}
	if out.Found == 0 {
		return out
	}

	index := make(map[string]int)
	for _, r := range out.Replies {
		if r.Confidence != out.Tier {
			continue
		}
		key := normalizeAnswer(r.Answer)
		i, ok := index[key]
		if !ok {
			i = len(out.Findings)
			index[key] = i
			out.Findings = append(out.Findings, Finding{Answer: strings.TrimSpace(r.Answer), Evidence: []string{}})
		}
		f := &out.Findings[i]
		f.Chunks = append(f.Chunks, r.ChunkIndex)
		if r.Evidence != "" && !slices.Contains(f.Evidence, r.Evidence) {
			f.Evidence = append(f.Evidence, r.Evidence)
		}
	}

	out.Status = StatusAnswered
	if len(out.Findings) > 1 {
		out.Status = StatusConflict
	}
	return out
}

// normalizeAnswer folds case, whitespace runs and trailing punctuation so
// that trivially different renderings of one answer compare equal.
func normalizeAnswer(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	return strings.TrimRight(s, ".,;:!? ")
}

// Answer returns the selected answer when there is exactly one.
func (o Outcome) Answer() (string, bool) {
	if o.Status != StatusAnswered {
		return "", false
	}
	return o.Findings[0].Answer, true
}

// Text renders the outcome for display and for the result store.
func (o Outcome) Text() string {
	var sb strings.Builder
	switch o.Status {
	case StatusNotFound:
		sb.WriteString("No answer found in the document.")
	case StatusAnswered:
		sb.WriteString(o.Findings[0].Answer)
	case StatusConflict:
		fmt.Fprintf(&sb, "Conflicting %s-confidence answers:", o.Tier)
		for _, f := range o.Findings {
			fmt.Fprintf(&sb, "\n- %s (chunks %s)", f.Answer, chunkList(f.Chunks))
			for _, e := range f.Evidence {
				fmt.Fprintf(&sb, "\n  evidence: %s", e)
			}
		}
	}
	if o.Incomplete {
		fmt.Fprintf(&sb, "\n(insufficient results: %d of %d chunks replied before the batch timed out)",
			o.Tasks-o.TimedOut, o.Tasks)
	}
	return sb.String()
}

func chunkList(idx []int) string {
	parts := make([]string, len(idx))
	for i, n := range idx {
		parts[i] = fmt.Sprint(n + 1)
	}
	return strings.Join(parts, ", ")
}

package pipeline

import (
	"fmt"
	"strings"

	"github.com/dgallion1/chunkwise/internal/chunker"
)

// Archetype classifies a query by the processing approach it needs.
type Archetype int

const (
	NeedleSearch Archetype = iota
	Summarization
	MultiHopQA
	Aggregation
	Comparison
)

func Archetypes() []Archetype {
	return []Archetype{NeedleSearch, Summarization, MultiHopQA, Aggregation, Comparison}
}

func (a Archetype) String() string {
	switch a {
	case NeedleSearch:
		return "needle_search"
	case Summarization:
		return "summarization"
	case MultiHopQA:
		return "multi_hop_qa"
	case Aggregation:
		return "aggregation"
	case Comparison:
		return "comparison"
	}
	return fmt.Sprintf("archetype(%d)", int(a))
}

func (a Archetype) Valid() bool {
	return a >= NeedleSearch && a <= Comparison
}

// ArchetypeError reports an unknown archetype name.
type ArchetypeError struct {
	Name string
}

func (e *ArchetypeError) Error() string {
	return fmt.Sprintf("unknown query archetype %q", e.Name)
}

// ParseArchetype accepts the canonical names and their hyphenated forms.
func ParseArchetype(name string) (Archetype, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for _, a := range Archetypes() {
		if a.String() == key {
			return a, nil
		}
	}
	switch key {
	case "needle", "search":
		return NeedleSearch, nil
	case "summary", "summarize":
		return Summarization, nil
	case "multi_hop", "multihop":
		return MultiHopQA, nil
	case "compare":
		return Comparison, nil
	}
	return 0, &ArchetypeError{Name: name}
}

func (a Archetype) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Archetype) UnmarshalText(b []byte) error {
	v, err := ParseArchetype(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

const uniformOverlap = 500

// Plan is the suggested chunking configuration for an archetype.
type Plan struct {
	Archetype   Archetype        `json:"archetype"`
	Description string           `json:"description"`
	Strategy    chunker.Strategy `json:"strategy"`
	ChunkSize   int              `json:"chunk_size"`
	Overlap     int              `json:"overlap"`
	Approach    []string         `json:"approach"`

	// SearchFirst narrows the batch to chunks around pattern matches when the
	// request carries a pattern.
	SearchFirst bool `json:"search_first"`
}

// Options returns the chunker options for the plan.
func (p Plan) Options() chunker.Options {
	return chunker.Options{Size: p.ChunkSize, Overlap: p.Overlap, Strategy: p.Strategy}
}

// Request builds a query under the plan. Plans that must see every chunk
// drop the pattern.
func (p Plan) Request(query, pattern string) Request {
	if !p.SearchFirst {
		pattern = ""
	}
	return Request{Query: query, Pattern: pattern}
}

// Plan returns the built-in plan for a. Sizes are suggestions; a Planner may
// override them.
func (a Archetype) Plan() Plan {
	switch a {
	case Summarization:
		return Plan{
			Archetype:   a,
			Description: "Summarize a large document",
			Strategy:    chunker.Semantic,
			ChunkSize:   40000,
			Approach: []string{
				"Chunk on header boundaries",
				"Summarize each section independently",
				"Merge section summaries into one overall summary",
			},
		}
	case MultiHopQA:
		return Plan{
			Archetype:   a,
			Description: "Answer questions that need several pieces of information",
			Strategy:    chunker.Semantic,
			ChunkSize:   40000,
			Approach: []string{
				"Chunk on header boundaries",
				"Identify the chunks holding relevant facts",
				"Answer from the relevant chunks only",
				"Check that the combined answer is coherent",
			},
		}
	case Aggregation:
		return Plan{
			Archetype:   a,
			Description: "Count, list, or aggregate items across the document",
			Strategy:    chunker.Uniform,
			ChunkSize:   50000,
			Overlap:     uniformOverlap,
			Approach: []string{
				"Chunk uniformly",
				"Extract or count items per chunk",
				"Sum counts, merge lists and remove duplicates",
			},
		}
	case Comparison:
		return Plan{
			Archetype:   a,
			Description: "Compare entities or concepts across the document",
			Strategy:    chunker.Semantic,
			ChunkSize:   30000,
			Approach: []string{
				"Identify the entities to compare",
				"Extract attributes for each entity per chunk",
				"Build a comparison from the collected attributes",
			},
		}
	default:
		return Plan{
			Archetype:   NeedleSearch,
			Description: "Find specific information in a large document",
			Strategy:    chunker.Uniform,
			ChunkSize:   50000,
			Overlap:     uniformOverlap,
			SearchFirst: true,
			Approach: []string{
				"Search for keywords from the query",
				"Process only chunks around the matches when there are any",
				"Otherwise process every chunk",
				"Prefer the highest-confidence match",
			},
		}
	}
}

// PlanFor returns the built-in plan for name, falling back to needle search
// for names it does not recognize.
func PlanFor(name string) Plan {
	a, err := ParseArchetype(name)
	if err != nil {
		return NeedleSearch.Plan()
	}
	return a.Plan()
}

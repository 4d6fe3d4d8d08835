package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/chunkwise/internal/chunker"
)

// Planner resolves archetypes to plans, applying any configured overrides to
// the built-in table.
type Planner struct {
	plans map[Archetype]Plan
}

func NewPlanner() *Planner {
	p := &Planner{plans: make(map[Archetype]Plan)}
	for _, a := range Archetypes() {
		p.plans[a] = a.Plan()
	}
	return p
}

type planOverride struct {
	Strategy    string `yaml:"strategy"`
	ChunkSize   int    `yaml:"chunk_size"`
	Overlap     *int   `yaml:"overlap"`
	SearchFirst *bool  `yaml:"search_first"`
}

type planFile struct {
	Plans map[string]planOverride `yaml:"plans"`
}

// LoadPlanner reads plan overrides from a YAML file. An empty path yields the
// built-in plans.
//
//	plans:
//	  needle_search:
//	    chunk_size: 20000
//	    overlap: 200
//	  comparison:
//	    strategy: paragraph
func LoadPlanner(path string) (*Planner, error) {
	if path == "" {
		return NewPlanner(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plans: %w", err)
	}
	p, err := ParsePlans(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParsePlans builds a Planner from YAML override data.
func ParsePlans(data []byte) (*Planner, error) {
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}

	p := NewPlanner()
	for name, o := range f.Plans {
		a, err := ParseArchetype(name)
		if err != nil {
			return nil, err
		}
		plan := p.plans[a]
		if o.Strategy != "" {
			s, err := chunker.ParseStrategy(o.Strategy)
			if err != nil {
				return nil, fmt.Errorf("plan %s: %w", a, err)
			}
			if s != plan.Strategy && o.Overlap == nil {
				plan.Overlap = 0
				if s == chunker.Uniform {
					plan.Overlap = uniformOverlap
				}
			}
			plan.Strategy = s
		}
		if o.ChunkSize != 0 {
			plan.ChunkSize = o.ChunkSize
		}
		if o.Overlap != nil {
			plan.Overlap = *o.Overlap
		}
		if o.SearchFirst != nil {
			plan.SearchFirst = *o.SearchFirst
		}
		if err := plan.Options().Validate(); err != nil {
			return nil, fmt.Errorf("plan %s: %w", a, err)
		}
		p.plans[a] = plan
	}
	return p, nil
}

func (p *Planner) Plan(a Archetype) Plan {
	if plan, ok := p.plans[a]; ok {
		return plan
	}
	return p.plans[NeedleSearch]
}

// PlanFor resolves name, falling back to the needle-search plan.
func (p *Planner) PlanFor(name string) Plan {
	a, err := ParseArchetype(name)
	if err != nil {
		return p.plans[NeedleSearch]
	}
	return p.plans[a]
}

// Plans returns every plan in archetype order.
func (p *Planner) Plans() []Plan {
	out := make([]Plan, 0, len(p.plans))
	for _, a := range Archetypes() {
		out = append(out, p.plans[a])
	}
	return out
}

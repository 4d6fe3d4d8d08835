package chunker

import (
	"fmt"
	"strings"
)

// Strategy selects the splitting algorithm used by Split.
type Strategy int

const (
	// Uniform cuts fixed-size windows with overlap, nudged to natural breaks.
	Uniform Strategy = iota
	// Paragraph packs blank-line separated paragraphs up to the size budget.
	Paragraph
	// Semantic packs markdown header sections up to the size budget.
	Semantic
)

var strategyNames = [...]string{
	Uniform:   "uniform",
	Paragraph: "paragraph",
	Semantic:  "semantic",
}

// Strategies lists every supported strategy in declaration order.
func Strategies() []Strategy {
	return []Strategy{Uniform, Paragraph, Semantic}
}

func (s Strategy) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// Valid reports whether s is one of the declared strategies.
func (s Strategy) Valid() bool {
	return s >= Uniform && int(s) < len(strategyNames)
}

// ParseStrategy maps a strategy name to its Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "uniform":
		return Uniform, nil
	case "paragraph":
		return Paragraph, nil
	case "semantic":
		return Semantic, nil
	}
	return 0, &StrategyError{Name: name}
}

func (s Strategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, &StrategyError{Name: s.String()}
	}
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(b []byte) error {
	parsed, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

package chunker

import "fmt"

// ParameterError reports a chunk size or overlap outside its allowed range.
type ParameterError struct {
	Param  string
	Value  int
	Reason string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid %s %d: %s", e.Param, e.Value, e.Reason)
}

// StrategyError reports a strategy name or value that is not supported.
type StrategyError struct {
	Name string
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("unknown chunking strategy %q (want uniform, paragraph or semantic)", e.Name)
}

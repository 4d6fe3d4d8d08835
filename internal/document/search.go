package document

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// contextBytes is how much surrounding text a Match carries on each side.
	contextBytes = 50

	patternCacheSize = 256
)

// patternCache holds compiled expressions keyed by their source.
var patternCache, _ = lru.New[string, *regexp.Regexp](patternCacheSize)

// Match is a single regular-expression hit.
type Match struct {
	Text    string   `json:"match"`
	Start   int      `json:"start"`
	End     int      `json:"end"`
	Groups  []string `json:"groups,omitempty"`
	Context string   `json:"context"`
}

// PatternError reports a search pattern that does not compile.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid search pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &PatternError{Pattern: pattern, Err: err}
	}
	patternCache.Add(pattern, re)
	return re, nil
}

// Search scans text left to right and returns non-overlapping matches in
// ascending start order. A limit <= 0 returns every match.
func Search(text, pattern string, limit int) ([]Match, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	n := -1
	if limit > 0 {
		n = limit
	}

	locs := re.FindAllStringSubmatchIndex(text, n)
	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		m := Match{
			Text:    text[loc[0]:loc[1]],
			Start:   loc[0],
			End:     loc[1],
			Context: window(text, loc[0], loc[1]),
		}
		for g := 2; g+1 < len(loc); g += 2 {
			if loc[g] < 0 {
				m.Groups = append(m.Groups, "")
				continue
			}
			m.Groups = append(m.Groups, text[loc[g]:loc[g+1]])
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// window returns text around [start, end) clamped to the document and to
// rune boundaries.
func window(text string, start, end int) string {
	lo := max(0, start-contextBytes)
	hi := min(len(text), end+contextBytes)
	for lo < start && !utf8.RuneStart(text[lo]) {
		lo++
	}
	for hi > end && hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi--
	}
	return text[lo:hi]
}

package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// NotFoundAnswer is the sentinel a sub-agent returns when its chunk does not
// answer the query.
const NotFoundAnswer = "NOT_FOUND_IN_CHUNK"

const (
	maxAnswerRunes   = 2000
	maxEvidenceRunes = 500
)

// Confidence is the sub-agent's self-reported certainty. The zero value means
// the chunk did not contain an answer.
type Confidence int

const (
	NotFound Confidence = iota
	Low
	Medium
	High
)

func (c Confidence) String() string {
	switch c {
	case Low:
		return "LOW"
	case Medium:
		return "MEDIUM"
	case High:
		return "HIGH"
	}
	return "NOT_FOUND"
}

// ParseConfidence reads a confidence label such as "HIGH" or "[medium]".
func ParseConfidence(s string) (Confidence, bool) {
	s = strings.ToUpper(strings.Trim(strings.TrimSpace(s), "[]*`. "))
	switch {
	case s == "HIGH":
		return High, true
	case s == "MEDIUM" || s == "MED":
		return Medium, true
	case s == "LOW":
		return Low, true
	case s == "NOT_FOUND" || s == "NONE" || s == NotFoundAnswer:
		return NotFound, true
	}
	return NotFound, false
}

func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Confidence) UnmarshalText(b []byte) error {
	v, ok := ParseConfidence(string(b))
	if !ok {
		return fmt.Errorf("unknown confidence %q", b)
	}
	*c = v
	return nil
}

// Reply is one sub-agent's answer for one chunk.
type Reply struct {
	ChunkIndex int        `json:"chunk_index"`
	Confidence Confidence `json:"confidence"`
	Answer     string     `json:"answer"`
	Evidence   string     `json:"evidence,omitempty"`
	Raw        string     `json:"-"`
	Err        error      `json:"-"`
}

// Found reports whether the reply carries a usable answer.
func (r Reply) Found() bool {
	return r.Err == nil && r.Confidence != NotFound
}

// NotFoundReply is the reply recorded for a chunk that produced no answer,
// either because the agent said so or because the call failed.
func NotFoundReply(chunkIndex int, err error) Reply {
	return Reply{ChunkIndex: chunkIndex, Confidence: NotFound, Answer: NotFoundAnswer, Err: err}
}

var fieldLine = regexp.MustCompile(`^\s*[*_#]*\s*([A-Za-z]+)\s*[*_]*\s*:\s*[*_]*\s*(.*)$`)

// parseFields reads "NAME: value" blocks from a response. Lines that do not
// start a known field continue the previous one.
func parseFields(raw string, names ...string) map[string]string {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	fields := make(map[string]string)
	cur := ""
	for _, line := range strings.Split(stripCodeBlock(raw), "\n") {
		if m := fieldLine.FindStringSubmatch(line); m != nil {
			if name := strings.ToUpper(m[1]); known[name] {
				cur = name
				fields[cur] = strings.TrimSpace(m[2])
				continue
			}
		}
		if cur != "" {
			fields[cur] += "\n" + line
		}
	}
	for k, v := range fields {
		fields[k] = strings.TrimSpace(v)
	}
	return fields
}

// ParseReply interprets a sub-agent response in the
// CONFIDENCE / ANSWER / EVIDENCE format. A response without an ANSWER line
// is taken as the answer itself. An explicit NOT_FOUND confidence marks the
// chunk as not found whatever the answer says. A real answer with a missing
// or unreadable confidence counts as LOW.
func ParseReply(chunkIndex int, raw string) Reply {
	r := Reply{ChunkIndex: chunkIndex, Raw: raw}
	fields := parseFields(raw, "CONFIDENCE", "ANSWER", "EVIDENCE")

	answer, ok := fields["ANSWER"]
	if !ok && len(fields) == 0 {
		answer = strings.TrimSpace(stripCodeBlock(raw))
	}
	r.Evidence = fields["EVIDENCE"]

	conf, ok := ParseConfidence(fields["CONFIDENCE"])
	if answer == "" || (ok && conf == NotFound) || strings.Contains(strings.ToUpper(answer), NotFoundAnswer) {
		r.Answer = NotFoundAnswer
		r.Confidence = NotFound
		return r
	}
	r.Answer = answer

	if !ok {
		conf = Low
	}
	r.Confidence = conf
	return r
}

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|override|` +
		`new\s+instructions)`,
)

// Sanitize bounds the answer and evidence lengths and downgrades answers that
// look like instructions rather than content to LOW confidence.
func Sanitize(r Reply) Reply {
	if !r.Found() {
		return r
	}
	r.Answer = truncateRunes(strings.TrimSpace(r.Answer), maxAnswerRunes)
	r.Evidence = truncateRunes(strings.TrimSpace(r.Evidence), maxEvidenceRunes)
	if injectionPattern.MatchString(r.Answer) {
		r.Confidence = Low
	}
	return r
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

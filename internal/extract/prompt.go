package extract

import (
	"fmt"
	"strings"
)

const SubAgentPrompt = `You are a sub-agent processing one chunk of a larger document. A parent agent is coordinating the overall task and will combine your reply with replies for the other chunks.

Rules:
- Use ONLY the chunk provided below
- Answer the specific question given
- Be concise
- If the chunk does not answer the question, reply ` + NotFoundAnswer + `
- Include a confidence level (HIGH, MEDIUM or LOW) with your answer`

const replyFormat = `Respond in exactly this format:
CONFIDENCE: [HIGH/MEDIUM/LOW]
ANSWER: [your answer or ` + NotFoundAnswer + `]
EVIDENCE: [brief quote or reference from the chunk, if any]`

const AggregationPrompt = `You have received replies from sub-agents, each covering a different chunk of one document. Resolve conflicts by preferring HIGH confidence over LOW, synthesize one coherent answer, and note anything that was not found in any chunk.`

const finalFormat = `Respond in exactly this format:
FINAL: [synthesized answer]
CONFIDENCE: [HIGH/MEDIUM/LOW]
COVERAGE: [how much of the question the chunks could answer]`

// BuildChunkPrompt creates the full sub-agent prompt for a task, including
// the chunk's position in the document.
func BuildChunkPrompt(t Task) string {
	var sb strings.Builder
	sb.WriteString(SubAgentPrompt)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Task: %s\n", t.Query)
	fmt.Fprintf(&sb, "Position: %s\n", t.Position())
	sb.WriteString("---\n")
	sb.WriteString(t.Content)
	sb.WriteString("\n---\n\n")
	sb.WriteString(replyFormat)
	return sb.String()
}

// BuildAggregationPrompt asks an agent to reconcile the found replies for
// query.
func BuildAggregationPrompt(query string, replies []Reply) string {
	var sb strings.Builder
	sb.WriteString(AggregationPrompt)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Original query: %s\n", query)
	fmt.Fprintf(&sb, "Replies received: %d\n", len(replies))
	for _, r := range replies {
		fmt.Fprintf(&sb, "\n### Chunk %d\n", r.ChunkIndex+1)
		fmt.Fprintf(&sb, "CONFIDENCE: %s\n", r.Confidence)
		fmt.Fprintf(&sb, "ANSWER: %s\n", r.Answer)
		if r.Evidence != "" {
			fmt.Fprintf(&sb, "EVIDENCE: %s\n", r.Evidence)
		}
	}
	sb.WriteString("\n")
	sb.WriteString(finalFormat)
	return sb.String()
}

// Final is a parsed aggregation response.
type Final struct {
	Answer     string     `json:"answer"`
	Confidence Confidence `json:"confidence"`
	Coverage   string     `json:"coverage,omitempty"`
}

// ParseFinal reads a FINAL / CONFIDENCE / COVERAGE response. A response with
// no FINAL line is returned whole as the answer.
func ParseFinal(raw string) Final {
	fields := parseFields(raw, "FINAL", "CONFIDENCE", "COVERAGE")
	f := Final{Answer: fields["FINAL"], Coverage: fields["COVERAGE"]}
	if _, ok := fields["FINAL"]; !ok {
		f.Answer = strings.TrimSpace(stripCodeBlock(raw))
	}
	f.Confidence, _ = ParseConfidence(fields["CONFIDENCE"])
	return f
}

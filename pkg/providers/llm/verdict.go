package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	pkgllm "github.com/lokutor-ai/boardroom-runtime/pkg/llm"
)

// parseVerdict extracts the JSON verdict object BuildEvaluationPrompt asks
// the model to return, tolerating a model that wraps it in prose or a
// fenced code block.
func parseVerdict(raw string) (pkgllm.Verdict, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return pkgllm.Verdict{}, fmt.Errorf("no JSON object found in verdict response: %q", raw)
	}

	var parsed struct {
		Verdict   string `json:"verdict"`
		Reasoning string `json:"reasoning"`
		FollowUp  string `json:"follow_up"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return pkgllm.Verdict{}, fmt.Errorf("parsing verdict JSON: %w", err)
	}

	kind := pkgllm.VerdictKind(strings.ToUpper(strings.TrimSpace(parsed.Verdict)))
	switch kind {
	case pkgllm.VerdictSatisfied, pkgllm.VerdictFollowUp, pkgllm.VerdictEscalate:
	default:
		kind = pkgllm.VerdictSatisfied
	}

	return pkgllm.Verdict{Verdict: kind, Reasoning: parsed.Reasoning, FollowUp: parsed.FollowUp}, nil
}

package llm

import (
	"encoding/json"
	"strings"

	"github.com/quietridge/copilot-core/coreerr"
)

// repairJSON implements §4.11 step 7: strict parse, then a fenced-code-block
// strip, then a first-bracket-to-last-bracket slice, in that order, each
// retried against out. Raises BadModelOutput carrying the raw text if none
// of the three attempts parse.
func repairJSON(raw string, out any) error {
	if json.Unmarshal([]byte(raw), out) == nil {
		return nil
	}

	stripped := stripCodeFence(raw)
	if stripped != raw && json.Unmarshal([]byte(stripped), out) == nil {
		return nil
	}

	if sliced, ok := sliceOutermostBrackets(stripped); ok && json.Unmarshal([]byte(sliced), out) == nil {
		return nil
	}

	return coreerr.New(coreerr.BadModelOutput, "model output could not be parsed as JSON").WithRaw(raw)
}

func stripCodeFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

func sliceOutermostBrackets(s string) (string, bool) {
	openers := "{["
	closers := "}]"
	start := strings.IndexAny(s, openers)
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexAny(s, closers)
	if end < 0 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSONResponse decodes JSON produced by a language model into out,
// tolerating a surrounding markdown code fence.
func ParseJSONResponse(text string, out any) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("empty response")
	}

	// Strip markdown code fences
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines)
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		text = strings.Join(lines[1:endIdx], "\n")
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("parsing response as JSON: %w", err)
	}
	return nil
}

package llm

import (
	"encoding/json"
	"strings"
)

// DecodeJSON unmarshals a model completion into target. Models sometimes
// wrap JSON in a markdown code fence or surround it with prose, so the
// content is trimmed to its outermost JSON object first. A completion with
// no decodable object fails with ErrMalformedOutput.
func DecodeJSON(content string, target any) error {
	trimmed := extractJSON(content)
	if trimmed == "" {
		return &Error{
			Code:    ErrMalformedOutput,
			Message: "completion contained no JSON object",
		}
	}
	if err := json.Unmarshal([]byte(trimmed), target); err != nil {
		return &Error{
			Code:    ErrMalformedOutput,
			Message: "completion JSON did not match expected shape: " + err.Error(),
		}
	}
	return nil
}

func extractJSON(content string) string {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

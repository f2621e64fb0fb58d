package heartbeat

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrInvalidReply is returned when an AI reply cannot be parsed as the
// expected per-agent actions map, even after lenient recovery.
var ErrInvalidReply = errors.New("heartbeat: invalid AI reply")

// ParseResponse parses a model reply into a map of agent id to its
// actions payload. Models occasionally wrap JSON in prose or a fenced
// code block; ParseResponse tries a direct decode first, then recovers
// the largest brace-delimited substring before giving up.
func ParseResponse(text string) (map[string]any, error) {
	if parsed, ok := tryDecode(text); ok {
		return parsed, nil
	}
	if extracted := extractJSONObject(text); extracted != "" {
		if parsed, ok := tryDecode(extracted); ok {
			return parsed, nil
		}
	}
	return nil, ErrInvalidReply
}

func tryDecode(s string) (map[string]any, bool) {
	s = strings.TrimSpace(s)
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, false
	}
	return out, true
}

// extractJSONObject returns the text between the first '{' and the
// matching final '}', stripping any surrounding markdown fence or prose.
func extractJSONObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

package ai

import (
	"encoding/json"
	"log/slog"
)

// ExtractProviderMeta returns the top-level body keys a decoder did not map
// into the canonical response, so provider-specific fields survive the
// translation. A body that is not a JSON object yields nil.
func ExtractProviderMeta(body []byte, consumed ...string) map[string]any {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}
	for _, key := range consumed {
		delete(raw, key)
	}
	if len(raw) == 0 {
		return nil
	}
	return raw
}

// SanitizeToolCalls enforces the canonical arguments contract: empty
// arguments become "{}", and calls whose non-empty arguments are not valid
// JSON are dropped with a warning rather than handed to the caller.
func SanitizeToolCalls(calls []ToolCall) []ToolCall {
	var sanitized []ToolCall
	for _, call := range calls {
		switch {
		case call.Function.Arguments == "":
			call.Function.Arguments = "{}"
		case !json.Valid([]byte(call.Function.Arguments)):
			slog.Warn("dropping tool call with unparseable arguments",
				"tool", call.Function.Name, "id", call.ID)
			continue
		}
		sanitized = append(sanitized, call)
	}
	return sanitized
}

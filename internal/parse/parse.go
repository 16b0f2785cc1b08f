// Package parse converts model-produced text into Go values. Models often
// return JSON wrapped in markdown fences or with minor syntax damage
// (trailing commas, single quotes, unquoted keys), so complex types go
// through a repair pass before parsing is declared failed.
package parse

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// StringAs parses content into T. Primitive targets use direct conversion;
// struct, map and slice targets are JSON-unmarshaled, with a jsonrepair retry
// when the first attempt fails.
func StringAs[T any](content string) (T, error) {
	var result T

	switch target := any(&result).(type) {
	case *string:
		*target = content
		return result, nil
	case *bool:
		val, err := strconv.ParseBool(strings.TrimSpace(content))
		if err != nil {
			return result, fmt.Errorf("failed to parse content as bool: %w", err)
		}
		*target = val
		return result, nil
	case *int:
		val, err := strconv.Atoi(strings.TrimSpace(content))
		if err != nil {
			return result, fmt.Errorf("failed to parse content as int: %w", err)
		}
		*target = val
		return result, nil
	case *int64:
		val, err := strconv.ParseInt(strings.TrimSpace(content), 10, 64)
		if err != nil {
			return result, fmt.Errorf("failed to parse content as int64: %w", err)
		}
		*target = val
		return result, nil
	case *float64:
		val, err := strconv.ParseFloat(strings.TrimSpace(content), 64)
		if err != nil {
			return result, fmt.Errorf("failed to parse content as float64: %w", err)
		}
		*target = val
		return result, nil
	}

	cleaned := StripFences(content)
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(cleaned)
		if repairErr != nil {
			return result, fmt.Errorf("failed to unmarshal content as %T: %w (repair also failed: %v)", result, err, repairErr)
		}
		if err := json.Unmarshal([]byte(repaired), &result); err != nil {
			return result, fmt.Errorf("failed to unmarshal repaired JSON as %T: %w", result, err)
		}
	}
	return result, nil
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag, and trims whitespace. Content without a fence is returned
// trimmed.
func StripFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		// Drop the language tag line ("json", "yaml", or empty).
		firstLine := strings.TrimSpace(trimmed[:idx])
		if !strings.ContainsAny(firstLine, "{}[]\"") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// Complete reports whether content is a complete JSON document. Streaming
// accumulators use it to decide when a tool-argument fragment sequence has
// finished arriving.
func Complete(content string) bool {
	return json.Valid([]byte(strings.TrimSpace(content)))
}

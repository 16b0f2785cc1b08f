package ai

import (
	"fmt"
	"time"
)

// OptionMap is the flattened, wire-key-oriented form caller options take on
// their way through validation and per-provider translation.
type OptionMap map[string]any

// Clone returns an independent shallow copy.
func (o OptionMap) Clone() OptionMap {
	clone := make(OptionMap, len(o))
	for k, v := range o {
		clone[k] = v
	}
	return clone
}

// Rename moves the value under old to new. Having both keys set is an
// invalid_parameter error.
func (o OptionMap) Rename(old, new string) error {
	value, hasOld := o[old]
	if !hasOld {
		return nil
	}
	if _, hasNew := o[new]; hasNew {
		return Errorf(ErrInvalidParameter, "options %q and %q are mutually exclusive", old, new)
	}
	o[new] = value
	delete(o, old)
	return nil
}

// Drop removes key and, when it was present, returns the warning to surface.
func (o OptionMap) Drop(key, warning string) []string {
	if _, ok := o[key]; !ok {
		return nil
	}
	delete(o, key)
	return []string{warning}
}

// Mutex raises invalid_parameter when more than one of keys is set.
func (o OptionMap) Mutex(keys ...string) error {
	var set []string
	for _, key := range keys {
		if _, ok := o[key]; ok {
			set = append(set, key)
		}
	}
	if len(set) > 1 {
		return Errorf(ErrInvalidParameter, "options %v are mutually exclusive", set)
	}
	return nil
}

// Options are the caller-facing generation knobs shared by all providers.
// Provider-specific options go through ProviderOptions and are validated
// against the adapter's extended schema.
type Options struct {
	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Stop             []string
	ToolChoice       string
	APIKey           string
	Timeout          time.Duration
	ReceiveTimeout   time.Duration
	ProviderOptions  OptionMap
}

// Flatten merges the typed fields and ProviderOptions into one OptionMap
// keyed by wire names. A core field set both ways keeps the typed value and
// yields a conflict warning. APIKey and the timeouts are call plumbing, not
// wire options, and stay out of the map.
func (o Options) Flatten() (OptionMap, []string) {
	opts := OptionMap{}
	var warnings []string
	for k, v := range o.ProviderOptions {
		opts[k] = v
	}

	setCore := func(key string, value any) {
		if _, ok := opts[key]; ok {
			warnings = append(warnings, fmt.Sprintf("provider option %q conflicts with the typed option and was overridden", key))
		}
		opts[key] = value
	}

	if o.Temperature != nil {
		setCore("temperature", *o.Temperature)
	}
	if o.MaxTokens != nil {
		setCore("max_tokens", *o.MaxTokens)
	}
	if o.TopP != nil {
		setCore("top_p", *o.TopP)
	}
	if o.FrequencyPenalty != nil {
		setCore("frequency_penalty", *o.FrequencyPenalty)
	}
	if o.PresencePenalty != nil {
		setCore("presence_penalty", *o.PresencePenalty)
	}
	if len(o.Stop) > 0 {
		setCore("stop", o.Stop)
	}
	if o.ToolChoice != "" {
		setCore("tool_choice", o.ToolChoice)
	}
	return opts, warnings
}

// OptionKind is the value shape an option accepts.
type OptionKind int

const (
	KindAny OptionKind = iota
	KindString
	KindNumber
	KindInt
	KindBool
	KindStringList
)

// OptionSchema declares the options an adapter accepts and their kinds.
type OptionSchema map[string]OptionKind

// CoreOptionSchema returns the options every adapter accepts.
func CoreOptionSchema() OptionSchema {
	return OptionSchema{
		"temperature":       KindNumber,
		"max_tokens":        KindInt,
		"top_p":             KindNumber,
		"frequency_penalty": KindNumber,
		"presence_penalty":  KindNumber,
		"stop":              KindStringList,
		"tool_choice":       KindString,
		"stream":            KindBool,
	}
}

// Extend unions extra onto the schema. A key declared in both with different
// kinds keeps the adapter's declaration and yields a warning.
func (s OptionSchema) Extend(extra OptionSchema) (OptionSchema, []string) {
	merged := make(OptionSchema, len(s)+len(extra))
	var warnings []string
	for k, v := range s {
		merged[k] = v
	}
	for k, v := range extra {
		if existing, ok := merged[k]; ok && existing != v {
			warnings = append(warnings, fmt.Sprintf("option %q redeclared with a different kind; adapter declaration wins", k))
		}
		merged[k] = v
	}
	return merged, warnings
}

// Validate rejects unknown keys and kind mismatches with invalid_parameter.
func (s OptionSchema) Validate(opts OptionMap) error {
	for key, value := range opts {
		kind, ok := s[key]
		if !ok {
			return Errorf(ErrInvalidParameter, "unknown option %q", key)
		}
		if !kindMatches(kind, value) {
			return Errorf(ErrInvalidParameter, "option %q has invalid type %T", key, value)
		}
	}
	return nil
}

func kindMatches(kind OptionKind, value any) bool {
	switch kind {
	case KindAny:
		return true
	case KindString:
		_, ok := value.(string)
		return ok
	case KindBool:
		_, ok := value.(bool)
		return ok
	case KindNumber:
		switch value.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case KindInt:
		switch v := value.(type) {
		case int, int64:
			return true
		case float64:
			return v == float64(int(v))
		}
		return false
	case KindStringList:
		switch v := value.(type) {
		case []string:
			return true
		case []any:
			for _, item := range v {
				if _, ok := item.(string); !ok {
					return false
				}
			}
			return true
		}
		return false
	default:
		return false
	}
}

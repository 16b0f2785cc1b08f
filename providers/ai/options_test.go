package ai

import (
	"strings"
	"testing"

	"github.com/modelmux/modelmux/internal/utils"
)

func TestOptionsFlatten(t *testing.T) {
	opts := Options{
		Temperature: utils.Ptr(0.7),
		MaxTokens:   utils.Ptr(1000),
		Stop:        []string{"END"},
		ProviderOptions: OptionMap{
			"reasoning_effort": "high",
		},
	}
	flat, warnings := opts.Flatten()
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if flat["temperature"] != 0.7 || flat["max_tokens"] != 1000 {
		t.Errorf("flat = %v", flat)
	}
	if flat["reasoning_effort"] != "high" {
		t.Errorf("provider option lost: %v", flat)
	}
	if _, ok := flat["api_key"]; ok {
		t.Error("api_key must never enter the option map")
	}
}

func TestOptionsFlattenConflictWarning(t *testing.T) {
	opts := Options{
		Temperature:     utils.Ptr(0.2),
		ProviderOptions: OptionMap{"temperature": 0.9},
	}
	flat, warnings := opts.Flatten()
	if flat["temperature"] != 0.2 {
		t.Errorf("typed option should win, got %v", flat["temperature"])
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "temperature") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestOptionMapRename(t *testing.T) {
	opts := OptionMap{"max_tokens": 1000}
	if err := opts.Rename("max_tokens", "max_completion_tokens"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts["max_completion_tokens"] != 1000 {
		t.Errorf("opts = %v", opts)
	}
	if _, ok := opts["max_tokens"]; ok {
		t.Error("old key not removed")
	}

	// Renaming an absent key is a no-op.
	if err := opts.Rename("absent", "other"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	both := OptionMap{"a": 1, "b": 2}
	if err := both.Rename("a", "b"); err == nil {
		t.Error("expected error when both keys present")
	}
}

func TestOptionMapDrop(t *testing.T) {
	opts := OptionMap{"temperature": 0.7}
	warnings := opts.Drop("temperature", "o-family models do not support temperature")
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v", warnings)
	}
	if _, ok := opts["temperature"]; ok {
		t.Error("key not dropped")
	}
	if warnings := opts.Drop("temperature", "again"); warnings != nil {
		t.Errorf("dropping absent key should not warn: %v", warnings)
	}
}

func TestOptionMapMutex(t *testing.T) {
	opts := OptionMap{"temperature": 0.7, "top_p": 0.9}
	if err := opts.Mutex("temperature", "top_p"); err == nil {
		t.Error("expected mutex violation")
	}
	single := OptionMap{"temperature": 0.7}
	if err := single.Mutex("temperature", "top_p"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOptionSchemaValidate(t *testing.T) {
	schema := CoreOptionSchema()
	valid := OptionMap{
		"temperature": 0.7,
		"max_tokens":  500,
		"stop":        []string{"END"},
		"tool_choice": "auto",
		"stream":      true,
	}
	if err := schema.Validate(valid); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := schema.Validate(OptionMap{"banana": 1}); err == nil {
		t.Error("expected error for unknown option")
	}
	if err := schema.Validate(OptionMap{"temperature": "hot"}); err == nil {
		t.Error("expected error for kind mismatch")
	}
	// JSON numbers arrive as float64; whole values are valid ints.
	if err := schema.Validate(OptionMap{"max_tokens": float64(100)}); err != nil {
		t.Errorf("whole float should satisfy int kind: %v", err)
	}
	if err := schema.Validate(OptionMap{"max_tokens": 1.5}); err == nil {
		t.Error("fractional float must not satisfy int kind")
	}
}

func TestOptionSchemaExtend(t *testing.T) {
	core := CoreOptionSchema()
	extended, warnings := core.Extend(OptionSchema{
		"reasoning_effort": KindString,
		"temperature":      KindString, // conflicting redeclaration
	})
	if len(warnings) != 1 {
		t.Errorf("warnings = %v", warnings)
	}
	if extended["reasoning_effort"] != KindString {
		t.Error("extension key missing")
	}
	if _, ok := core["reasoning_effort"]; ok {
		t.Error("Extend must not mutate the receiver")
	}
}

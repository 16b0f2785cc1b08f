package ai

import (
	"errors"
	"testing"
)

func TestParseModel(t *testing.T) {
	model, err := ParseModel("anthropic:claude-3-haiku-20240307")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.Provider != "anthropic" {
		t.Errorf("provider = %q", model.Provider)
	}
	if model.Name != "claude-3-haiku-20240307" {
		t.Errorf("name = %q", model.Name)
	}
	if model.MaxRetries != 3 {
		t.Errorf("max_retries = %d, want 3", model.MaxRetries)
	}
}

func TestParseModelKeepsColonsInName(t *testing.T) {
	model, err := ParseModel("bedrock:anthropic.claude-3-haiku-20240307-v1:0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.Name != "anthropic.claude-3-haiku-20240307-v1:0" {
		t.Errorf("name = %q", model.Name)
	}
}

func TestParseModelInvalid(t *testing.T) {
	for _, spec := range []string{"invalid", "", ":model", "provider:"} {
		_, err := ParseModel(spec)
		if err == nil {
			t.Errorf("ParseModel(%q): expected error", spec)
			continue
		}
		var canonical *Error
		if !errors.As(err, &canonical) || canonical.Kind != ErrInvalidModelSpec {
			t.Errorf("ParseModel(%q): kind = %v, want invalid_model_spec", spec, err)
		}
	}
}

func TestModelString(t *testing.T) {
	model := Model{Provider: "openai", Name: "gpt-4o"}
	if got := model.String(); got != "openai:gpt-4o" {
		t.Errorf("String() = %q", got)
	}
}

func TestModelValidate(t *testing.T) {
	valid := Model{Provider: "openai", Name: "gpt-4o"}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, m := range []Model{
		{Name: "gpt-4o"},
		{Provider: "openai"},
		{Provider: "openai", Name: "gpt-4o", MaxRetries: -1},
	} {
		if err := m.Validate(); err == nil {
			t.Errorf("Validate(%+v): expected error", m)
		}
	}
}

func TestModelCostFor(t *testing.T) {
	model := Model{Cost: ModelCost{Input: 0.000001, Output: 0.000002}}
	cost := model.CostFor(Usage{InputTokens: 1000, OutputTokens: 500})
	want := 0.001 + 0.001
	if diff := cost - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("cost = %v, want %v", cost, want)
	}
}

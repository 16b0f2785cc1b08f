package ai

import (
	"fmt"
	"strings"
)

// DefaultMaxRetries is applied when a model does not specify a retry budget.
const DefaultMaxRetries = 3

// Limit holds a model's context window and maximum output, in tokens.
type Limit struct {
	Context int `json:"context,omitempty"`
	Output  int `json:"output,omitempty"`
}

// Modalities lists the media kinds a model accepts and produces.
type Modalities struct {
	Input  []string `json:"input,omitempty"`
	Output []string `json:"output,omitempty"`
}

// Capabilities records what a model supports. Absent catalog flags default
// to false, except Temperature which defaults to true.
type Capabilities struct {
	Reasoning        bool `json:"reasoning,omitempty"`
	ToolCall         bool `json:"tool_call,omitempty"`
	Temperature      bool `json:"temperature,omitempty"`
	Attachment       bool `json:"attachment,omitempty"`
	StructuredOutput bool `json:"structured_output,omitempty"`
}

// ModelCost holds per-token USD prices.
type ModelCost struct {
	Input  float64 `json:"input,omitempty"`
	Output float64 `json:"output,omitempty"`
}

// Model identifies a provider and model name, plus optional runtime fields
// and the catalog metadata joined by the registry.
type Model struct {
	Provider string `json:"provider"`
	Name     string `json:"model"`

	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	MaxRetries  int      `json:"max_retries"`

	Limit        Limit        `json:"limit,omitempty"`
	Modalities   Modalities   `json:"modalities,omitempty"`
	Capabilities Capabilities `json:"capabilities,omitempty"`
	Cost         ModelCost    `json:"cost,omitempty"`
}

// ParseModel parses a "provider:model" spec string. Both halves must be
// non-empty; model names may themselves contain colons (Bedrock model ids
// end in ":0"), so only the first colon separates.
func ParseModel(spec string) (Model, error) {
	provider, name, found := strings.Cut(spec, ":")
	if !found || provider == "" || name == "" {
		return Model{}, &Error{
			Kind:   ErrInvalidModelSpec,
			Reason: fmt.Sprintf("model spec %q is not of the form \"provider:model\"", spec),
		}
	}
	return Model{
		Provider:   provider,
		Name:       name,
		MaxRetries: DefaultMaxRetries,
	}, nil
}

// String renders the model back to its "provider:model" spec form.
func (m Model) String() string {
	return m.Provider + ":" + m.Name
}

// Validate checks the Model invariants.
func (m Model) Validate() error {
	if m.Provider == "" {
		return &Error{Kind: ErrInvalidModel, Reason: "model provider is empty"}
	}
	if m.Name == "" {
		return &Error{Kind: ErrInvalidModel, Reason: "model name is empty"}
	}
	if m.MaxRetries < 0 {
		return &Error{Kind: ErrInvalidModel, Reason: "max_retries must be >= 0"}
	}
	return nil
}

// CostFor computes the USD cost of a generation from per-token prices.
func (m Model) CostFor(usage Usage) float64 {
	return m.Cost.Input*float64(usage.InputTokens) + m.Cost.Output*float64(usage.OutputTokens)
}

package ai

import (
	"context"
	"encoding/json"
	"regexp"

	"github.com/modelmux/modelmux/internal/jsonschema"
	"github.com/modelmux/modelmux/internal/parse"
)

// toolNamePattern is the identifier shape providers accept for tool names.
var toolNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

const maxToolNameLength = 64

// Tool describes a function the model may call. The runtime validates call
// input against Parameters before the caller dispatches; the Callback itself
// is invoked by the caller, never by the runtime.
type Tool struct {
	Name        string                                                          `json:"name"`
	Description string                                                          `json:"description,omitempty"`
	Parameters  *jsonschema.Schema                                              `json:"parameters,omitempty"`
	Callback    func(ctx context.Context, args map[string]any) (string, error) `json:"-"`
}

// Validate checks the tool invariants: identifier-shaped name of at most 64
// characters.
func (t Tool) Validate() error {
	if t.Name == "" {
		return Errorf(ErrInvalidParameter, "tool name is empty")
	}
	if len(t.Name) > maxToolNameLength {
		return Errorf(ErrInvalidParameter, "tool name %q exceeds %d characters", t.Name, maxToolNameLength)
	}
	if !toolNamePattern.MatchString(t.Name) {
		return Errorf(ErrInvalidParameter, "tool name %q is not a valid identifier", t.Name)
	}
	return nil
}

// ValidateInput checks a tool call's JSON arguments against the tool's
// parameter schema. Tools without a schema accept anything.
func (t Tool) ValidateInput(arguments string) error {
	if t.Parameters == nil {
		return nil
	}
	if arguments == "" {
		arguments = "{}"
	}
	if err := t.Parameters.Validate([]byte(arguments)); err != nil {
		return &Error{Kind: ErrValidation, Reason: "tool input rejected by schema: " + err.Error(), Cause: err}
	}
	return nil
}

// ToolCall is a model request to invoke a named function.
type ToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type"` // "function"
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction carries the call target and its JSON-encoded arguments.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ParsedArguments decodes the call's argument JSON. Empty arguments decode to
// an empty map; damaged JSON goes through a repair pass first.
func (tc ToolCall) ParsedArguments() (map[string]any, error) {
	if tc.Function.Arguments == "" {
		return map[string]any{}, nil
	}
	args, err := parse.StringAs[map[string]any](tc.Function.Arguments)
	if err != nil {
		return nil, &Error{Kind: ErrAPIResponse, Reason: "tool call arguments are not valid JSON", Cause: err}
	}
	return args, nil
}

// ToolResult is the caller-side outcome of executing a tool, shaped so the
// model can tell success from failure.
type ToolResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// NewToolResultSuccess wraps a successful execution result.
func NewToolResultSuccess(data any) ToolResult {
	return ToolResult{Success: true, Data: data}
}

// NewToolResultError wraps a failed execution with a machine-readable error
// type and a human-readable message.
func NewToolResultError(errorType, message string) ToolResult {
	return ToolResult{Success: false, Error: errorType, Message: message}
}

// ToJSON renders the result for inclusion in a tool-role message.
func (tr ToolResult) ToJSON() (string, error) {
	encoded, err := json.Marshal(tr)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

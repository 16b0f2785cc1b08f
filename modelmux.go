// Package modelmux is a unified client for heterogeneous LLM HTTP backends.
// One call surface (GenerateText, StreamText, GenerateObject, StreamObject,
// Embed) multiplexes across Anthropic, OpenAI, Gemini, Groq, xAI, OpenRouter
// and AWS Bedrock; switching providers is a change of model spec string.
//
//	resp, err := modelmux.GenerateText(ctx, "anthropic:claude-sonnet-4-20250514",
//	    "Write a haiku about multiplexers.",
//	    modelmux.WithMaxTokens(200),
//	)
//
// Importing this package registers every built-in provider adapter.
package modelmux

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelmux/modelmux/providers/ai"

	_ "github.com/modelmux/modelmux/providers/ai/anthropic"
	_ "github.com/modelmux/modelmux/providers/ai/bedrock"
	_ "github.com/modelmux/modelmux/providers/ai/gemini"
	_ "github.com/modelmux/modelmux/providers/ai/openai"
)

// callOptions collects the per-call configuration assembled by Option values.
type callOptions struct {
	opts           ai.Options
	conversation   *ai.Context
	system         string
	tools          []ai.Tool
	maxRetries     *int
	client         *http.Client
	responseFormat *ai.ResponseFormat
}

// Option configures a single facade call.
type Option func(*callOptions)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(co *callOptions) { co.opts.Temperature = &t }
}

// WithMaxTokens caps the generated output length.
func WithMaxTokens(n int) Option {
	return func(co *callOptions) { co.opts.MaxTokens = &n }
}

// WithTopP sets nucleus sampling.
func WithTopP(p float64) Option {
	return func(co *callOptions) { co.opts.TopP = &p }
}

// WithFrequencyPenalty sets the frequency penalty on providers that accept it.
func WithFrequencyPenalty(p float64) Option {
	return func(co *callOptions) { co.opts.FrequencyPenalty = &p }
}

// WithPresencePenalty sets the presence penalty on providers that accept it.
func WithPresencePenalty(p float64) Option {
	return func(co *callOptions) { co.opts.PresencePenalty = &p }
}

// WithStop sets the stop sequences.
func WithStop(sequences ...string) Option {
	return func(co *callOptions) { co.opts.Stop = sequences }
}

// WithToolChoice constrains tool selection: "auto", "none", "required", or a
// tool name to force.
func WithToolChoice(choice string) Option {
	return func(co *callOptions) { co.opts.ToolChoice = choice }
}

// WithTools offers tools to the model. The runtime validates returned call
// input against each tool's schema; executing callbacks stays with the caller.
func WithTools(tools ...ai.Tool) Option {
	return func(co *callOptions) { co.tools = append(co.tools, tools...) }
}

// WithSystem sets the system message for this call.
func WithSystem(text string) Option {
	return func(co *callOptions) { co.system = text }
}

// WithContext continues an existing conversation. The context is cloned; the
// caller's copy is never mutated.
func WithContext(conversation *ai.Context) Option {
	return func(co *callOptions) { co.conversation = conversation }
}

// WithAPIKey overrides credential resolution for this call.
func WithAPIKey(key string) Option {
	return func(co *callOptions) { co.opts.APIKey = key }
}

// WithProviderOption passes a provider-specific wire option, validated
// against the adapter's extended schema.
func WithProviderOption(key string, value any) Option {
	return func(co *callOptions) {
		if co.opts.ProviderOptions == nil {
			co.opts.ProviderOptions = ai.OptionMap{}
		}
		co.opts.ProviderOptions[key] = value
	}
}

// WithTimeout bounds a non-streaming call end to end.
func WithTimeout(d time.Duration) Option {
	return func(co *callOptions) { co.opts.Timeout = d }
}

// WithReceiveTimeout bounds the gap between stream reads.
func WithReceiveTimeout(d time.Duration) Option {
	return func(co *callOptions) { co.opts.ReceiveTimeout = d }
}

// WithMaxRetries overrides the retry budget for transient failures.
func WithMaxRetries(n int) Option {
	return func(co *callOptions) { co.maxRetries = &n }
}

// WithHTTPClient substitutes the transport, e.g. for proxies or tests.
func WithHTTPClient(client *http.Client) Option {
	return func(co *callOptions) { co.client = client }
}

func applyOptions(options []Option) *callOptions {
	co := &callOptions{}
	for _, opt := range options {
		opt(co)
	}
	return co
}

// GenerateText sends one chat completion and returns the canonical response.
// The model spec is "provider:model"; prompt becomes the user message,
// appended to the WithContext conversation when one is given.
func GenerateText(ctx context.Context, modelSpec, prompt string, options ...Option) (*ai.Response, error) {
	return generate(ctx, modelSpec, prompt, applyOptions(options))
}

// MustGenerateText is GenerateText that panics on error.
func MustGenerateText(ctx context.Context, modelSpec, prompt string, options ...Option) *ai.Response {
	resp, err := GenerateText(ctx, modelSpec, prompt, options...)
	if err != nil {
		panic(err)
	}
	return resp
}

// StreamText opens a streaming chat completion. The caller must exhaust
// Chunks or call Close; Meta resolves with final usage, finish reason and
// cost when the stream terminates.
func StreamText(ctx context.Context, modelSpec, prompt string, options ...Option) (*ai.StreamResponse, error) {
	return stream(ctx, modelSpec, prompt, applyOptions(options))
}

// MustStreamText is StreamText that panics on error.
func MustStreamText(ctx context.Context, modelSpec, prompt string, options ...Option) *ai.StreamResponse {
	sr, err := StreamText(ctx, modelSpec, prompt, options...)
	if err != nil {
		panic(err)
	}
	return sr
}

// generate runs the non-streaming pipeline: parse spec, join catalog
// metadata, validate and translate options, resolve credentials, build and
// decorate the request, dispatch with retries, decode.
func generate(ctx context.Context, modelSpec, prompt string, co *callOptions) (*ai.Response, error) {
	adapter, model, translated, warnings, err := prepare(modelSpec, co, ai.OperationChat)
	if err != nil {
		return nil, err
	}
	conversation, err := buildConversation(prompt, co)
	if err != nil {
		return nil, err
	}

	req, err := buildChat(adapter, model, conversation, translated, co, false)
	if err != nil {
		return nil, err
	}

	if co.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, co.opts.Timeout)
		defer cancel()
	}

	body, err := ai.Do(ctx, co.client, req, model.MaxRetries)
	if err != nil {
		return nil, err
	}
	resp, err := adapter.DecodeChatResponse(body, model)
	if err != nil {
		return nil, err
	}

	resp.Cost = model.CostFor(resp.Usage)
	resp.Context = conversation.Clone()
	if appendErr := resp.Context.Append(resp.Message); appendErr != nil {
		slog.Warn("response message failed context validation", "provider", model.Provider, "error", appendErr)
	}
	warnings = append(warnings, validateToolCalls(resp.ToolCalls(), co.tools)...)
	resp.Warnings = append(resp.Warnings, warnings...)
	return resp, nil
}

// stream runs the streaming pipeline and hands the HTTP lifecycle to the
// stream coordinator.
func stream(ctx context.Context, modelSpec, prompt string, co *callOptions) (*ai.StreamResponse, error) {
	adapter, model, translated, _, err := prepare(modelSpec, co, ai.OperationChat)
	if err != nil {
		return nil, err
	}
	conversation, err := buildConversation(prompt, co)
	if err != nil {
		return nil, err
	}

	req, err := buildChat(adapter, model, conversation, translated, co, true)
	if err != nil {
		return nil, err
	}

	return ai.OpenStream(ctx, adapter, model, req, ai.StreamConfig{
		Client:         co.client,
		ReceiveTimeout: co.opts.ReceiveTimeout,
	})
}

// prepare resolves the model spec against the registry and runs option
// validation and per-provider translation. Warnings are logged here and
// returned for inclusion in the response.
func prepare(modelSpec string, co *callOptions, operation string) (ai.Adapter, ai.Model, ai.OptionMap, []string, error) {
	parsed, err := ai.ParseModel(modelSpec)
	if err != nil {
		return nil, ai.Model{}, nil, nil, err
	}
	model, err := ai.GetModel(parsed.Provider, parsed.Name)
	if err != nil {
		return nil, ai.Model{}, nil, nil, err
	}
	if co.maxRetries != nil {
		model.MaxRetries = *co.maxRetries
	}
	adapter, err := ai.Get(model.Provider)
	if err != nil {
		return nil, ai.Model{}, nil, nil, err
	}

	flat, warnings := co.opts.Flatten()
	if operation == ai.OperationChat {
		if err := adapter.Schema().Validate(flat); err != nil {
			return nil, ai.Model{}, nil, nil, err
		}
	}
	translated, translateWarnings, err := adapter.TranslateOptions(operation, model, flat)
	if err != nil {
		return nil, ai.Model{}, nil, nil, err
	}
	warnings = append(warnings, translateWarnings...)
	for _, warning := range warnings {
		slog.Warn("option translated with warning", "provider", model.Provider, "model", model.Name, "warning", warning)
	}
	return adapter, model, translated, warnings, nil
}

// buildConversation assembles the call's context: the WithContext clone,
// the WithSystem message, then the prompt as the final user turn.
func buildConversation(prompt string, co *callOptions) (*ai.Context, error) {
	conversation := co.conversation.Clone()
	if co.system != "" {
		if err := conversation.AddSystem(co.system); err != nil {
			return nil, err
		}
	}
	if prompt != "" {
		if err := conversation.AddUser(prompt); err != nil {
			return nil, err
		}
	}
	if conversation.Len() == 0 {
		return nil, ai.Errorf(ai.ErrInvalidMessage, "prompt is empty and no context was provided")
	}
	return conversation, nil
}

// buildChat validates tools, encodes the provider request and attaches the
// resolved credential.
func buildChat(adapter ai.Adapter, model ai.Model, conversation *ai.Context, translated ai.OptionMap, co *callOptions, streaming bool) (*ai.Request, error) {
	for _, tool := range co.tools {
		if err := tool.Validate(); err != nil {
			return nil, err
		}
	}

	req, err := adapter.BuildChatRequest(ai.ChatRequest{
		Model:          model,
		Context:        conversation,
		Tools:          co.tools,
		ToolChoice:     co.opts.ToolChoice,
		ResponseFormat: co.responseFormat,
		Options:        translated,
		Stream:         streaming,
	})
	if err != nil {
		return nil, err
	}

	key, _, err := ai.ResolveCredential(model.Provider, co.opts.APIKey)
	if err != nil {
		return nil, err
	}
	if err := adapter.Decorate(req, key); err != nil {
		return nil, err
	}
	return req, nil
}

// validateToolCalls checks returned call input against the offered tools'
// schemas. Failures become warnings so the caller can decide whether to
// dispatch anyway.
func validateToolCalls(calls []ai.ToolCall, tools []ai.Tool) []string {
	if len(calls) == 0 || len(tools) == 0 {
		return nil
	}
	byName := make(map[string]ai.Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name] = tool
	}
	var warnings []string
	for _, call := range calls {
		tool, ok := byName[call.Function.Name]
		if !ok {
			warnings = append(warnings, "model called unknown tool "+call.Function.Name)
			continue
		}
		if err := tool.ValidateInput(call.Function.Arguments); err != nil {
			warnings = append(warnings, "tool call "+call.Function.Name+" failed input validation: "+err.Error())
		}
	}
	for _, warning := range warnings {
		slog.Warn("tool call validation", "warning", warning)
	}
	return warnings
}

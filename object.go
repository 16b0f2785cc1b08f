package modelmux

import (
	"context"
	"encoding/json"
	"iter"
	"strings"

	"github.com/modelmux/modelmux/internal/jsonschema"
	"github.com/modelmux/modelmux/internal/parse"
	"github.com/modelmux/modelmux/providers/ai"
)

// structuredOutputToolName is the synthesized tool used on providers without
// native schema-constrained output.
const structuredOutputToolName = "structured_output"

// ObjectResponse pairs the parsed value with the raw canonical response.
type ObjectResponse[T any] struct {
	Value    T
	Response *ai.Response
}

// GenerateObject generates a value of type T constrained by its reflected
// JSON schema. Providers with native structured output get a response_format
// with the schema; everyone else gets a synthesized forced tool whose
// arguments carry the object. The payload goes through a lenient JSON parse
// (markdown fences stripped, minor damage repaired) and is validated against
// the schema before being returned.
func GenerateObject[T any](ctx context.Context, modelSpec, prompt string, options ...Option) (*ObjectResponse[T], error) {
	co := applyOptions(options)
	schema := jsonschema.Generate[T]()

	viaTool, err := configureStructured(modelSpec, co, schema)
	if err != nil {
		return nil, err
	}

	resp, err := generate(ctx, modelSpec, prompt, co)
	if err != nil {
		return nil, err
	}

	payload, err := structuredPayload(resp, viaTool)
	if err != nil {
		return nil, err
	}
	value, err := parseAndValidate[T](payload, schema)
	if err != nil {
		return nil, err
	}
	return &ObjectResponse[T]{Value: value, Response: resp}, nil
}

// MustGenerateObject is GenerateObject that panics on error.
func MustGenerateObject[T any](ctx context.Context, modelSpec, prompt string, options ...Option) *ObjectResponse[T] {
	obj, err := GenerateObject[T](ctx, modelSpec, prompt, options...)
	if err != nil {
		panic(err)
	}
	return obj
}

// StreamObject opens a streaming structured generation. Updates yields
// progressively complete parses of the accumulating payload; Object drains
// the stream and returns the final validated value.
func StreamObject[T any](ctx context.Context, modelSpec, prompt string, options ...Option) (*ObjectStream[T], error) {
	co := applyOptions(options)
	schema := jsonschema.Generate[T]()

	viaTool, err := configureStructured(modelSpec, co, schema)
	if err != nil {
		return nil, err
	}

	sr, err := stream(ctx, modelSpec, prompt, co)
	if err != nil {
		return nil, err
	}
	return &ObjectStream[T]{stream: sr, schema: schema, viaTool: viaTool}, nil
}

// MustStreamObject is StreamObject that panics on error.
func MustStreamObject[T any](ctx context.Context, modelSpec, prompt string, options ...Option) *ObjectStream[T] {
	os, err := StreamObject[T](ctx, modelSpec, prompt, options...)
	if err != nil {
		panic(err)
	}
	return os
}

// ObjectStream is a live structured generation. The payload accumulates from
// content deltas (native path) or tool-argument fragments (tool path).
type ObjectStream[T any] struct {
	stream  *ai.StreamResponse
	schema  *jsonschema.Schema
	viaTool bool
	payload strings.Builder
}

// Updates yields a value each time the accumulated payload parses as T.
// Damaged or truncated JSON goes through a repair pass, so partial objects
// appear as the stream progresses; the last yielded value is the complete,
// not yet schema-validated object. Mid-stream transport or decode failures
// surface as the final element's error.
func (s *ObjectStream[T]) Updates() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		for chunk, err := range s.stream.Chunks() {
			if err != nil {
				yield(zero, err)
				return
			}
			switch {
			case s.viaTool && chunk.Type == ai.ChunkToolCall:
				s.payload.WriteString(chunk.Arguments)
			case !s.viaTool && chunk.Type == ai.ChunkContent:
				s.payload.WriteString(chunk.Text)
			default:
				continue
			}
			value, parseErr := parse.StringAs[T](s.payload.String())
			if parseErr != nil {
				continue
			}
			if !yield(value, nil) {
				return
			}
		}
	}
}

// Object exhausts the stream and returns the final value, validated against
// the schema, together with the terminal metadata folded into a Response.
func (s *ObjectStream[T]) Object(ctx context.Context) (*ObjectResponse[T], error) {
	for _, err := range s.Updates() {
		if err != nil {
			return nil, err
		}
	}

	payload := s.payload.String()
	if payload == "" {
		return nil, ai.Errorf(ai.ErrAPIResponse, "stream produced no structured output payload")
	}
	value, err := parseAndValidate[T](payload, s.schema)
	if err != nil {
		return nil, err
	}

	meta, err := s.stream.Meta().Wait(ctx)
	if err != nil {
		return nil, err
	}
	return &ObjectResponse[T]{
		Value: value,
		Response: &ai.Response{
			Model:        s.stream.Model.String(),
			Message:      ai.Message{Role: ai.RoleAssistant, Content: payload},
			Usage:        meta.Usage,
			FinishReason: meta.FinishReason,
			Cost:         meta.Cost,
		},
	}, nil
}

// Meta returns the deferred terminal metadata of the underlying stream.
func (s *ObjectStream[T]) Meta() *ai.MetaFuture {
	return s.stream.Meta()
}

// Close cancels the underlying stream.
func (s *ObjectStream[T]) Close() error {
	return s.stream.Close()
}

// configureStructured selects the native response_format path or the
// synthesized forced tool, depending on the model's catalog capability.
// It reports whether the tool path was taken.
func configureStructured(modelSpec string, co *callOptions, schema *jsonschema.Schema) (bool, error) {
	parsed, err := ai.ParseModel(modelSpec)
	if err != nil {
		return false, err
	}
	model, err := ai.GetModel(parsed.Provider, parsed.Name)
	if err != nil {
		return false, err
	}

	if model.Capabilities.StructuredOutput {
		co.responseFormat = &ai.ResponseFormat{Name: structuredOutputToolName, Schema: schema, Strict: true}
		return false, nil
	}

	co.tools = append(co.tools, ai.Tool{
		Name:        structuredOutputToolName,
		Description: "Return the final answer as a structured object matching the schema.",
		Parameters:  schema,
	})
	co.opts.ToolChoice = structuredOutputToolName
	return true, nil
}

// structuredPayload extracts the raw object JSON from the response: the
// forced tool call's arguments on the tool path, the message text otherwise.
func structuredPayload(resp *ai.Response, viaTool bool) (string, error) {
	if viaTool {
		for _, call := range resp.ToolCalls() {
			if call.Function.Name == structuredOutputToolName {
				return call.Function.Arguments, nil
			}
		}
		return "", ai.Errorf(ai.ErrAPIResponse, "model did not call the %s tool", structuredOutputToolName)
	}
	text := resp.Text()
	if text == "" {
		return "", ai.Errorf(ai.ErrAPIResponse, "model returned no structured output payload")
	}
	return text, nil
}

// parseAndValidate runs the lenient parse and then schema validation on the
// round-tripped value.
func parseAndValidate[T any](payload string, schema *jsonschema.Schema) (T, error) {
	value, err := parse.StringAs[T](payload)
	if err != nil {
		var zero T
		return zero, &ai.Error{Kind: ai.ErrAPIResponse, Reason: "structured output is not valid JSON", ResponseBody: payload, Cause: err}
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		var zero T
		return zero, ai.WrapError(ai.ErrAPIResponse, err, "failed to re-encode structured output")
	}
	if err := schema.Validate(encoded); err != nil {
		var zero T
		return zero, &ai.Error{Kind: ai.ErrAPIResponse, Reason: "schema_validation: " + err.Error(), ResponseBody: payload, Cause: err}
	}
	return value, nil
}

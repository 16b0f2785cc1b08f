package bedrock

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/modelmux/modelmux/internal/sse"
	"github.com/modelmux/modelmux/providers/ai"
	"github.com/modelmux/modelmux/providers/ai/anthropic"
)

// anthropicBedrockVersion replaces the model field in native invoke bodies.
const anthropicBedrockVersion = "bedrock-2023-05-31"

const defaultRegion = "us-east-1"

// Adapter implements the canonical provider contract for AWS Bedrock. The
// zero value reads the region and credentials from the AWS_* environment at
// request time; the fields exist so tests and callers with explicit
// credentials can pin them.
type Adapter struct {
	baseURL      string
	region       string
	secretKey    string
	sessionToken string
	now          func() time.Time
}

func init() {
	ai.Register(&Adapter{})
}

// New returns an adapter pinned to a region instead of AWS_REGION.
func New(region string) *Adapter {
	return &Adapter{region: region}
}

func (a *Adapter) ID() string { return "bedrock" }

// DefaultEnvKey names the access key variable. The resolved credential is
// either the access key id, with the secret read from
// AWS_SECRET_ACCESS_KEY, or an "access:secret" pair in one string.
func (a *Adapter) DefaultEnvKey() string { return "AWS_ACCESS_KEY_ID" }

func (a *Adapter) NewFramer() sse.Framer {
	return sse.NewEventStreamFramer()
}

func (a *Adapter) Schema() ai.OptionSchema {
	schema, _ := ai.CoreOptionSchema().Extend(ai.OptionSchema{
		"top_k":           ai.KindInt,
		"thinking_budget": ai.KindInt,
	})
	return schema
}

// isAnthropicModel reports whether a model id selects the native Anthropic
// invoke path. Cross-region inference profiles prefix the id, so
// "us.anthropic.claude-..." counts too.
func isAnthropicModel(name string) bool {
	return strings.HasPrefix(name, "anthropic.") || strings.Contains(name, ".anthropic.")
}

func (a *Adapter) TranslateOptions(operation string, model ai.Model, opts ai.OptionMap) (ai.OptionMap, []string, error) {
	translated := opts.Clone()
	var warnings []string

	if isAnthropicModel(model.Name) {
		if err := translated.Rename("stop", "stop_sequences"); err != nil {
			return nil, nil, err
		}
		for _, key := range []string{"frequency_penalty", "presence_penalty"} {
			warnings = append(warnings, translated.Drop(key,
				"anthropic models do not support "+key+"; the option was dropped")...)
		}
		return translated, warnings, nil
	}

	// The Converse builder consumes the canonical names directly.
	for _, key := range []string{"frequency_penalty", "presence_penalty", "top_k", "thinking_budget"} {
		warnings = append(warnings, translated.Drop(key,
			"the converse API does not support "+key+"; the option was dropped")...)
	}
	return translated, warnings, nil
}

func (a *Adapter) BuildChatRequest(req ai.ChatRequest) (*ai.Request, error) {
	if isAnthropicModel(req.Model.Name) {
		return a.buildInvokeRequest(req)
	}
	return a.buildConverseRequest(req)
}

// buildInvokeRequest reuses the Messages API body with the model moved into
// the URL and an anthropic_version marker in its place. Streaming is selected
// by the path, not a body field.
func (a *Adapter) buildInvokeRequest(req ai.ChatRequest) (*ai.Request, error) {
	payload, err := anthropic.BuildBody(req)
	if err != nil {
		return nil, err
	}
	delete(payload, "model")
	delete(payload, "stream")
	payload["anthropic_version"] = anthropicBedrockVersion

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, ai.WrapError(ai.ErrAPIRequest, err, "failed to encode chat request")
	}

	operation := "invoke"
	if req.Stream {
		operation = "invoke-with-response-stream"
	}
	return ai.NewRequest(fmt.Sprintf("%s/model/%s/%s", a.base(), req.Model.Name, operation), body), nil
}

func (a *Adapter) buildConverseRequest(req ai.ChatRequest) (*ai.Request, error) {
	if req.ResponseFormat != nil {
		return nil, ai.Errorf(ai.ErrInvalidSchema,
			"the converse API has no native structured output; constrain via a forced tool instead")
	}

	system, messages, err := encodeConverse(req.Context)
	if err != nil {
		return nil, err
	}
	payload := converseRequest{Messages: messages, System: system}

	config := &inferenceConfig{}
	additional := map[string]any{}
	for key, value := range req.Options {
		switch key {
		case "max_tokens":
			config.MaxTokens = intValue(value)
		case "temperature":
			config.Temperature = floatValue(value)
		case "top_p":
			config.TopP = floatValue(value)
		case "stop":
			config.StopSequences = stringsValue(value)
		case "tool_choice", "stream":
		default:
			additional[key] = value
		}
	}
	if config.MaxTokens != 0 || config.Temperature != nil || config.TopP != nil || len(config.StopSequences) > 0 {
		payload.InferenceConfig = config
	}
	if len(additional) > 0 {
		payload.AdditionalModelRequestFields = additional
	}

	if len(req.Tools) > 0 {
		tools := make([]converseTool, 0, len(req.Tools))
		for _, tool := range req.Tools {
			spec := toolSpec{Name: tool.Name, Description: tool.Description}
			if tool.Parameters != nil {
				spec.InputSchema = map[string]any{"json": tool.Parameters}
			} else {
				spec.InputSchema = map[string]any{"json": map[string]any{"type": "object", "properties": map[string]any{}}}
			}
			tools = append(tools, converseTool{ToolSpec: spec})
		}
		choice, err := encodeConverseToolChoice(req.ToolChoice)
		if err != nil {
			return nil, err
		}
		payload.ToolConfig = &converseToolConfig{Tools: tools, ToolChoice: choice}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, ai.WrapError(ai.ErrAPIRequest, err, "failed to encode chat request")
	}

	operation := "converse"
	if req.Stream {
		operation = "converse-stream"
	}
	return ai.NewRequest(fmt.Sprintf("%s/model/%s/%s", a.base(), req.Model.Name, operation), body), nil
}

func (a *Adapter) DecodeChatResponse(body []byte, model ai.Model) (*ai.Response, error) {
	if isAnthropicModel(model.Name) {
		return anthropic.DecodeBody(body, model)
	}
	return decodeConverseResponse(body, model)
}

func (a *Adapter) NewStreamDecoder(model ai.Model) ai.StreamDecoder {
	if isAnthropicModel(model.Name) {
		return anthropic.NewDecoder()
	}
	return newConverseStreamDecoder()
}

// Decorate signs the request with SigV4. The resolved credential carries the
// access key id, optionally as an "access:secret" pair; a bare access key is
// paired with AWS_SECRET_ACCESS_KEY from the environment.
func (a *Adapter) Decorate(req *ai.Request, apiKey string) error {
	accessKey := apiKey
	secretKey := a.secretKey
	if before, after, found := strings.Cut(apiKey, ":"); found {
		accessKey, secretKey = before, after
	}
	if secretKey == "" {
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	if accessKey == "" || secretKey == "" {
		return ai.Errorf(ai.ErrValidation,
			"bedrock requires an AWS access key pair (set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY)")
	}

	sessionToken := a.sessionToken
	if sessionToken == "" {
		sessionToken = os.Getenv("AWS_SESSION_TOKEN")
	}

	now := time.Now()
	if a.now != nil {
		now = a.now()
	}
	return signRequest(req, accessKey, secretKey, sessionToken, a.resolveRegion(), now)
}

func (a *Adapter) resolveRegion() string {
	if a.region != "" {
		return a.region
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		return region
	}
	if region := os.Getenv("AWS_DEFAULT_REGION"); region != "" {
		return region
	}
	return defaultRegion
}

func (a *Adapter) base() string {
	if a.baseURL != "" {
		return a.baseURL
	}
	return fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", a.resolveRegion())
}

// Option values arrive as whatever the caller passed after kind validation,
// so the numeric helpers accept both int and float64 shapes.
func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func floatValue(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	default:
		return nil
	}
}

func stringsValue(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case string:
		return []string{s}
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

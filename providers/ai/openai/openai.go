package openai

import (
	"encoding/json"
	"strings"

	"github.com/modelmux/modelmux/providers/ai"
)

const (
	openaiBaseURL     = "https://api.openai.com/v1"
	groqBaseURL       = "https://api.groq.com/openai/v1"
	xaiBaseURL        = "https://api.x.ai/v1"
	openrouterBaseURL = "https://openrouter.ai/api/v1"
)

// Adapter speaks the Chat Completions dialect. One instance per registered
// provider; compat providers share the implementation and differ only in
// identity, base URL and model quirks.
type Adapter struct {
	id      string
	baseURL string
	envKey  string
}

func init() {
	ai.Register(&Adapter{id: "openai", baseURL: openaiBaseURL, envKey: "OPENAI_API_KEY"})
	ai.Register(&Adapter{id: "groq", baseURL: groqBaseURL, envKey: "GROQ_API_KEY"})
	ai.Register(&Adapter{id: "xai", baseURL: xaiBaseURL, envKey: "XAI_API_KEY"})
	ai.Register(&Adapter{id: "openrouter", baseURL: openrouterBaseURL, envKey: "OPENROUTER_API_KEY"})
}

// New returns a Chat Completions adapter for a custom compatible endpoint,
// for self-hosted gateways that speak the same dialect.
func New(id, baseURL, envKey string) *Adapter {
	return &Adapter{id: id, baseURL: strings.TrimSuffix(baseURL, "/"), envKey: envKey}
}

func (a *Adapter) ID() string { return a.id }

func (a *Adapter) DefaultEnvKey() string { return a.envKey }

func (a *Adapter) Schema() ai.OptionSchema {
	schema, _ := ai.CoreOptionSchema().Extend(ai.OptionSchema{
		"reasoning_effort":    ai.KindString,
		"seed":                ai.KindInt,
		"user":                ai.KindString,
		"parallel_tool_calls": ai.KindBool,
		"logprobs":            ai.KindBool,
	})
	return schema
}

// isReasoningFamily reports whether the model is an o-series reasoning model,
// which rejects sampling parameters and renamed the token limit.
func isReasoningFamily(name string) bool {
	for _, prefix := range []string{"o1", "o3", "o4"} {
		if name == prefix || strings.HasPrefix(name, prefix+"-") {
			return true
		}
	}
	return false
}

func (a *Adapter) TranslateOptions(operation string, model ai.Model, opts ai.OptionMap) (ai.OptionMap, []string, error) {
	translated := opts.Clone()
	var warnings []string

	if operation == ai.OperationEmbedding {
		return translated, warnings, nil
	}

	if a.id == "openai" && isReasoningFamily(model.Name) {
		if err := translated.Rename("max_tokens", "max_completion_tokens"); err != nil {
			return nil, nil, err
		}
	}
	if !model.Capabilities.Temperature {
		warnings = append(warnings, translated.Drop("temperature",
			"reasoning models do not support temperature; the option was dropped")...)
		warnings = append(warnings, translated.Drop("top_p",
			"reasoning models do not support top_p; the option was dropped")...)
	}
	if a.id == "xai" && strings.HasPrefix(model.Name, "grok-4") {
		for _, key := range []string{"frequency_penalty", "presence_penalty", "stop"} {
			warnings = append(warnings, translated.Drop(key,
				"grok-4 models do not support "+key+"; the option was dropped")...)
		}
	}
	return translated, warnings, nil
}

func (a *Adapter) BuildChatRequest(req ai.ChatRequest) (*ai.Request, error) {
	payload := map[string]any{}
	for k, v := range req.Options {
		payload[k] = v
	}
	delete(payload, "tool_choice")
	delete(payload, "stream")

	payload["model"] = req.Model.Name
	messages, err := encodeMessages(req.Context)
	if err != nil {
		return nil, err
	}
	payload["messages"] = messages

	if len(req.Tools) > 0 {
		tools := make([]chatTool, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, chatTool{
				Type: "function",
				Function: chatFunction{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.Parameters,
				},
			})
		}
		payload["tools"] = tools
		payload["tool_choice"] = encodeToolChoice(req.ToolChoice)
	}

	if req.ResponseFormat != nil && req.ResponseFormat.Schema != nil {
		payload["response_format"] = chatResponseFormat{
			Type: "json_schema",
			JSONSchema: &chatJSONSchema{
				Name:   req.ResponseFormat.Name,
				Schema: req.ResponseFormat.Schema,
				Strict: req.ResponseFormat.Strict,
			},
		}
	}

	if req.Stream {
		payload["stream"] = true
		payload["stream_options"] = map[string]bool{"include_usage": true}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, ai.WrapError(ai.ErrAPIRequest, err, "failed to encode chat request")
	}
	return ai.NewRequest(a.baseURL+"/chat/completions", body), nil
}

// encodeToolChoice maps the canonical choice onto the wire form: the named
// modes pass through, anything else forces that specific function.
func encodeToolChoice(choice string) any {
	switch choice {
	case "", "auto":
		return "auto"
	case "none", "required":
		return choice
	default:
		return map[string]any{
			"type":     "function",
			"function": map[string]string{"name": choice},
		}
	}
}

func (a *Adapter) DecodeChatResponse(body []byte, model ai.Model) (*ai.Response, error) {
	var resp chatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ai.Error{Kind: ai.ErrAPIResponse, Reason: "failed to decode chat response", ResponseBody: string(body), Cause: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &ai.Error{Kind: ai.ErrAPIResponse, Reason: "response contained no choices", ResponseBody: string(body)}
	}
	choice := resp.Choices[0]

	content := choice.Message.Content
	reasoning := strings.TrimSpace(choice.Message.Reasoning)
	// Some models inline chain-of-thought in <think> tags instead of the
	// reasoning field.
	if inline := extractThink(content); inline != "" {
		if reasoning != "" {
			reasoning += "\n"
		}
		reasoning += inline
		content = stripThink(content)
	}

	message := ai.Message{Role: ai.RoleAssistant}
	if reasoning != "" {
		message.Parts = append(message.Parts, ai.ReasoningPart(reasoning))
		if content != "" {
			message.Parts = append(message.Parts, ai.TextPart(content))
		}
	} else {
		message.Content = content
	}
	for _, call := range choice.Message.ToolCalls {
		message.ToolCalls = append(message.ToolCalls, ai.ToolCall{
			ID:   call.ID,
			Type: call.Type,
			Function: ai.ToolCallFunction{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}
	message.ToolCalls = ai.SanitizeToolCalls(message.ToolCalls)

	return &ai.Response{
		ID:           resp.ID,
		Model:        model.String(),
		Message:      message,
		Usage:        decodeUsage(resp.Usage),
		FinishReason: decodeFinishReason(choice.FinishReason, len(message.ToolCalls) > 0),
		ProviderMeta: ai.ExtractProviderMeta(body, "id", "model", "choices", "usage"),
	}, nil
}

func (a *Adapter) NewStreamDecoder(model ai.Model) ai.StreamDecoder {
	return &streamDecoder{callIDs: map[int]string{}}
}

func (a *Adapter) Decorate(req *ai.Request, apiKey string) error {
	req.Header.Set("Authorization", "Bearer "+apiKey)
	return nil
}

// BuildEmbedRequest encodes a batch embedding request.
func (a *Adapter) BuildEmbedRequest(model ai.Model, input []string, opts ai.OptionMap) (*ai.Request, error) {
	payload := map[string]any{}
	for k, v := range opts {
		payload[k] = v
	}
	payload["model"] = model.Name
	payload["input"] = input
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, ai.WrapError(ai.ErrAPIRequest, err, "failed to encode embed request")
	}
	return ai.NewRequest(a.baseURL+"/embeddings", body), nil
}

func (a *Adapter) DecodeEmbedResponse(body []byte, model ai.Model) (*ai.EmbedResponse, error) {
	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ai.Error{Kind: ai.ErrAPIResponse, Reason: "failed to decode embed response", ResponseBody: string(body), Cause: err}
	}
	embeddings := make([][]float64, len(resp.Data))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(embeddings) {
			return nil, &ai.Error{Kind: ai.ErrAPIResponse, Reason: "embedding index out of range", ResponseBody: string(body)}
		}
		embeddings[item.Index] = item.Embedding
	}
	return &ai.EmbedResponse{
		Model:      model.String(),
		Embeddings: embeddings,
		Usage:      ai.Usage{InputTokens: resp.Usage.PromptTokens, TotalTokens: resp.Usage.TotalTokens}.Normalize(),
	}, nil
}

func decodeUsage(usage *chatUsage) ai.Usage {
	if usage == nil {
		return ai.Usage{}
	}
	u := ai.Usage{
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		TotalTokens:  usage.TotalTokens,
	}
	if usage.CompletionTokensDetails != nil {
		u.ReasoningTokens = usage.CompletionTokensDetails.ReasoningTokens
	}
	if usage.PromptTokensDetails != nil {
		u.CachedTokens = usage.PromptTokensDetails.CachedTokens
	}
	return u.Normalize()
}

func decodeFinishReason(reason string, hasToolCalls bool) ai.FinishReason {
	if reason == "stop" && hasToolCalls {
		return ai.FinishToolCalls
	}
	return ai.FinishReason(reason)
}

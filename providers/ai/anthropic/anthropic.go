package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/modelmux/modelmux/providers/ai"
)

const (
	baseURL          = "https://api.anthropic.com/v1"
	messagesEndpoint = "/messages"

	// APIVersion is the Messages API revision this adapter targets.
	APIVersion = "2023-06-01"

	// DefaultMaxTokens backs the mandatory max_tokens field when the caller
	// sets no limit.
	DefaultMaxTokens = 4096
)

// Adapter implements the canonical provider contract for the Messages API.
type Adapter struct{}

func init() {
	ai.Register(&Adapter{})
}

func (a *Adapter) ID() string { return "anthropic" }

func (a *Adapter) DefaultEnvKey() string { return "ANTHROPIC_API_KEY" }

func (a *Adapter) Schema() ai.OptionSchema {
	schema, _ := ai.CoreOptionSchema().Extend(ai.OptionSchema{
		"top_k":           ai.KindInt,
		"thinking_budget": ai.KindInt,
	})
	return schema
}

func (a *Adapter) TranslateOptions(operation string, model ai.Model, opts ai.OptionMap) (ai.OptionMap, []string, error) {
	translated := opts.Clone()
	var warnings []string

	if err := translated.Rename("stop", "stop_sequences"); err != nil {
		return nil, nil, err
	}
	for _, key := range []string{"frequency_penalty", "presence_penalty"} {
		warnings = append(warnings, translated.Drop(key,
			"anthropic models do not support "+key+"; the option was dropped")...)
	}
	return translated, warnings, nil
}

// BuildBody encodes the request into the Messages API payload. It is exported
// because Bedrock invokes the same body with the model moved into the URL and
// an anthropic_version marker instead of the model field.
func BuildBody(req ai.ChatRequest) (map[string]any, error) {
	payload := map[string]any{}
	for k, v := range req.Options {
		payload[k] = v
	}
	delete(payload, "tool_choice")
	delete(payload, "stream")
	delete(payload, "thinking_budget")

	payload["model"] = req.Model.Name
	if _, ok := payload["max_tokens"]; !ok {
		payload["max_tokens"] = DefaultMaxTokens
	}
	if budget, ok := req.Options["thinking_budget"]; ok {
		payload["thinking"] = map[string]any{"type": "enabled", "budget_tokens": budget}
	}

	system, messages, err := encodeMessages(req.Context)
	if err != nil {
		return nil, err
	}
	if system != "" {
		payload["system"] = system
	}
	payload["messages"] = messages

	if len(req.Tools) > 0 {
		tools := make([]toolDefinition, 0, len(req.Tools))
		for _, tool := range req.Tools {
			def := toolDefinition{Name: tool.Name, Description: tool.Description}
			if tool.Parameters != nil {
				schema, err := json.Marshal(tool.Parameters)
				if err != nil {
					return nil, ai.WrapError(ai.ErrInvalidSchema, err, "failed to encode tool parameters")
				}
				def.InputSchema = schema
			} else {
				// input_schema is mandatory; parameterless tools send an
				// empty object schema.
				def.InputSchema = json.RawMessage(`{"type":"object","properties":{}}`)
			}
			tools = append(tools, def)
		}
		payload["tools"] = tools
		if choice := encodeToolChoice(req.ToolChoice); choice != nil {
			payload["tool_choice"] = choice
		}
	}

	if req.ResponseFormat != nil {
		return nil, ai.Errorf(ai.ErrInvalidSchema,
			"the messages API has no native structured output; constrain via a forced tool instead")
	}

	if req.Stream {
		payload["stream"] = true
	}
	return payload, nil
}

func (a *Adapter) BuildChatRequest(req ai.ChatRequest) (*ai.Request, error) {
	payload, err := BuildBody(req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, ai.WrapError(ai.ErrAPIRequest, err, "failed to encode chat request")
	}
	request := ai.NewRequest(baseURL+messagesEndpoint, body)
	request.Header.Set("anthropic-version", APIVersion)
	return request, nil
}

func (a *Adapter) DecodeChatResponse(body []byte, model ai.Model) (*ai.Response, error) {
	return DecodeBody(body, model)
}

// DecodeBody decodes a Messages API response body. Exported for Bedrock
// reuse.
func DecodeBody(body []byte, model ai.Model) (*ai.Response, error) {
	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ai.Error{Kind: ai.ErrAPIResponse, Reason: "failed to decode messages response", ResponseBody: string(body), Cause: err}
	}

	var texts, thinking []string
	message := ai.Message{Role: ai.RoleAssistant}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			texts = append(texts, block.Text)
		case "thinking":
			thinking = append(thinking, block.Thinking)
		case "tool_use":
			message.ToolCalls = append(message.ToolCalls, ai.ToolCall{
				ID:   block.ID,
				Type: "function",
				Function: ai.ToolCallFunction{
					Name:      block.Name,
					Arguments: string(block.Input),
				},
			})
		default:
			// Unknown block types are skipped for forward compatibility.
		}
	}

	content := strings.Join(texts, "\n")
	if len(thinking) > 0 {
		message.Parts = append(message.Parts, ai.ReasoningPart(strings.Join(thinking, "\n")))
		if content != "" {
			message.Parts = append(message.Parts, ai.TextPart(content))
		}
	} else {
		message.Content = content
	}

	message.ToolCalls = ai.SanitizeToolCalls(message.ToolCalls)

	return &ai.Response{
		ID:           resp.ID,
		Model:        model.String(),
		Message:      message,
		FinishReason: mapStopReason(resp.StopReason),
		Usage: ai.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			CachedTokens: resp.Usage.CacheCreationInputTokens + resp.Usage.CacheReadInputTokens,
		}.Normalize(),
		ProviderMeta: ai.ExtractProviderMeta(body, "id", "model", "role", "content", "usage", "stop_reason"),
	}, nil
}

func (a *Adapter) NewStreamDecoder(model ai.Model) ai.StreamDecoder {
	return NewDecoder()
}

func (a *Adapter) Decorate(req *ai.Request, apiKey string) error {
	req.Header.Set("x-api-key", apiKey)
	if req.Header.Get("anthropic-version") == "" {
		req.Header.Set("anthropic-version", APIVersion)
	}
	return nil
}

// encodeMessages translates the canonical conversation into the system field
// and the message list. Consecutive tool results merge into one user turn
// because the API rejects adjacent same-role messages.
func encodeMessages(conversation *ai.Context) (string, []message, error) {
	if conversation == nil {
		return "", nil, ai.Errorf(ai.ErrInvalidMessage, "conversation context is required")
	}

	var system string
	var messages []message
	for _, msg := range conversation.Messages() {
		switch msg.Role {
		case ai.RoleSystem:
			system = msg.Text()

		case ai.RoleUser:
			blocks, err := encodeBlocks(msg)
			if err != nil {
				return "", nil, err
			}
			messages = append(messages, message{Role: "user", Content: blocks})

		case ai.RoleAssistant:
			var blocks []contentBlock
			// Thinking blocks must precede text and tool_use blocks.
			if reasoning := msg.Reasoning(); reasoning != "" {
				blocks = append(blocks, contentBlock{Type: "thinking", Thinking: reasoning})
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, encodeToolUse(call))
			}
			if text := msg.Text(); text != "" {
				blocks = append(blocks, contentBlock{Type: "text", Text: text})
			}
			if len(blocks) > 0 {
				messages = append(messages, message{Role: "assistant", Content: blocks})
			}

		case ai.RoleTool:
			result, err := json.Marshal(msg.Text())
			if err != nil {
				return "", nil, ai.WrapError(ai.ErrInvalidMessage, err, "failed to encode tool result")
			}
			block := contentBlock{Type: "tool_result", ToolUseID: msg.ToolCallID, Content: result}
			if last := len(messages) - 1; last >= 0 && isToolResultTurn(messages[last]) {
				messages[last].Content = append(messages[last].Content, block)
			} else {
				messages = append(messages, message{Role: "user", Content: []contentBlock{block}})
			}
		}
	}
	return system, messages, nil
}

func encodeBlocks(msg ai.Message) ([]contentBlock, error) {
	if len(msg.Parts) == 0 {
		return []contentBlock{{Type: "text", Text: msg.Content}}, nil
	}
	var blocks []contentBlock
	for _, part := range msg.Parts {
		switch part.Type {
		case ai.ContentText:
			blocks = append(blocks, contentBlock{Type: "text", Text: part.Text})
		case ai.ContentImageURL:
			blocks = append(blocks, contentBlock{Type: "image", Source: &blockSource{Type: "url", URL: part.URL}})
		case ai.ContentImage:
			blocks = append(blocks, contentBlock{
				Type:   "image",
				Source: &blockSource{Type: "base64", MediaType: part.MediaType, Data: part.Data},
			})
		case ai.ContentFile:
			blocks = append(blocks, contentBlock{
				Type:   "document",
				Source: &blockSource{Type: "base64", MediaType: part.MediaType, Data: part.Data},
			})
		default:
			return nil, ai.Errorf(ai.ErrInvalidMessage, "content type %q is not supported by the messages API", part.Type)
		}
	}
	return blocks, nil
}

func encodeToolUse(call ai.ToolCall) contentBlock {
	input := json.RawMessage(call.Function.Arguments)
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	return contentBlock{Type: "tool_use", ID: call.ID, Name: call.Function.Name, Input: input}
}

func encodeToolChoice(choice string) *toolChoice {
	switch strings.ToLower(choice) {
	case "":
		return nil
	case "auto":
		return &toolChoice{Type: "auto"}
	case "any", "required":
		return &toolChoice{Type: "any"}
	case "none":
		return &toolChoice{Type: "none"}
	default:
		return &toolChoice{Type: "tool", Name: choice}
	}
}

func isToolResultTurn(msg message) bool {
	if msg.Role != "user" || len(msg.Content) == 0 {
		return false
	}
	for _, block := range msg.Content {
		if block.Type != "tool_result" {
			return false
		}
	}
	return true
}

func mapStopReason(reason string) ai.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return ai.FinishStop
	case "tool_use":
		return ai.FinishToolCalls
	case "max_tokens":
		return ai.FinishLength
	case "":
		return ""
	default:
		return ai.FinishReason(reason)
	}
}

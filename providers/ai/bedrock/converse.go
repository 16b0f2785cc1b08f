package bedrock

import (
	"encoding/json"
	"strings"

	"github.com/modelmux/modelmux/providers/ai"
)

/*
	CONVERSE WIRE TYPES
*/

type converseRequest struct {
	Messages                     []converseMessage  `json:"messages"`
	System                       []systemContent    `json:"system,omitempty"`
	InferenceConfig              *inferenceConfig   `json:"inferenceConfig,omitempty"`
	ToolConfig                   *converseToolConfig `json:"toolConfig,omitempty"`
	AdditionalModelRequestFields map[string]any     `json:"additionalModelRequestFields,omitempty"`
}

type converseMessage struct {
	Role    string          `json:"role"` // "user" or "assistant"
	Content []converseBlock `json:"content"`
}

type converseBlock struct {
	Text             string            `json:"text,omitempty"`
	Image            *imageBlock       `json:"image,omitempty"`
	Document         *documentBlock    `json:"document,omitempty"`
	ToolUse          *toolUseBlock     `json:"toolUse,omitempty"`
	ToolResult       *toolResultBlock  `json:"toolResult,omitempty"`
	ReasoningContent *reasoningContent `json:"reasoningContent,omitempty"`
}

type imageBlock struct {
	Format string      `json:"format"`
	Source bytesSource `json:"source"`
}

type documentBlock struct {
	Format string      `json:"format"`
	Name   string      `json:"name"`
	Source bytesSource `json:"source"`
}

type bytesSource struct {
	Bytes string `json:"bytes"`
}

type toolUseBlock struct {
	ToolUseID string          `json:"toolUseId"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
}

type toolResultBlock struct {
	ToolUseID string          `json:"toolUseId"`
	Content   []converseBlock `json:"content"`
	Status    string          `json:"status,omitempty"`
}

type reasoningContent struct {
	ReasoningText *reasoningText `json:"reasoningText,omitempty"`
}

type reasoningText struct {
	Text string `json:"text"`
}

type systemContent struct {
	Text string `json:"text"`
}

type inferenceConfig struct {
	MaxTokens     int       `json:"maxTokens,omitempty"`
	Temperature   *float64  `json:"temperature,omitempty"`
	TopP          *float64  `json:"topP,omitempty"`
	StopSequences []string  `json:"stopSequences,omitempty"`
}

type converseToolConfig struct {
	Tools      []converseTool `json:"tools"`
	ToolChoice map[string]any `json:"toolChoice,omitempty"`
}

type converseTool struct {
	ToolSpec toolSpec `json:"toolSpec"`
}

type toolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
}

type converseResponse struct {
	Output struct {
		Message converseMessage `json:"message"`
	} `json:"output"`
	StopReason string        `json:"stopReason"`
	Usage      converseUsage `json:"usage"`
}

type converseUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

/*
	ENCODING
*/

// encodeConverse splits the canonical conversation into the system list and
// the message list. Tool results ride inside user-role messages as toolResult
// blocks; consecutive results merge into one user turn because Converse
// requires alternating roles.
func encodeConverse(conversation *ai.Context) ([]systemContent, []converseMessage, error) {
	if conversation == nil {
		return nil, nil, ai.Errorf(ai.ErrInvalidMessage, "conversation context is required")
	}

	var system []systemContent
	var messages []converseMessage
	for _, msg := range conversation.Messages() {
		switch msg.Role {
		case ai.RoleSystem:
			system = append(system, systemContent{Text: msg.Text()})

		case ai.RoleUser:
			blocks, err := encodeConverseBlocks(msg)
			if err != nil {
				return nil, nil, err
			}
			messages = append(messages, converseMessage{Role: "user", Content: blocks})

		case ai.RoleAssistant:
			var blocks []converseBlock
			if reasoning := msg.Reasoning(); reasoning != "" {
				blocks = append(blocks, converseBlock{
					ReasoningContent: &reasoningContent{ReasoningText: &reasoningText{Text: reasoning}},
				})
			}
			if text := msg.Text(); text != "" {
				blocks = append(blocks, converseBlock{Text: text})
			}
			for _, call := range msg.ToolCalls {
				input := json.RawMessage(call.Function.Arguments)
				if len(input) == 0 {
					input = json.RawMessage("{}")
				}
				blocks = append(blocks, converseBlock{
					ToolUse: &toolUseBlock{ToolUseID: call.ID, Name: call.Function.Name, Input: input},
				})
			}
			if len(blocks) > 0 {
				messages = append(messages, converseMessage{Role: "assistant", Content: blocks})
			}

		case ai.RoleTool:
			block := converseBlock{ToolResult: &toolResultBlock{
				ToolUseID: msg.ToolCallID,
				Content:   []converseBlock{{Text: msg.Text()}},
			}}
			if last := len(messages) - 1; last >= 0 && isToolResultTurn(messages[last]) {
				messages[last].Content = append(messages[last].Content, block)
			} else {
				messages = append(messages, converseMessage{Role: "user", Content: []converseBlock{block}})
			}
		}
	}
	return system, messages, nil
}

func encodeConverseBlocks(msg ai.Message) ([]converseBlock, error) {
	if len(msg.Parts) == 0 {
		return []converseBlock{{Text: msg.Content}}, nil
	}
	var blocks []converseBlock
	for _, part := range msg.Parts {
		switch part.Type {
		case ai.ContentText:
			blocks = append(blocks, converseBlock{Text: part.Text})
		case ai.ContentImage:
			blocks = append(blocks, converseBlock{Image: &imageBlock{
				Format: strings.TrimPrefix(part.MediaType, "image/"),
				Source: bytesSource{Bytes: part.Data},
			}})
		case ai.ContentFile:
			blocks = append(blocks, converseBlock{Document: &documentBlock{
				Format: formatFromMediaType(part.MediaType),
				Name:   "document",
				Source: bytesSource{Bytes: part.Data},
			}})
		default:
			return nil, ai.Errorf(ai.ErrInvalidMessage, "content type %q is not supported by the converse API", part.Type)
		}
	}
	return blocks, nil
}

func formatFromMediaType(mediaType string) string {
	if idx := strings.LastIndexByte(mediaType, '/'); idx >= 0 {
		return mediaType[idx+1:]
	}
	return mediaType
}

func isToolResultTurn(msg converseMessage) bool {
	if msg.Role != "user" || len(msg.Content) == 0 {
		return false
	}
	for _, block := range msg.Content {
		if block.ToolResult == nil {
			return false
		}
	}
	return true
}

// encodeConverseToolChoice maps the canonical tool choice onto the Converse
// tagged union. Converse has no "none" mode.
func encodeConverseToolChoice(choice string) (map[string]any, error) {
	switch strings.ToLower(choice) {
	case "":
		return nil, nil
	case "auto":
		return map[string]any{"auto": map[string]any{}}, nil
	case "any", "required":
		return map[string]any{"any": map[string]any{}}, nil
	case "none":
		return nil, ai.Errorf(ai.ErrInvalidParameter, `tool_choice "none" is not supported by the converse API`)
	default:
		return map[string]any{"tool": map[string]any{"name": choice}}, nil
	}
}

/*
	DECODING
*/

func decodeConverseResponse(body []byte, model ai.Model) (*ai.Response, error) {
	var resp converseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ai.Error{Kind: ai.ErrAPIResponse, Reason: "failed to decode converse response", ResponseBody: string(body), Cause: err}
	}

	var texts, thinking []string
	message := ai.Message{Role: ai.RoleAssistant}
	for _, block := range resp.Output.Message.Content {
		switch {
		case block.ToolUse != nil:
			message.ToolCalls = append(message.ToolCalls, ai.ToolCall{
				ID:   block.ToolUse.ToolUseID,
				Type: "function",
				Function: ai.ToolCallFunction{
					Name:      block.ToolUse.Name,
					Arguments: string(block.ToolUse.Input),
				},
			})
		case block.ReasoningContent != nil && block.ReasoningContent.ReasoningText != nil:
			thinking = append(thinking, block.ReasoningContent.ReasoningText.Text)
		case block.Text != "":
			texts = append(texts, block.Text)
		}
	}

	text := strings.Join(texts, "\n")
	if len(thinking) > 0 {
		message.Parts = append(message.Parts, ai.ReasoningPart(strings.Join(thinking, "\n")))
		if text != "" {
			message.Parts = append(message.Parts, ai.TextPart(text))
		}
	} else {
		message.Content = text
	}

	message.ToolCalls = ai.SanitizeToolCalls(message.ToolCalls)

	return &ai.Response{
		Model:        model.String(),
		Message:      message,
		FinishReason: mapStopReason(resp.StopReason),
		Usage: ai.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}.Normalize(),
		ProviderMeta: ai.ExtractProviderMeta(body, "output", "stopReason", "usage"),
	}, nil
}

func mapStopReason(reason string) ai.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return ai.FinishStop
	case "tool_use":
		return ai.FinishToolCalls
	case "max_tokens":
		return ai.FinishLength
	case "content_filtered", "guardrail_intervened":
		return ai.FinishContentFilter
	case "":
		return ""
	default:
		return ai.FinishReason(reason)
	}
}

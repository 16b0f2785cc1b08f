package openai

import (
	"github.com/modelmux/modelmux/internal/jsonschema"
	"github.com/modelmux/modelmux/providers/ai"
)

/*
	CHAT COMPLETIONS WIRE TYPES
*/

type chatMessage struct {
	Role       string         `json:"role"`
	Content    any            `json:"content,omitempty"` // string or []contentPart
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
}

type contentPart struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	ImageURL *contentPartImage `json:"image_url,omitempty"`
}

type contentPartImage struct {
	URL string `json:"url"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

type chatResponseFormat struct {
	Type       string          `json:"type"`
	JSONSchema *chatJSONSchema `json:"json_schema,omitempty"`
}

type chatJSONSchema struct {
	Name   string             `json:"name"`
	Schema *jsonschema.Schema `json:"schema"`
	Strict bool               `json:"strict,omitempty"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
}

type chatChoice struct {
	Index        int                 `json:"index"`
	Message      chatResponseMessage `json:"message"`
	FinishReason string              `json:"finish_reason"`
}

type chatResponseMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content,omitempty"`
	Reasoning string         `json:"reasoning,omitempty"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

type chatUsage struct {
	PromptTokens            int `json:"prompt_tokens"`
	CompletionTokens        int `json:"completion_tokens"`
	TotalTokens             int `json:"total_tokens"`
	CompletionTokensDetails *struct {
		ReasoningTokens int `json:"reasoning_tokens,omitempty"`
	} `json:"completion_tokens_details,omitempty"`
	PromptTokensDetails *struct {
		CachedTokens int `json:"cached_tokens,omitempty"`
	} `json:"prompt_tokens_details,omitempty"`
}

/*
	STREAMING WIRE TYPES
*/

type streamChunk struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []streamChoice `json:"choices"`
	Usage   *chatUsage     `json:"usage,omitempty"`
}

type streamChoice struct {
	Index        int         `json:"index"`
	Delta        streamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

type streamDelta struct {
	Role      string           `json:"role,omitempty"`
	Content   *string          `json:"content,omitempty"`
	Reasoning *string          `json:"reasoning,omitempty"`
	ToolCalls []streamToolCall `json:"tool_calls,omitempty"`
}

// streamToolCall is an incremental tool-call delta. The first fragment for an
// index carries the id and name, later fragments only argument text.
type streamToolCall struct {
	Index    int    `json:"index"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

/*
	EMBEDDINGS WIRE TYPES
*/

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

/*
	CANONICAL TO WIRE CONVERSION
*/

func encodeMessages(conversation *ai.Context) ([]chatMessage, error) {
	if conversation == nil {
		return nil, ai.Errorf(ai.ErrInvalidMessage, "conversation context is required")
	}
	canonical := conversation.Messages()
	messages := make([]chatMessage, 0, len(canonical))
	for _, msg := range canonical {
		encoded := chatMessage{Role: string(msg.Role), ToolCallID: msg.ToolCallID}
		if len(msg.Parts) > 0 {
			parts := make([]contentPart, 0, len(msg.Parts))
			for _, part := range msg.Parts {
				switch part.Type {
				case ai.ContentText:
					parts = append(parts, contentPart{Type: "text", Text: part.Text})
				case ai.ContentImageURL:
					parts = append(parts, contentPart{Type: "image_url", ImageURL: &contentPartImage{URL: part.URL}})
				case ai.ContentImage:
					parts = append(parts, contentPart{
						Type:     "image_url",
						ImageURL: &contentPartImage{URL: dataURL(part.MediaType, part.Data)},
					})
				case ai.ContentReasoning:
					// Reasoning is model output and never sent back.
				case ai.ContentToolCall:
					if part.ToolCall != nil {
						encoded.ToolCalls = append(encoded.ToolCalls, encodeToolCall(*part.ToolCall))
					}
				case ai.ContentToolResult:
					encoded.ToolCallID = part.ToolCallID
					parts = append(parts, contentPart{Type: "text", Text: part.Result})
				default:
					return nil, ai.Errorf(ai.ErrInvalidMessage, "content type %q is not supported by the chat completions API", part.Type)
				}
			}
			if len(parts) > 0 {
				encoded.Content = parts
			}
		} else if msg.Content != "" {
			encoded.Content = msg.Content
		}
		for _, call := range msg.ToolCalls {
			encoded.ToolCalls = append(encoded.ToolCalls, encodeToolCall(call))
		}
		messages = append(messages, encoded)
	}
	return messages, nil
}

func encodeToolCall(call ai.ToolCall) chatToolCall {
	encoded := chatToolCall{ID: call.ID, Type: call.Type}
	if encoded.Type == "" {
		encoded.Type = "function"
	}
	encoded.Function.Name = call.Function.Name
	encoded.Function.Arguments = call.Function.Arguments
	return encoded
}

func dataURL(mediaType, data string) string {
	return "data:" + mediaType + ";base64," + data
}

package anthropic

import "encoding/json"

/*
	MESSAGES API WIRE TYPES
*/

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

// contentBlock is the tagged union used for both request and response
// content. Anthropic message bodies are always block arrays, never plain
// strings.
type contentBlock struct {
	Type string `json:"type"`

	Text     string `json:"text,omitempty"`
	Thinking string `json:"thinking,omitempty"`

	// tool_use fields.
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result fields.
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`

	// image and document fields.
	Source *blockSource `json:"source,omitempty"`
}

type blockSource struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type toolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type toolChoice struct {
	Type string `json:"type"` // "auto", "any", "tool"
	Name string `json:"name,omitempty"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

/*
	STREAMING WIRE TYPES

	Event lifecycle:
	message_start → content_block_start → content_block_delta(s) →
	content_block_stop → message_delta → message_stop
*/

type streamEvent struct {
	Type string `json:"type"`

	Message      *streamMessage `json:"message,omitempty"`       // message_start
	ContentBlock *contentBlock  `json:"content_block,omitempty"` // content_block_start
	Delta        *streamDelta   `json:"delta,omitempty"`         // content_block_delta, message_delta
	Usage        *usage         `json:"usage,omitempty"`         // message_delta
	Error        *streamError   `json:"error,omitempty"`         // error
}

type streamMessage struct {
	ID    string `json:"id"`
	Usage usage  `json:"usage"`
}

type streamDelta struct {
	Type        string `json:"type"` // "text_delta", "thinking_delta", "input_json_delta"
	Text        string `json:"text,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

type streamError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

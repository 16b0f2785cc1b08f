package ai

import (
	"fmt"
	"strings"
)

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentType tags a ContentPart variant. The canonical tag for model
// thinking is "reasoning"; providers that speak "thinking" are translated at
// their adapter boundary.
type ContentType string

const (
	ContentText       ContentType = "text"
	ContentReasoning  ContentType = "reasoning"
	ContentImageURL   ContentType = "image_url"
	ContentImage      ContentType = "image"
	ContentFile       ContentType = "file"
	ContentToolCall   ContentType = "tool_call"
	ContentToolResult ContentType = "tool_result"
)

// ContentPart is one tagged element of a multi-part message body. Exactly one
// payload field is populated per variant; Metadata is always non-nil on parts
// built through the constructors.
type ContentPart struct {
	Type ContentType `json:"type"`

	// Text carries the payload for text and reasoning parts.
	Text string `json:"text,omitempty"`
	// URL carries the payload for image_url parts.
	URL string `json:"url,omitempty"`
	// Data carries base64 content for image and file parts; MediaType
	// qualifies it (e.g. "image/png", "application/pdf").
	Data      string `json:"data,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	// ToolCall carries the payload for tool_call parts.
	ToolCall *ToolCall `json:"tool_call,omitempty"`
	// ToolCallID and Result carry the payload for tool_result parts.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Result     string `json:"result,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

func newPart(t ContentType) ContentPart {
	return ContentPart{Type: t, Metadata: map[string]any{}}
}

// TextPart returns a text content part.
func TextPart(text string) ContentPart {
	p := newPart(ContentText)
	p.Text = text
	return p
}

// ReasoningPart returns a reasoning (thinking) content part.
func ReasoningPart(text string) ContentPart {
	p := newPart(ContentReasoning)
	p.Text = text
	return p
}

// ImageURLPart returns a part referencing an image by URL.
func ImageURLPart(url string) ContentPart {
	p := newPart(ContentImageURL)
	p.URL = url
	return p
}

// ImagePart returns a part carrying inline base64 image data.
func ImagePart(data, mediaType string) ContentPart {
	p := newPart(ContentImage)
	p.Data = data
	p.MediaType = mediaType
	return p
}

// FilePart returns a part carrying inline base64 file data.
func FilePart(data, mediaType string) ContentPart {
	p := newPart(ContentFile)
	p.Data = data
	p.MediaType = mediaType
	return p
}

// ToolCallPart returns a part embedding an assistant tool call.
func ToolCallPart(call ToolCall) ContentPart {
	p := newPart(ContentToolCall)
	p.ToolCall = &call
	return p
}

// ToolResultPart returns a part carrying the result of a previous tool call.
func ToolResultPart(toolCallID, result string) ContentPart {
	p := newPart(ContentToolResult)
	p.ToolCallID = toolCallID
	p.Result = result
	return p
}

// Validate checks that the part carries exactly the payload its variant
// requires.
func (p ContentPart) Validate() error {
	switch p.Type {
	case ContentText, ContentReasoning:
		if p.Text == "" {
			return Errorf(ErrInvalidMessage, "%s part has empty text", p.Type)
		}
	case ContentImageURL:
		if p.URL == "" {
			return Errorf(ErrInvalidMessage, "image_url part has empty url")
		}
	case ContentImage, ContentFile:
		if p.Data == "" {
			return Errorf(ErrInvalidMessage, "%s part has empty data", p.Type)
		}
	case ContentToolCall:
		if p.ToolCall == nil {
			return Errorf(ErrInvalidMessage, "tool_call part has no call")
		}
	case ContentToolResult:
		if p.ToolCallID == "" {
			return Errorf(ErrInvalidMessage, "tool_result part has no tool_call_id")
		}
	default:
		return Errorf(ErrInvalidMessage, "unknown content part type %q", p.Type)
	}
	return nil
}

// Message is one turn of a conversation. Content and Parts are mutually
// exclusive body representations: a plain string or a list of ContentParts.
type Message struct {
	Role    Role          `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`

	// ToolCalls is set on assistant messages requesting tool invocations.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID links a tool-role message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate checks the message invariants.
func (m Message) Validate() error {
	switch m.Role {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
	default:
		return Errorf(ErrInvalidMessage, "unknown role %q", m.Role)
	}
	if m.Role == RoleTool && m.ToolCallID == "" {
		return Errorf(ErrInvalidMessage, "tool message requires tool_call_id")
	}
	if m.Content != "" && len(m.Parts) > 0 {
		return Errorf(ErrInvalidMessage, "message has both string content and parts")
	}
	if m.Content == "" && len(m.Parts) == 0 && len(m.ToolCalls) == 0 {
		return Errorf(ErrInvalidMessage, "message has no content")
	}
	for i, part := range m.Parts {
		if err := part.Validate(); err != nil {
			return Errorf(ErrInvalidMessage, "part %d: %v", i, err)
		}
	}
	return nil
}

// Text flattens the message body to plain text: the string content, or the
// concatenation of its text parts.
func (m Message) Text() string {
	if m.Content != "" {
		return m.Content
	}
	var sb strings.Builder
	for _, part := range m.Parts {
		if part.Type == ContentText {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// Reasoning returns the concatenated reasoning parts, if any.
func (m Message) Reasoning() string {
	var sb strings.Builder
	for _, part := range m.Parts {
		if part.Type == ContentReasoning {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// Context is an ordered conversation. It is mutated only by appending and
// holds at most one system message, since providers reject multiples.
type Context struct {
	messages []Message
}

// NewContext returns an empty conversation.
func NewContext() *Context {
	return &Context{}
}

// Append validates and appends messages in order. A second system message is
// rejected with invalid_message.
func (c *Context) Append(messages ...Message) error {
	for _, msg := range messages {
		if err := msg.Validate(); err != nil {
			return err
		}
		if msg.Role == RoleSystem && c.hasSystem() {
			return Errorf(ErrInvalidMessage, "context already has a system message")
		}
		c.messages = append(c.messages, msg)
	}
	return nil
}

// AddSystem appends a system message.
func (c *Context) AddSystem(text string) error {
	return c.Append(Message{Role: RoleSystem, Content: text})
}

// AddUser appends a user message.
func (c *Context) AddUser(text string) error {
	return c.Append(Message{Role: RoleUser, Content: text})
}

// AddAssistant appends an assistant message.
func (c *Context) AddAssistant(text string) error {
	return c.Append(Message{Role: RoleAssistant, Content: text})
}

// AddToolResult appends a tool-role message answering a previous tool call.
func (c *Context) AddToolResult(toolCallID, result string) error {
	return c.Append(Message{Role: RoleTool, ToolCallID: toolCallID, Content: result})
}

// Messages returns a copy of the conversation in order.
func (c *Context) Messages() []Message {
	if c == nil {
		return nil
	}
	return append([]Message(nil), c.messages...)
}

// System returns the system message, if present.
func (c *Context) System() (Message, bool) {
	if c == nil {
		return Message{}, false
	}
	for _, msg := range c.messages {
		if msg.Role == RoleSystem {
			return msg, true
		}
	}
	return Message{}, false
}

// Len returns the number of messages.
func (c *Context) Len() int {
	if c == nil {
		return 0
	}
	return len(c.messages)
}

// Clone returns an independent copy of the context.
func (c *Context) Clone() *Context {
	if c == nil {
		return NewContext()
	}
	return &Context{messages: append([]Message(nil), c.messages...)}
}

func (c *Context) hasSystem() bool {
	_, ok := c.System()
	return ok
}

// ContextFromPrompt builds a single-user-message context, the common case for
// one-shot generation calls.
func ContextFromPrompt(prompt string) (*Context, error) {
	if prompt == "" {
		return nil, Errorf(ErrInvalidMessage, "prompt is empty")
	}
	ctx := NewContext()
	if err := ctx.AddUser(prompt); err != nil {
		return nil, err
	}
	return ctx, nil
}

func (c *Context) String() string {
	return fmt.Sprintf("Context(%d messages)", c.Len())
}

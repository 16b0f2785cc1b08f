package ai

// FinishReason records why the model stopped generating. Unknown provider
// values pass through as-is; the empty string means the provider reported
// nothing.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishContentFilter FinishReason = "content_filter"
)

// Usage carries token counts for a generation. Absent provider fields are
// zero.
type Usage struct {
	InputTokens     int `json:"input_tokens"`
	OutputTokens    int `json:"output_tokens"`
	TotalTokens     int `json:"total_tokens"`
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
	CachedTokens    int `json:"cached_tokens,omitempty"`
}

// Normalize fills TotalTokens from input+output when the provider omitted it.
func (u Usage) Normalize() Usage {
	if u.TotalTokens == 0 && (u.InputTokens != 0 || u.OutputTokens != 0) {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return u
}

// Merge folds non-zero fields of other into u. Streams report usage
// incrementally, so later values win when present.
func (u *Usage) Merge(other Usage) {
	if other.InputTokens != 0 {
		u.InputTokens = other.InputTokens
	}
	if other.OutputTokens != 0 {
		u.OutputTokens = other.OutputTokens
	}
	if other.TotalTokens != 0 {
		u.TotalTokens = other.TotalTokens
	}
	if other.ReasoningTokens != 0 {
		u.ReasoningTokens = other.ReasoningTokens
	}
	if other.CachedTokens != 0 {
		u.CachedTokens = other.CachedTokens
	}
	*u = u.Normalize()
}

// Response is the canonical non-streaming result. Context is the caller's
// conversation with the assistant message appended, ready for the next turn.
type Response struct {
	ID           string         `json:"id,omitempty"`
	Model        string         `json:"model"`
	Context      *Context       `json:"-"`
	Message      Message        `json:"message"`
	Usage        Usage          `json:"usage"`
	FinishReason FinishReason   `json:"finish_reason,omitempty"`
	Cost         float64        `json:"cost,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
	ProviderMeta map[string]any `json:"provider_meta,omitempty"`
}

// Text returns the assistant message flattened to plain text.
func (r *Response) Text() string {
	return r.Message.Text()
}

// ToolCalls returns the tool calls requested by the assistant message.
func (r *Response) ToolCalls() []ToolCall {
	return r.Message.ToolCalls
}

// EmbedResponse is the canonical embedding result: one vector per input.
type EmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
	Usage      Usage       `json:"usage"`
}

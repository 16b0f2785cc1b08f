package ai

import (
	"context"
	"iter"
	"strings"
	"sync"
)

// ChunkType identifies the variant of a StreamChunk.
type ChunkType string

const (
	// ChunkContent is a text content delta.
	ChunkContent ChunkType = "content"
	// ChunkReasoning is a reasoning (thinking) delta.
	ChunkReasoning ChunkType = "reasoning"
	// ChunkToolCall is an incremental tool-call delta: the first fragment
	// for an id carries the name, later ones only argument fragments.
	ChunkToolCall ChunkType = "tool_call"
	// ChunkMeta carries usage and finish reason, typically near the end.
	ChunkMeta ChunkType = "meta"
)

// StreamChunk is one unit of a streaming response. Exactly the fields of its
// variant are populated; tool_call chunks carry their call id under
// Metadata["id"].
type StreamChunk struct {
	Type         ChunkType      `json:"type"`
	Text         string         `json:"text,omitempty"`
	Name         string         `json:"name,omitempty"`
	Arguments    string         `json:"arguments,omitempty"`
	Usage        *Usage         `json:"usage,omitempty"`
	FinishReason FinishReason   `json:"finish_reason,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// ContentChunk returns a content delta chunk.
func ContentChunk(text string) StreamChunk {
	return StreamChunk{Type: ChunkContent, Text: text}
}

// ReasoningChunk returns a reasoning delta chunk.
func ReasoningChunk(text string) StreamChunk {
	return StreamChunk{Type: ChunkReasoning, Text: text}
}

// ToolCallChunk returns a tool-call delta chunk keyed by id.
func ToolCallChunk(id, name, arguments string) StreamChunk {
	return StreamChunk{
		Type:      ChunkToolCall,
		Name:      name,
		Arguments: arguments,
		Metadata:  map[string]any{"id": id},
	}
}

// MetaChunk returns a terminal metadata chunk.
func MetaChunk(usage *Usage, finishReason FinishReason) StreamChunk {
	return StreamChunk{Type: ChunkMeta, Usage: usage, FinishReason: finishReason}
}

// ToolCallID returns the call id of a tool_call chunk.
func (c StreamChunk) ToolCallID() string {
	if id, ok := c.Metadata["id"].(string); ok {
		return id
	}
	return ""
}

// StreamMeta is the terminal metadata of a stream: final usage, finish
// reason, and cost derived from catalog pricing. Cancelled is set when the
// stream was closed before exhaustion.
type StreamMeta struct {
	Usage        Usage        `json:"usage"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
	Cost         float64      `json:"cost,omitempty"`
	Cancelled    bool         `json:"cancelled,omitempty"`
}

// MetaFuture is the deferred terminal metadata of a stream. It resolves when
// the stream completes, errors, or is cancelled; consuming the chunk
// sequence to exhaustion always resolves it.
type MetaFuture struct {
	once sync.Once
	done chan struct{}
	meta StreamMeta
}

func newMetaFuture() *MetaFuture {
	return &MetaFuture{done: make(chan struct{})}
}

func (f *MetaFuture) resolve(meta StreamMeta) {
	f.once.Do(func() {
		f.meta = meta
		close(f.done)
	})
}

// Done returns a channel closed when the metadata is available.
func (f *MetaFuture) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the metadata resolves or ctx expires.
func (f *MetaFuture) Wait(ctx context.Context) (StreamMeta, error) {
	select {
	case <-f.done:
		return f.meta, nil
	case <-ctx.Done():
		return StreamMeta{}, &Error{Kind: ErrStream, Reason: "stream metadata not resolved before deadline", Cause: ctx.Err()}
	}
}

// chunkOrErr is the channel element between the coordinator worker and the
// consumer: a chunk, or a terminal mid-stream error.
type chunkOrErr struct {
	chunk StreamChunk
	err   error
}

// StreamResponse is a live streaming generation. Chunks are pulled lazily
// through Chunks; Meta resolves once the stream terminates. Abandoning the
// response without consuming or closing it leaks the HTTP body, so callers
// must either exhaust Chunks or call Close.
type StreamResponse struct {
	Provider string
	Model    Model

	chunks    chan chunkOrErr
	meta      *MetaFuture
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Chunks returns the lazy chunk sequence for range-over-func iteration.
// The sequence is finite and non-restartable; a mid-stream failure is
// yielded as the final element's error.
func (s *StreamResponse) Chunks() iter.Seq2[StreamChunk, error] {
	return func(yield func(StreamChunk, error) bool) {
		for item := range s.chunks {
			if !yield(item.chunk, item.err) {
				s.Close()
				return
			}
			if item.err != nil {
				return
			}
		}
	}
}

// Meta returns the deferred terminal metadata.
func (s *StreamResponse) Meta() *MetaFuture {
	return s.meta
}

// Close cancels the stream: the transport is closed, the worker stops, and
// the metadata future resolves with whatever usage accumulated. Closing an
// exhausted stream is a no-op.
func (s *StreamResponse) Close() error {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
	return nil
}

// Join exhausts the stream and assembles the canonical Response: content
// deltas concatenate into the assistant text, reasoning deltas (when
// present) become a reasoning part placed before the text part, and
// tool-call fragments accumulate into complete calls. Terminal usage, finish
// reason and cost come from the metadata future.
func (s *StreamResponse) Join(ctx context.Context, conversation *Context) (*Response, error) {
	var content, reasoning strings.Builder
	var calls toolCallAccumulator

	for chunk, err := range s.Chunks() {
		if err != nil {
			return nil, err
		}
		switch chunk.Type {
		case ChunkContent:
			content.WriteString(chunk.Text)
		case ChunkReasoning:
			reasoning.WriteString(chunk.Text)
		case ChunkToolCall:
			calls.add(chunk.ToolCallID(), chunk.Name, chunk.Arguments)
		case ChunkMeta:
			// Folded into the metadata future by the coordinator.
		}
	}

	meta, err := s.meta.Wait(ctx)
	if err != nil {
		return nil, err
	}

	message := Message{Role: RoleAssistant, ToolCalls: calls.finish()}
	if reasoning.Len() > 0 {
		// Reasoning renders before content in the joined message.
		message.Parts = append(message.Parts, ReasoningPart(reasoning.String()))
		if content.Len() > 0 {
			message.Parts = append(message.Parts, TextPart(content.String()))
		}
	} else {
		message.Content = content.String()
	}

	response := &Response{
		Model:        s.Model.String(),
		Message:      message,
		Usage:        meta.Usage,
		FinishReason: meta.FinishReason,
		Cost:         meta.Cost,
	}
	if conversation != nil {
		response.Context = conversation.Clone()
		response.Context.messages = append(response.Context.messages, message)
	}
	return response, nil
}

// toolCallAccumulator rebuilds complete tool calls from streamed fragments,
// keyed by call id in first-seen order.
type toolCallAccumulator struct {
	order    []string
	builders map[string]*toolCallBuilder
}

type toolCallBuilder struct {
	name      string
	arguments strings.Builder
}

func (a *toolCallAccumulator) add(id, name, arguments string) {
	if a.builders == nil {
		a.builders = map[string]*toolCallBuilder{}
	}
	builder, ok := a.builders[id]
	if !ok {
		builder = &toolCallBuilder{}
		a.builders[id] = builder
		a.order = append(a.order, id)
	}
	if name != "" {
		builder.name = name
	}
	builder.arguments.WriteString(arguments)
}

func (a *toolCallAccumulator) finish() []ToolCall {
	if len(a.order) == 0 {
		return nil
	}
	calls := make([]ToolCall, 0, len(a.order))
	for _, id := range a.order {
		builder := a.builders[id]
		calls = append(calls, ToolCall{
			ID:   id,
			Type: "function",
			Function: ToolCallFunction{
				Name:      builder.name,
				Arguments: builder.arguments.String(),
			},
		})
	}
	return SanitizeToolCalls(calls)
}

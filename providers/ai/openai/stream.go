package openai

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/modelmux/modelmux/internal/sse"
	"github.com/modelmux/modelmux/providers/ai"
)

// streamDecoder decodes Chat Completions SSE chunks. Tool-call fragments are
// keyed by choice index on the wire but by call id canonically, so the
// decoder remembers the id announced by the first fragment of each index.
type streamDecoder struct {
	callIDs map[int]string
}

func (d *streamDecoder) Decode(event sse.Event) ([]ai.StreamChunk, error) {
	var chunk streamChunk
	if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
		return nil, fmt.Errorf("invalid stream chunk: %w", err)
	}

	var out []ai.StreamChunk

	// The usage-only terminal chunk has an empty choices list when
	// stream_options.include_usage is on.
	if len(chunk.Choices) == 0 {
		if chunk.Usage != nil {
			usage := decodeUsage(chunk.Usage)
			out = append(out, ai.MetaChunk(&usage, ""))
		}
		return out, nil
	}

	choice := chunk.Choices[0]
	if choice.Delta.Reasoning != nil && *choice.Delta.Reasoning != "" {
		out = append(out, ai.ReasoningChunk(*choice.Delta.Reasoning))
	}
	if choice.Delta.Content != nil && *choice.Delta.Content != "" {
		out = append(out, ai.ContentChunk(*choice.Delta.Content))
	}
	for _, call := range choice.Delta.ToolCalls {
		if call.ID != "" {
			d.callIDs[call.Index] = call.ID
		}
		id := d.callIDs[call.Index]
		if id == "" {
			// Some compat providers omit ids entirely; synthesize a stable
			// one from the index.
			id = "call_" + strconv.Itoa(call.Index)
			d.callIDs[call.Index] = id
		}
		out = append(out, ai.ToolCallChunk(id, call.Function.Name, call.Function.Arguments))
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		var usage *ai.Usage
		if chunk.Usage != nil {
			u := decodeUsage(chunk.Usage)
			usage = &u
		}
		finish := decodeFinishReason(*choice.FinishReason, len(d.callIDs) > 0)
		out = append(out, ai.MetaChunk(usage, finish))
	} else if chunk.Usage != nil {
		usage := decodeUsage(chunk.Usage)
		out = append(out, ai.MetaChunk(&usage, ""))
	}
	return out, nil
}

package anthropic

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelmux/modelmux/internal/sse"
	"github.com/modelmux/modelmux/providers/ai"
)

// Decoder turns Messages API stream events into canonical chunks. It is
// stateful: tool-call ids and names arrive only on content_block_start, so
// the decoder remembers the currently open tool_use block for the
// input_json_delta fragments that follow. Exported for Bedrock reuse.
type Decoder struct {
	currentToolID string
}

// NewDecoder returns a fresh per-stream decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) Decode(event sse.Event) ([]ai.StreamChunk, error) {
	var ev streamEvent
	if err := json.Unmarshal([]byte(event.Data), &ev); err != nil {
		return nil, fmt.Errorf("invalid stream event: %w", err)
	}

	switch ev.Type {
	case "message_start":
		// Carries the input token snapshot; output tokens arrive later on
		// message_delta.
		if ev.Message == nil {
			return nil, nil
		}
		u := ev.Message.Usage
		usage := ai.Usage{
			InputTokens:  u.InputTokens,
			CachedTokens: u.CacheCreationInputTokens + u.CacheReadInputTokens,
		}
		return []ai.StreamChunk{ai.MetaChunk(&usage, "")}, nil

	case "content_block_start":
		if ev.ContentBlock == nil || ev.ContentBlock.Type != "tool_use" {
			return nil, nil
		}
		d.currentToolID = ev.ContentBlock.ID
		return []ai.StreamChunk{ai.ToolCallChunk(ev.ContentBlock.ID, ev.ContentBlock.Name, "")}, nil

	case "content_block_delta":
		if ev.Delta == nil {
			return nil, nil
		}
		switch ev.Delta.Type {
		case "text_delta":
			if ev.Delta.Text == "" {
				return nil, nil
			}
			return []ai.StreamChunk{ai.ContentChunk(ev.Delta.Text)}, nil
		case "thinking_delta":
			if ev.Delta.Thinking == "" {
				return nil, nil
			}
			return []ai.StreamChunk{ai.ReasoningChunk(ev.Delta.Thinking)}, nil
		case "input_json_delta":
			if ev.Delta.PartialJSON == "" {
				return nil, nil
			}
			return []ai.StreamChunk{ai.ToolCallChunk(d.currentToolID, "", ev.Delta.PartialJSON)}, nil
		}
		return nil, nil

	case "message_delta":
		var usage *ai.Usage
		if ev.Usage != nil {
			usage = &ai.Usage{OutputTokens: ev.Usage.OutputTokens}
		}
		var finish ai.FinishReason
		if ev.Delta != nil {
			finish = mapStopReason(ev.Delta.StopReason)
		}
		if usage == nil && finish == "" {
			return nil, nil
		}
		return []ai.StreamChunk{ai.MetaChunk(usage, finish)}, nil

	case "error":
		msg := "unknown stream error"
		if ev.Error != nil {
			msg = ev.Error.Message
		}
		return nil, errors.New(msg)

	case "content_block_stop", "message_stop", "ping":
		return nil, nil

	default:
		// Unknown event types are skipped for forward compatibility.
		return nil, nil
	}
}

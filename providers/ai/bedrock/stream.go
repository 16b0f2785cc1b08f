package bedrock

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelmux/modelmux/internal/sse"
	"github.com/modelmux/modelmux/providers/ai"
)

// converseStreamDecoder turns converse-stream events into canonical chunks.
// The event stream names the event type in the ":event-type" header, which
// the framer surfaces as Event.Name. Tool-call ids and names arrive only on
// contentBlockStart, so the decoder remembers them per block index for the
// input fragments that follow.
type converseStreamDecoder struct {
	toolIDs map[int]string
}

func newConverseStreamDecoder() *converseStreamDecoder {
	return &converseStreamDecoder{toolIDs: map[int]string{}}
}

type converseStreamStart struct {
	ContentBlockIndex int `json:"contentBlockIndex"`
	Start             struct {
		ToolUse *struct {
			ToolUseID string `json:"toolUseId"`
			Name      string `json:"name"`
		} `json:"toolUse"`
	} `json:"start"`
}

type converseStreamDelta struct {
	ContentBlockIndex int `json:"contentBlockIndex"`
	Delta             struct {
		Text    string `json:"text"`
		ToolUse *struct {
			Input string `json:"input"`
		} `json:"toolUse"`
		ReasoningContent *struct {
			Text string `json:"text"`
		} `json:"reasoningContent"`
	} `json:"delta"`
}

func (d *converseStreamDecoder) Decode(event sse.Event) ([]ai.StreamChunk, error) {
	if strings.Contains(strings.ToLower(event.Name), "exception") {
		var payload struct {
			Message string `json:"message"`
		}
		msg := event.Data
		if err := json.Unmarshal([]byte(event.Data), &payload); err == nil && payload.Message != "" {
			msg = payload.Message
		}
		return nil, errors.New(msg)
	}

	switch event.Name {
	case "contentBlockStart":
		var start converseStreamStart
		if err := json.Unmarshal([]byte(event.Data), &start); err != nil {
			return nil, fmt.Errorf("invalid stream event: %w", err)
		}
		if start.Start.ToolUse == nil {
			return nil, nil
		}
		d.toolIDs[start.ContentBlockIndex] = start.Start.ToolUse.ToolUseID
		return []ai.StreamChunk{ai.ToolCallChunk(start.Start.ToolUse.ToolUseID, start.Start.ToolUse.Name, "")}, nil

	case "contentBlockDelta":
		var delta converseStreamDelta
		if err := json.Unmarshal([]byte(event.Data), &delta); err != nil {
			return nil, fmt.Errorf("invalid stream event: %w", err)
		}
		switch {
		case delta.Delta.ToolUse != nil:
			if delta.Delta.ToolUse.Input == "" {
				return nil, nil
			}
			return []ai.StreamChunk{ai.ToolCallChunk(d.toolIDs[delta.ContentBlockIndex], "", delta.Delta.ToolUse.Input)}, nil
		case delta.Delta.ReasoningContent != nil && delta.Delta.ReasoningContent.Text != "":
			return []ai.StreamChunk{ai.ReasoningChunk(delta.Delta.ReasoningContent.Text)}, nil
		case delta.Delta.Text != "":
			return []ai.StreamChunk{ai.ContentChunk(delta.Delta.Text)}, nil
		}
		return nil, nil

	case "messageStop":
		var stop struct {
			StopReason string `json:"stopReason"`
		}
		if err := json.Unmarshal([]byte(event.Data), &stop); err != nil {
			return nil, fmt.Errorf("invalid stream event: %w", err)
		}
		return []ai.StreamChunk{ai.MetaChunk(nil, mapStopReason(stop.StopReason))}, nil

	case "metadata":
		var meta struct {
			Usage converseUsage `json:"usage"`
		}
		if err := json.Unmarshal([]byte(event.Data), &meta); err != nil {
			return nil, fmt.Errorf("invalid stream event: %w", err)
		}
		usage := ai.Usage{
			InputTokens:  meta.Usage.InputTokens,
			OutputTokens: meta.Usage.OutputTokens,
			TotalTokens:  meta.Usage.TotalTokens,
		}.Normalize()
		return []ai.StreamChunk{ai.MetaChunk(&usage, "")}, nil

	case "messageStart", "contentBlockStop":
		return nil, nil

	default:
		// Unknown event types are skipped for forward compatibility.
		return nil, nil
	}
}

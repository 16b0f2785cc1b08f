package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/modelmux/modelmux/internal/sse"
	"github.com/modelmux/modelmux/providers/ai"
)

// newCallID synthesizes a call id for functionCall parts, which carry none on
// the wire.
func newCallID() string {
	return "call_" + uuid.NewString()
}

// streamDecoder decodes streamGenerateContent events. Each event is a full
// generateResponse; text usually arrives as deltas, but some deployments
// resend the cumulative text, so the decoder diffs against what it already
// emitted. Tool calls arrive whole, never fragmented.
type streamDecoder struct {
	emittedText      string
	emittedReasoning string
}

func newStreamDecoder() *streamDecoder {
	return &streamDecoder{}
}

func (d *streamDecoder) Decode(event sse.Event) ([]ai.StreamChunk, error) {
	var resp generateResponse
	if err := json.Unmarshal([]byte(event.Data), &resp); err != nil {
		return nil, fmt.Errorf("invalid stream chunk: %w", err)
	}

	var out []ai.StreamChunk
	var finish ai.FinishReason
	hasToolCalls := false

	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		if cand.Content != nil {
			var texts, thoughts []string
			for _, p := range cand.Content.Parts {
				switch {
				case p.FunctionCall != nil:
					hasToolCalls = true
					out = append(out, ai.ToolCallChunk(newCallID(), p.FunctionCall.Name, string(p.FunctionCall.Args)))
				case p.Thought:
					thoughts = append(thoughts, p.Text)
				case p.Text != "":
					texts = append(texts, p.Text)
				}
			}
			if delta := d.textDelta(strings.Join(texts, ""), &d.emittedText); delta != "" {
				out = append(out, ai.ContentChunk(delta))
			}
			if delta := d.textDelta(strings.Join(thoughts, ""), &d.emittedReasoning); delta != "" {
				out = append(out, ai.ReasoningChunk(delta))
			}
		}
		finish = mapFinishReason(cand.FinishReason, hasToolCalls)
	}

	var usage *ai.Usage
	if resp.UsageMetadata != nil {
		u := decodeUsage(resp.UsageMetadata)
		usage = &u
	}
	if usage != nil || finish != "" {
		out = append(out, ai.MetaChunk(usage, finish))
	}
	return out, nil
}

// textDelta returns the unseen portion of chunk text. A chunk that restates
// already-emitted text as a prefix yields only the suffix; anything else is a
// plain delta appended to the emitted record.
func (d *streamDecoder) textDelta(text string, emitted *string) string {
	if text == "" {
		return ""
	}
	if strings.HasPrefix(text, *emitted) && len(text) > len(*emitted) {
		delta := text[len(*emitted):]
		*emitted = text
		return delta
	}
	if text == *emitted {
		return ""
	}
	*emitted += text
	return text
}

package openai

import "strings"

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// extractThink returns the chain-of-thought inlined in <think> tags, used by
// models like DeepSeek variants served over this dialect. A missing open tag
// treats the text from the start; the close tag is mandatory.
func extractThink(content string) string {
	start := strings.Index(content, thinkOpen)
	if start == -1 {
		start = 0
	} else {
		start += len(thinkOpen)
	}
	end := strings.Index(content, thinkClose)
	if end == -1 || end <= start {
		return ""
	}
	return strings.TrimSpace(content[start:end])
}

// stripThink removes the <think> block, leaving only the answer.
func stripThink(content string) string {
	start := strings.Index(content, thinkOpen)
	if start == -1 {
		start = 0
	}
	end := strings.Index(content, thinkClose)
	if end == -1 || end <= start {
		return content
	}
	return strings.TrimSpace(content[:start] + content[end+len(thinkClose):])
}

package ai

import (
	"testing"
)

func TestExtractProviderMeta(t *testing.T) {
	body := []byte(`{"id":"x","choices":[],"object":"chat.completion","system_fingerprint":"fp_1"}`)
	meta := ExtractProviderMeta(body, "id", "choices")
	if len(meta) != 2 {
		t.Fatalf("meta = %+v", meta)
	}
	if meta["system_fingerprint"] != "fp_1" || meta["object"] != "chat.completion" {
		t.Errorf("meta = %+v", meta)
	}
}

func TestExtractProviderMetaAllConsumed(t *testing.T) {
	if meta := ExtractProviderMeta([]byte(`{"id":"x"}`), "id"); meta != nil {
		t.Errorf("meta = %+v", meta)
	}
}

func TestExtractProviderMetaNonObject(t *testing.T) {
	if meta := ExtractProviderMeta([]byte(`[1,2]`)); meta != nil {
		t.Errorf("meta = %+v", meta)
	}
}

func TestSanitizeToolCalls(t *testing.T) {
	calls := []ToolCall{
		{ID: "c1", Type: "function", Function: ToolCallFunction{Name: "a", Arguments: `{"x":1}`}},
		{ID: "c2", Type: "function", Function: ToolCallFunction{Name: "b", Arguments: ""}},
		{ID: "c3", Type: "function", Function: ToolCallFunction{Name: "c", Arguments: `{not json at all`}},
	}
	sanitized := SanitizeToolCalls(calls)
	if len(sanitized) != 2 {
		t.Fatalf("sanitized = %+v", sanitized)
	}
	if sanitized[0].Function.Arguments != `{"x":1}` {
		t.Errorf("call 0 = %+v", sanitized[0])
	}
	if sanitized[1].ID != "c2" || sanitized[1].Function.Arguments != "{}" {
		t.Errorf("call 1 = %+v", sanitized[1])
	}
}

func TestSanitizeToolCallsEmpty(t *testing.T) {
	if got := SanitizeToolCalls(nil); got != nil {
		t.Errorf("got %+v", got)
	}
}

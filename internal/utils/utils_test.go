package utils

import (
	"net/http"
	"strings"
	"testing"
)

func TestTruncateString(t *testing.T) {
	if got := TruncateString("short", 10); got != "short" {
		t.Errorf("expected unchanged string, got %q", got)
	}
	long := strings.Repeat("a", 20)
	got := TruncateString(long, 5)
	if !strings.HasPrefix(got, "aaaaa...") {
		t.Errorf("expected truncated prefix, got %q", got)
	}
	if !strings.Contains(got, "total: 20") {
		t.Errorf("expected original length in suffix, got %q", got)
	}
}

func TestTruncateStringDefaultLimit(t *testing.T) {
	long := strings.Repeat("x", DefaultMaxStringLength+100)
	got := TruncateString(long, 0)
	if len(got) >= len(long) {
		t.Errorf("expected truncation at default limit, got %d chars", len(got))
	}
}

func TestIsSensitiveHeader(t *testing.T) {
	for _, name := range []string{"Authorization", "authorization", "X-Api-Key", "x-api-key", "Api-Key", "APIKEY", "X-Goog-Api-Key"} {
		if !IsSensitiveHeader(name) {
			t.Errorf("expected %q to be sensitive", name)
		}
	}
	for _, name := range []string{"Content-Type", "Accept", "X-Amz-Date", "anthropic-version"} {
		if IsSensitiveHeader(name) {
			t.Errorf("expected %q to be safe", name)
		}
	}
}

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer sk-secret")
	h.Set("X-Api-Key", "sk-ant-secret")
	h.Set("Content-Type", "application/json")

	redacted := RedactHeaders(h)
	if got := redacted.Get("Authorization"); got != "[REDACTED]" {
		t.Errorf("Authorization not redacted: %q", got)
	}
	if got := redacted.Get("X-Api-Key"); got != "[REDACTED]" {
		t.Errorf("X-Api-Key not redacted: %q", got)
	}
	if got := redacted.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type altered: %q", got)
	}
	// Original must be untouched.
	if got := h.Get("Authorization"); got != "Bearer sk-secret" {
		t.Errorf("original header mutated: %q", got)
	}
}

func TestCaptureRequestRedactsCredentials(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer sk-secret")
	h.Set("Content-Type", "application/json")

	capture := CaptureRequest("POST", "https://api.openai.com/v1/chat/completions", h, []byte(`{"model":"gpt-4.1"}`))
	if strings.Contains(capture, "sk-secret") {
		t.Fatalf("capture leaked credential: %s", capture)
	}
	if !strings.Contains(capture, "POST https://api.openai.com/v1/chat/completions") {
		t.Errorf("missing request line: %s", capture)
	}
	if !strings.Contains(capture, `{"model":"gpt-4.1"}`) {
		t.Errorf("missing body: %s", capture)
	}
}

func TestPtr(t *testing.T) {
	p := Ptr(0.7)
	if p == nil || *p != 0.7 {
		t.Errorf("Ptr(0.7) = %v", p)
	}
}

package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelmux/modelmux/internal/sse"
)

// streamTestAdapter decodes SSE data payloads that are already in the
// canonical chunk shape, which keeps the coordinator tests wire-agnostic.
type streamTestAdapter struct {
	fakeAdapter
}

func (a *streamTestAdapter) NewStreamDecoder(Model) StreamDecoder {
	return passthroughDecoder{}
}

type passthroughDecoder struct{}

func (passthroughDecoder) Decode(event sse.Event) ([]StreamChunk, error) {
	var chunk StreamChunk
	if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
		return nil, err
	}
	return []StreamChunk{chunk}, nil
}

func writeSSE(t *testing.T, w http.ResponseWriter, data string) {
	t.Helper()
	if _, err := w.Write([]byte("data: " + data + "\n\n")); err != nil {
		t.Errorf("write: %v", err)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func streamRequest(url string) *Request {
	return NewRequest(url, []byte(`{"stream":true}`))
}

func TestOpenStreamChunkFlow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeSSE(t, w, `{"type":"content","text":"Hello"}`)
		writeSSE(t, w, `{"type":"content","text":", world"}`)
		writeSSE(t, w, `{"type":"meta","usage":{"input_tokens":3,"output_tokens":2},"finish_reason":"stop"}`)
		writeSSE(t, w, `[DONE]`)
	}))
	defer server.Close()

	adapter := &streamTestAdapter{fakeAdapter{id: "faketest"}}
	model := Model{Provider: "faketest", Name: "model", Cost: ModelCost{Input: 0.000001, Output: 0.000002}}
	sr, err := OpenStream(context.Background(), adapter, model, streamRequest(server.URL), StreamConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var text strings.Builder
	var sawMeta bool
	for chunk, err := range sr.Chunks() {
		if err != nil {
			t.Fatalf("mid-stream error: %v", err)
		}
		switch chunk.Type {
		case ChunkContent:
			text.WriteString(chunk.Text)
		case ChunkMeta:
			sawMeta = true
		}
	}
	if text.String() != "Hello, world" {
		t.Errorf("text = %q", text.String())
	}
	if !sawMeta {
		t.Error("meta chunk should be published on the sequence")
	}

	meta, err := sr.Meta().Wait(context.Background())
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.Usage.InputTokens != 3 || meta.Usage.OutputTokens != 2 || meta.Usage.TotalTokens != 5 {
		t.Errorf("usage = %+v", meta.Usage)
	}
	if meta.FinishReason != FinishStop {
		t.Errorf("finish reason = %q", meta.FinishReason)
	}
	wantCost := 3*0.000001 + 2*0.000002
	if diff := meta.Cost - wantCost; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("cost = %v, want %v", meta.Cost, wantCost)
	}
}

func TestOpenStreamDoneStopsDecoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, `{"type":"content","text":"before"}`)
		writeSSE(t, w, `[DONE]`)
		writeSSE(t, w, `{"type":"content","text":"after"}`)
	}))
	defer server.Close()

	adapter := &streamTestAdapter{fakeAdapter{id: "faketest"}}
	sr, err := OpenStream(context.Background(), adapter, Model{Provider: "faketest", Name: "m"}, streamRequest(server.URL), StreamConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var texts []string
	for chunk, err := range sr.Chunks() {
		if err != nil {
			t.Fatalf("mid-stream error: %v", err)
		}
		texts = append(texts, chunk.Text)
	}
	if len(texts) != 1 || texts[0] != "before" {
		t.Errorf("texts = %v, events after the sentinel must not decode", texts)
	}
}

func TestOpenStreamHTTPErrorRedactsCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	req := streamRequest(server.URL)
	req.Header.Set("Authorization", "Bearer sk-secret-value")

	adapter := &streamTestAdapter{fakeAdapter{id: "faketest"}}
	_, err := OpenStream(context.Background(), adapter, Model{Provider: "faketest", Name: "m"}, req, StreamConfig{})
	if err == nil {
		t.Fatal("expected error")
	}
	apiErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("err = %T", err)
	}
	if apiErr.Status != http.StatusUnauthorized || !strings.Contains(apiErr.Reason, "invalid api key") {
		t.Errorf("err = %v", apiErr)
	}
	if strings.Contains(apiErr.RequestBody, "sk-secret-value") {
		t.Error("captured request leaked the API key")
	}
	if !strings.Contains(apiErr.RequestBody, "[REDACTED]") {
		t.Errorf("captured request should redact credentials: %s", apiErr.RequestBody)
	}
}

func TestOpenStreamCloseResolvesMeta(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, `{"type":"content","text":"partial"}`)
		<-release
	}))
	defer server.Close()
	defer close(release)

	adapter := &streamTestAdapter{fakeAdapter{id: "faketest"}}
	sr, err := OpenStream(context.Background(), adapter, Model{Provider: "faketest", Name: "m"}, streamRequest(server.URL), StreamConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for chunk, err := range sr.Chunks() {
		if err != nil {
			t.Fatalf("mid-stream error: %v", err)
		}
		if chunk.Text == "partial" {
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	meta, err := sr.Meta().Wait(ctx)
	if err != nil {
		t.Fatalf("meta must resolve after Close: %v", err)
	}
	if !meta.Cancelled {
		t.Error("meta should record cancellation")
	}
}

func TestOpenStreamReceiveTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, `{"type":"content","text":"first"}`)
		<-release
	}))
	defer server.Close()
	defer close(release)

	adapter := &streamTestAdapter{fakeAdapter{id: "faketest"}}
	sr, err := OpenStream(context.Background(), adapter, Model{Provider: "faketest", Name: "m"},
		streamRequest(server.URL), StreamConfig{ReceiveTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var streamErr error
	for _, err := range sr.Chunks() {
		if err != nil {
			streamErr = err
		}
	}
	if streamErr == nil {
		t.Fatal("expected a receive timeout error")
	}
	if !strings.Contains(streamErr.Error(), "no data received") {
		t.Errorf("err = %v", streamErr)
	}
}

func TestOpenStreamDecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, `not json`)
	}))
	defer server.Close()

	adapter := &streamTestAdapter{fakeAdapter{id: "faketest"}}
	sr, err := OpenStream(context.Background(), adapter, Model{Provider: "faketest", Name: "m"}, streamRequest(server.URL), StreamConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var streamErr error
	for _, err := range sr.Chunks() {
		if err != nil {
			streamErr = err
		}
	}
	apiErr, ok := streamErr.(*Error)
	if !ok || apiErr.Kind != ErrStream {
		t.Errorf("err = %v", streamErr)
	}
}

package ai

import (
	"context"
	"errors"
	"testing"
	"time"
)

// newTestStream builds a StreamResponse fed from a pre-baked chunk list,
// resolving the metadata future the way the coordinator worker does.
func newTestStream(meta StreamMeta, items ...chunkOrErr) *StreamResponse {
	ch := make(chan chunkOrErr, len(items))
	for _, item := range items {
		ch <- item
	}
	close(ch)
	sr := &StreamResponse{
		Provider: "faketest",
		Model:    Model{Provider: "faketest", Name: "model"},
		chunks:   ch,
		meta:     newMetaFuture(),
	}
	sr.meta.resolve(meta)
	return sr
}

func TestStreamJoinContent(t *testing.T) {
	conversation := NewContext()
	_ = conversation.AddUser("say hello")

	sr := newTestStream(
		StreamMeta{Usage: Usage{InputTokens: 3, OutputTokens: 2, TotalTokens: 5}, FinishReason: FinishStop, Cost: 0.0001},
		chunkOrErr{chunk: ContentChunk("Hello")},
		chunkOrErr{chunk: ContentChunk(", world")},
		chunkOrErr{chunk: MetaChunk(&Usage{TotalTokens: 5}, FinishStop)},
	)
	response, err := sr.Join(context.Background(), conversation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if response.Text() != "Hello, world" {
		t.Errorf("text = %q", response.Text())
	}
	if response.FinishReason != FinishStop {
		t.Errorf("finish reason = %q", response.FinishReason)
	}
	if response.Usage.TotalTokens != 5 {
		t.Errorf("usage = %+v", response.Usage)
	}
	if response.Cost != 0.0001 {
		t.Errorf("cost = %v", response.Cost)
	}
	if response.Context.Len() != 2 {
		t.Errorf("joined context len = %d, want 2", response.Context.Len())
	}
	if conversation.Len() != 1 {
		t.Error("Join must not mutate the caller's context")
	}
}

func TestStreamJoinReasoningBeforeContent(t *testing.T) {
	sr := newTestStream(StreamMeta{FinishReason: FinishStop},
		chunkOrErr{chunk: ReasoningChunk("think ")},
		chunkOrErr{chunk: ReasoningChunk("hard")},
		chunkOrErr{chunk: ContentChunk("answer")},
	)
	response, err := sr.Join(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parts := response.Message.Parts
	if len(parts) != 2 {
		t.Fatalf("parts = %+v", parts)
	}
	if parts[0].Type != ContentReasoning || parts[0].Text != "think hard" {
		t.Errorf("part 0 = %+v", parts[0])
	}
	if parts[1].Type != ContentText || parts[1].Text != "answer" {
		t.Errorf("part 1 = %+v", parts[1])
	}
	if response.Message.Reasoning() != "think hard" {
		t.Errorf("Reasoning() = %q", response.Message.Reasoning())
	}
}

func TestStreamJoinToolCalls(t *testing.T) {
	sr := newTestStream(StreamMeta{FinishReason: FinishToolCalls},
		chunkOrErr{chunk: ToolCallChunk("call_1", "get_weather", `{"city":`)},
		chunkOrErr{chunk: ToolCallChunk("call_2", "get_time", `{}`)},
		chunkOrErr{chunk: ToolCallChunk("call_1", "", `"Rome"}`)},
	)
	response, err := sr.Join(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := response.ToolCalls()
	if len(calls) != 2 {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[0].ID != "call_1" || calls[0].Function.Name != "get_weather" {
		t.Errorf("call 0 = %+v", calls[0])
	}
	if calls[0].Function.Arguments != `{"city":"Rome"}` {
		t.Errorf("arguments = %q", calls[0].Function.Arguments)
	}
	if calls[1].ID != "call_2" {
		t.Errorf("call 1 = %+v", calls[1])
	}
}

func TestStreamJoinPropagatesError(t *testing.T) {
	sr := newTestStream(StreamMeta{},
		chunkOrErr{chunk: ContentChunk("partial")},
		chunkOrErr{err: Errorf(ErrStream, "connection reset")},
	)
	_, err := sr.Join(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var canonical *Error
	if !errors.As(err, &canonical) || canonical.Kind != ErrStream {
		t.Errorf("err = %v", err)
	}
}

func TestStreamChunksEarlyBreakCloses(t *testing.T) {
	ch := make(chan chunkOrErr, 2)
	ch <- chunkOrErr{chunk: ContentChunk("a")}
	ch <- chunkOrErr{chunk: ContentChunk("b")}
	close(ch)

	cancelled := false
	sr := &StreamResponse{
		chunks: ch,
		meta:   newMetaFuture(),
		cancel: func() { cancelled = true },
	}
	for range sr.Chunks() {
		break
	}
	if !cancelled {
		t.Error("breaking out of Chunks must close the stream")
	}
}

func TestMetaFutureWait(t *testing.T) {
	future := newMetaFuture()
	go future.resolve(StreamMeta{FinishReason: FinishStop})
	meta, err := future.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.FinishReason != FinishStop {
		t.Errorf("meta = %+v", meta)
	}

	// resolve is once-only.
	future.resolve(StreamMeta{FinishReason: FinishLength})
	meta, _ = future.Wait(context.Background())
	if meta.FinishReason != FinishStop {
		t.Error("second resolve must not overwrite the first")
	}
}

func TestMetaFutureWaitDeadline(t *testing.T) {
	future := newMetaFuture()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := future.Wait(ctx)
	if err == nil {
		t.Fatal("expected deadline error")
	}
	var canonical *Error
	if !errors.As(err, &canonical) || canonical.Kind != ErrStream {
		t.Errorf("err = %v", err)
	}
}

func TestToolCallAccumulatorOrder(t *testing.T) {
	var acc toolCallAccumulator
	acc.add("b", "second", "")
	acc.add("a", "first", `{"x":`)
	acc.add("a", "", `1}`)
	calls := acc.finish()
	if len(calls) != 2 || calls[0].ID != "b" || calls[1].ID != "a" {
		t.Errorf("calls = %+v", calls)
	}
	if calls[1].Function.Arguments != `{"x":1}` {
		t.Errorf("arguments = %q", calls[1].Function.Arguments)
	}

	var empty toolCallAccumulator
	if empty.finish() != nil {
		t.Error("empty accumulator should finish to nil")
	}
}

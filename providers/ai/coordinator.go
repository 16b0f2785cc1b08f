package ai

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/modelmux/modelmux/internal/sse"
	"github.com/modelmux/modelmux/internal/utils"
)

// streamChannelBuffer is the small buffer between the coordinator worker and
// the consumer; the worker blocks once it fills, keeping producers paced by
// consumption.
const streamChannelBuffer = 8

// streamReadBuffer is the transport read size feeding the framer.
const streamReadBuffer = 4096

// StreamConfig carries the transport knobs for one streaming call.
type StreamConfig struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// ReceiveTimeout bounds the gap between transport reads; zero disables
	// it. Expiry terminates the stream with a canonical stream error.
	ReceiveTimeout time.Duration
}

// OpenStream owns the HTTP lifecycle of a streaming call: it sends the
// request, maps a non-2xx status to a canonical error before any chunk is
// produced, and starts a worker that feeds body chunks through the framer
// and the adapter's decoder onto the chunk sequence. Meta chunks fold into
// the terminal metadata, which resolves on completion, error or cancel.
func OpenStream(ctx context.Context, adapter Adapter, model Model, req *Request, cfg StreamConfig) (*StreamResponse, error) {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}

	streamCtx, cancel := context.WithCancel(ctx)

	httpReq, err := http.NewRequestWithContext(streamCtx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		cancel()
		return nil, &Error{Kind: ErrAPIRequest, Reason: "failed to create stream request", Cause: err}
	}
	httpReq.Header = req.Header.Clone()

	res, err := client.Do(httpReq)
	if err != nil {
		cancel()
		return nil, &Error{Kind: ErrAPIRequest, Reason: "stream request failed: " + err.Error(), Cause: err}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := utils.ReadAllLimited(res.Body)
		utils.CloseWithLog(res.Body)
		cancel()
		apiErr := FromStatus(res.StatusCode, body)
		apiErr.RequestBody = utils.CaptureRequest(req.Method, req.URL, req.Header, req.Body)
		return nil, apiErr
	}

	var framer sse.Framer
	if framed, ok := adapter.(Framed); ok {
		framer = framed.NewFramer()
	} else {
		framer = sse.NewTextFramer()
	}
	decoder := adapter.NewStreamDecoder(model)

	sr := &StreamResponse{
		Provider: adapter.ID(),
		Model:    model,
		chunks:   make(chan chunkOrErr, streamChannelBuffer),
		meta:     newMetaFuture(),
		cancel:   cancel,
	}
	go streamWorker(streamCtx, sr, res.Body, framer, decoder, cfg.ReceiveTimeout)
	return sr, nil
}

func streamWorker(ctx context.Context, sr *StreamResponse, body io.ReadCloser, framer sse.Framer, decoder StreamDecoder, receiveTimeout time.Duration) {
	timer := utils.NewTimer()
	var acc StreamMeta

	defer func() {
		acc.Usage = acc.Usage.Normalize()
		acc.Cost = sr.Model.CostFor(acc.Usage)
		sr.meta.resolve(acc)
		close(sr.chunks)
		utils.CloseWithLog(body)
		slog.Debug("stream terminated",
			"provider", sr.Provider,
			"model", sr.Model.Name,
			"cancelled", acc.Cancelled,
			"duration", timer.Elapsed(),
		)
	}()

	publish := func(item chunkOrErr) bool {
		select {
		case sr.chunks <- item:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var timedOut atomic.Bool
	var receiveTimer *time.Timer
	if receiveTimeout > 0 {
		receiveTimer = time.AfterFunc(receiveTimeout, func() {
			timedOut.Store(true)
			sr.cancel()
		})
		defer receiveTimer.Stop()
	}

	buf := make([]byte, streamReadBuffer)
	for {
		n, readErr := body.Read(buf)
		if receiveTimer != nil {
			receiveTimer.Reset(receiveTimeout)
		}

		if n > 0 {
			events, err := framer.Feed(buf[:n])
			if err != nil {
				publish(chunkOrErr{err: &Error{Kind: ErrStream, Reason: "frame error: " + err.Error(), Cause: err}})
				return
			}
			for _, event := range events {
				if strings.TrimSpace(event.Data) == "[DONE]" {
					return
				}
				chunks, err := decoder.Decode(event)
				if err != nil {
					publish(chunkOrErr{err: &Error{Kind: ErrStream, Reason: "decode error: " + err.Error(), Cause: err}})
					return
				}
				for _, chunk := range chunks {
					if chunk.Type == ChunkMeta {
						if chunk.Usage != nil {
							acc.Usage.Merge(*chunk.Usage)
						}
						if chunk.FinishReason != "" {
							acc.FinishReason = chunk.FinishReason
						}
					}
					if !publish(chunkOrErr{chunk: chunk}) {
						acc.Cancelled = true
						return
					}
				}
			}
		}

		if readErr != nil {
			switch {
			case errors.Is(readErr, io.EOF):
			case timedOut.Load():
				publish(chunkOrErr{err: Errorf(ErrStream, "no data received for %s", receiveTimeout)})
			case ctx.Err() != nil:
				acc.Cancelled = true
			default:
				publish(chunkOrErr{err: &Error{Kind: ErrStream, Reason: "transport error: " + readErr.Error(), Cause: readErr}})
			}
			return
		}
	}
}

package ai

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/modelmux/modelmux/internal/utils"
)

// Backoff tuning for non-streaming retries:
// backoff = min(initial * factor^attempt, max) + jitter.
const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.1
)

// Do sends a non-streaming request and returns the 2xx response body.
// Transport failures, 429 and 5xx responses are retried up to maxRetries
// times with jittered exponential backoff; a Retry-After header on 429
// overrides the computed backoff. Streaming requests never go through Do
// because mid-stream errors cannot be transparently retried.
func Do(ctx context.Context, client *http.Client, req *Request, maxRetries int) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr *Error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := computeBackoff(attempt - 1)
			if retryAfter := lastErr.retryAfter; retryAfter > 0 {
				backoff = retryAfter
			}
			slog.Warn("retrying request",
				"url", req.URL,
				"attempt", attempt,
				"backoff", backoff,
				"status", lastErr.Status,
			)
			select {
			case <-ctx.Done():
				return nil, &Error{Kind: ErrAPIRequest, Reason: "request cancelled while backing off", Cause: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		body, err := doOnce(ctx, client, req)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !err.Retryable() || ctx.Err() != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func doOnce(ctx context.Context, client *http.Client, req *Request) ([]byte, *Error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, &Error{Kind: ErrAPIRequest, Reason: "failed to create request", Cause: err}
	}
	httpReq.Header = req.Header.Clone()

	res, err := client.Do(httpReq)
	if err != nil {
		return nil, &Error{Kind: ErrAPIRequest, Reason: "request failed: " + err.Error(), Cause: err}
	}
	defer utils.CloseWithLog(res.Body)

	body, err := utils.ReadAllLimited(res.Body)
	if err != nil {
		return nil, &Error{Kind: ErrAPIResponse, Reason: "failed to read response body", Status: res.StatusCode, Cause: err}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		apiErr := FromStatus(res.StatusCode, body)
		apiErr.RequestBody = utils.CaptureRequest(req.Method, req.URL, req.Header, req.Body)
		apiErr.retryAfter = parseRetryAfter(res.Header.Get("Retry-After"))
		return nil, apiErr
	}
	return body, nil
}

// parseRetryAfter handles the delta-seconds form; the HTTP-date form is rare
// on LLM APIs and falls back to computed backoff.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// computeBackoff returns the wait before retry attempt (0-indexed):
// min(initial * factor^attempt, max) plus up to 10% random jitter.
func computeBackoff(attempt int) time.Duration {
	base := float64(initialBackoff) * math.Pow(backoffFactor, float64(attempt))
	if base > float64(maxBackoff) {
		base = float64(maxBackoff)
	}
	jitter := base * jitterFraction * rand.Float64() //nolint:gosec // non-cryptographic jitter is intentional
	return time.Duration(base + jitter)
}

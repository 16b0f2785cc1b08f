package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelmux/modelmux/internal/utils"
)

// ErrorKind classifies canonical errors. Every error surfaced by a public
// operation carries one of these kinds.
type ErrorKind string

const (
	ErrInvalidParameter ErrorKind = "invalid_parameter"
	ErrInvalidProvider  ErrorKind = "invalid_provider"
	ErrInvalidModel     ErrorKind = "invalid_model"
	ErrInvalidModelSpec ErrorKind = "invalid_model_spec"
	ErrInvalidSchema    ErrorKind = "invalid_schema"
	ErrInvalidMessage   ErrorKind = "invalid_message"
	ErrAPIRequest       ErrorKind = "api_request"
	ErrAPIResponse      ErrorKind = "api_response"
	ErrStream           ErrorKind = "stream"
	ErrValidation       ErrorKind = "validation"
	ErrUnknown          ErrorKind = "unknown"
)

// Error is the canonical error type. Kind drives programmatic handling,
// Reason is the human explanation, and the remaining fields carry whatever
// debugging context was available at the failure site. Bodies attached here
// have already passed through credential redaction.
type Error struct {
	Kind         ErrorKind `json:"kind"`
	Reason       string    `json:"reason"`
	Status       int       `json:"status,omitempty"`
	ResponseBody string    `json:"response_body,omitempty"`
	RequestBody  string    `json:"request_body,omitempty"`
	Cause        error     `json:"-"`

	// retryAfter carries a parsed Retry-After header for the retry loop.
	retryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the error may be retried for idempotent
// operations: transport failures, 429, and 5xx responses.
func (e *Error) Retryable() bool {
	if e.Kind != ErrAPIRequest {
		return false
	}
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Errorf builds a canonical error from a format string.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind to an underlying error, preserving it as the
// cause. An existing *Error passes through unchanged.
func WrapError(kind ErrorKind, err error, reason string) *Error {
	var canonical *Error
	if errors.As(err, &canonical) {
		return canonical
	}
	return &Error{Kind: kind, Reason: reason, Cause: err}
}

// FromStatus maps a non-2xx HTTP response to a canonical api_request error.
// The body is probed for a provider error message and attached truncated.
func FromStatus(status int, body []byte) *Error {
	reason := probeErrorMessage(body)
	if reason == "" {
		reason = http.StatusText(status)
	}
	return &Error{
		Kind:         ErrAPIRequest,
		Reason:       statusLabel(status) + ": " + reason,
		Status:       status,
		ResponseBody: utils.TruncateString(string(body), utils.DefaultMaxStringLength),
	}
}

func statusLabel(status int) string {
	switch {
	case status == http.StatusBadRequest:
		return "bad_request"
	case status == http.StatusUnauthorized:
		return "unauthorized"
	case status == http.StatusForbidden:
		return "forbidden"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status >= 500:
		return "server_error"
	default:
		return "http_error"
	}
}

// probeErrorMessage extracts a human reason from a provider error body.
// Fields are tried in a fixed order; the first non-empty string wins.
func probeErrorMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if errField, ok := payload["error"]; ok {
		switch v := errField.(type) {
		case map[string]any:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		case string:
			if v != "" {
				return v
			}
		}
	}
	for _, field := range []string{"message", "detail", "details", "error_description"} {
		if msg, ok := payload[field].(string); ok && msg != "" {
			return msg
		}
	}
	return ""
}

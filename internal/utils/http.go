package utils

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
)

// MaxResponseBodySize caps response body reads (10 MB). Enforced via
// io.LimitReader to prevent unbounded memory allocation from rogue responses.
const MaxResponseBodySize int64 = 10 * 1024 * 1024

// redactedValue replaces credential header values in captured requests.
const redactedValue = "[REDACTED]"

var sensitiveHeaderPattern = regexp.MustCompile(`(?i)api.?key`)

// CloseWithLog closes c and logs a warning on failure. Used in defer paths
// where a close error must not override the primary error.
func CloseWithLog(c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err.Error())
	}
}

// ReadAllLimited reads r up to MaxResponseBodySize bytes.
func ReadAllLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	return body, nil
}

// IsSensitiveHeader reports whether a header carries credentials and must
// never appear in logs or error payloads. Covers Authorization, X-Api-Key
// and any name containing "api key" in some spelling.
func IsSensitiveHeader(name string) bool {
	if strings.EqualFold(name, "Authorization") {
		return true
	}
	return sensitiveHeaderPattern.MatchString(name)
}

// RedactHeaders returns a copy of h with credential header values replaced.
func RedactHeaders(h http.Header) http.Header {
	redacted := make(http.Header, len(h))
	for name, values := range h {
		if IsSensitiveHeader(name) {
			redacted[name] = []string{redactedValue}
			continue
		}
		redacted[name] = append([]string(nil), values...)
	}
	return redacted
}

// CaptureRequest renders an outbound request for attachment to errors.
// Credential headers are redacted and the body truncated, so the result is
// safe to log or surface to callers.
func CaptureRequest(method, url string, header http.Header, body []byte) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", method, url)
	for name, values := range RedactHeaders(header) {
		fmt.Fprintf(&sb, "%s: %s\n", name, strings.Join(values, ", "))
	}
	if len(body) > 0 {
		sb.WriteString(TruncateString(string(body), DefaultMaxStringLength))
	}
	return sb.String()
}

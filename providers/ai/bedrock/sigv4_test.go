package bedrock

import (
	"strings"
	"testing"
	"time"

	"github.com/modelmux/modelmux/providers/ai"
)

func fixedClock() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func signedRequest(t *testing.T, adapter *Adapter, apiKey string) *ai.Request {
	t.Helper()
	req := ai.NewRequest("https://bedrock-runtime.us-east-1.amazonaws.com/model/amazon.nova-pro-v1:0/converse", []byte(`{"messages":[]}`))
	if err := adapter.Decorate(req, apiKey); err != nil {
		t.Fatalf("Decorate: %v", err)
	}
	return req
}

func TestDecorateSignsRequest(t *testing.T) {
	adapter := &Adapter{region: "us-east-1", secretKey: "test-secret", now: fixedClock}
	req := signedRequest(t, adapter, "AKIAEXAMPLE")

	if req.Header.Get("X-Amz-Date") != "20240101T000000Z" {
		t.Errorf("X-Amz-Date = %q", req.Header.Get("X-Amz-Date"))
	}
	// sha256 of the body, hex encoded.
	if got := req.Header.Get("X-Amz-Content-Sha256"); got != sha256Hex([]byte(`{"messages":[]}`)) {
		t.Errorf("X-Amz-Content-Sha256 = %q", got)
	}

	auth := req.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=AKIAEXAMPLE/20240101/us-east-1/bedrock/aws4_request") {
		t.Errorf("Authorization = %q", auth)
	}
	if !strings.Contains(auth, "SignedHeaders=content-type;host;x-amz-content-sha256;x-amz-date,") {
		t.Errorf("Authorization = %q", auth)
	}
	if !strings.Contains(auth, "Signature=") {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestDecorateDeterministic(t *testing.T) {
	adapter := &Adapter{region: "us-east-1", secretKey: "test-secret", now: fixedClock}
	first := signedRequest(t, adapter, "AKIAEXAMPLE")
	second := signedRequest(t, adapter, "AKIAEXAMPLE")
	if first.Header.Get("Authorization") != second.Header.Get("Authorization") {
		t.Error("signature must be deterministic for a fixed clock and identical request")
	}
}

func TestDecorateSessionToken(t *testing.T) {
	adapter := &Adapter{region: "us-east-1", secretKey: "test-secret", sessionToken: "session-token", now: fixedClock}
	req := signedRequest(t, adapter, "AKIAEXAMPLE")

	if req.Header.Get("X-Amz-Security-Token") != "session-token" {
		t.Errorf("X-Amz-Security-Token = %q", req.Header.Get("X-Amz-Security-Token"))
	}
	if !strings.Contains(req.Header.Get("Authorization"), "x-amz-security-token") {
		t.Errorf("session token must join the signed headers: %q", req.Header.Get("Authorization"))
	}
}

func TestDecorateCompositeKey(t *testing.T) {
	adapter := &Adapter{region: "us-east-1", now: fixedClock}
	req := signedRequest(t, adapter, "AKIAEXAMPLE:pair-secret")
	if !strings.Contains(req.Header.Get("Authorization"), "Credential=AKIAEXAMPLE/") {
		t.Errorf("Authorization = %q", req.Header.Get("Authorization"))
	}
}

func TestDecorateMissingSecret(t *testing.T) {
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	adapter := &Adapter{region: "us-east-1", now: fixedClock}
	req := ai.NewRequest("https://bedrock-runtime.us-east-1.amazonaws.com/model/amazon.nova-pro-v1:0/converse", nil)
	err := adapter.Decorate(req, "AKIAEXAMPLE")
	if err == nil || !strings.Contains(err.Error(), "AWS_SECRET_ACCESS_KEY") {
		t.Fatalf("err = %v", err)
	}
}

func TestDeriveSigningKeyChain(t *testing.T) {
	key := deriveSigningKey("secret", "20240101", "us-east-1", "bedrock")
	want := hmacSHA256(
		hmacSHA256(
			hmacSHA256(
				hmacSHA256([]byte("AWS4secret"), []byte("20240101")),
				[]byte("us-east-1")),
			[]byte("bedrock")),
		[]byte("aws4_request"))
	if string(key) != string(want) {
		t.Error("signing key derivation chain mismatch")
	}
}

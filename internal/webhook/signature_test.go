package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"testing"
)

const testSecret = "test-secret-at-least-32-chars-long-here"

func TestVerifySignature_Valid(t *testing.T) {
	payload := []byte(`{"ref":"refs/heads/main"}`)

	if err := VerifySignature(payload, Sign(payload, testSecret), testSecret); err != nil {
		t.Errorf("Expected valid signature to be accepted, got %v", err)
	}
}

func TestVerifySignature_LegacySHA1(t *testing.T) {
	payload := []byte(`{"ref":"refs/heads/main"}`)
	mac := hmac.New(sha1.New, []byte(testSecret))
	mac.Write(payload)
	signature := "sha1=" + hex.EncodeToString(mac.Sum(nil))

	if err := VerifySignature(payload, signature, testSecret); err != nil {
		t.Errorf("Expected sha1 signature to be accepted, got %v", err)
	}
}

func TestVerifySignature_Invalid(t *testing.T) {
	payload := []byte(`{"ref":"refs/heads/main"}`)
	signature := Sign(payload, "wrong-secret-at-least-32-chars-long-x")

	if err := VerifySignature(payload, signature, testSecret); err == nil {
		t.Error("Expected invalid signature to be rejected")
	}
}

func TestVerifySignature_RawBytes(t *testing.T) {
	// Same JSON document, different whitespace: only the bytes that were signed verify.
	signed := []byte(`{"ref": "refs/heads/main"}`)
	compact := []byte(`{"ref":"refs/heads/main"}`)

	if err := VerifySignature(compact, Sign(signed, testSecret), testSecret); err == nil {
		t.Error("Expected signature over different bytes to be rejected")
	}
}

func TestVerifySignature_MalformedSignature(t *testing.T) {
	payload := []byte(`{"ref":"refs/heads/main"}`)

	testCases := []struct {
		name      string
		signature string
	}{
		{"no prefix", "abc123def456"},
		{"unknown prefix", "md5=abc123def456"},
		{"no equals", "sha256abc123def456"},
		{"empty after prefix", "sha256="},
		{"not hex", "sha256=zzzz"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := VerifySignature(payload, tc.signature, testSecret); err == nil {
				t.Errorf("Expected malformed signature '%s' to be rejected", tc.signature)
			}
		})
	}
}

func TestSignatureFromHeader(t *testing.T) {
	tests := []struct {
		name   string
		sha256 string
		sha1   string
		want   string
	}{
		{"sha256 only", "sha256=aa", "", "sha256=aa"},
		{"sha1 only", "", "sha1=bb", "sha1=bb"},
		{"sha256 preferred", "sha256=aa", "sha1=bb", "sha256=aa"},
		{"none", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.sha256 != "" {
				h.Set(SignatureHeader, tt.sha256)
			}
			if tt.sha1 != "" {
				h.Set(LegacySignatureHeader, tt.sha1)
			}
			if got := SignatureFromHeader(h); got != tt.want {
				t.Errorf("SignatureFromHeader() = %q, want %q", got, tt.want)
			}
		})
	}
}

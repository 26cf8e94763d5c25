package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/google/go-github/v57/github"
)

const (
	SignatureHeader       = "X-Hub-Signature-256"
	LegacySignatureHeader = "X-Hub-Signature"
	SignaturePrefix       = "sha256="
)

// SignatureFromHeader returns the SHA-256 signature header, falling back to
// the legacy SHA-1 one. Empty means the sender did not sign the request.
func SignatureFromHeader(h http.Header) string {
	if sig := h.Get(SignatureHeader); sig != "" {
		return sig
	}
	return h.Get(LegacySignatureHeader)
}

// VerifySignature checks signature ("sha256=<hex>" or "sha1=<hex>") against
// the HMAC of the raw payload. The comparison is constant time.
func VerifySignature(payload []byte, signature, secret string) error {
	return github.ValidateSignature(signature, payload, []byte(secret))
}

// Sign returns the X-Hub-Signature-256 value GitHub would send for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
)

const (
	// MinSecretLength is the shortest webhook secret accepted without a warning.
	MinSecretLength = 32

	// MinEntropy is the minimum Shannon entropy (bits per character).
	MinEntropy = 3.5

	// GeneratedSecretBytes encodes to a 48 character URL-safe string.
	GeneratedSecretBytes = 36
)

var placeholderSecrets = map[string]bool{
	"your-webhook-secret":     true,
	"replace-with-secret":     true,
	"github-webhook-password": true,
	"topsecret":               true,
	"secret":                  true,
	"password":                true,
	"changeme":                true,
}

var placeholderFragments = []string{"your-", "replace", "changeme", "topsecret", "password"}

// ValidateSecret reports why a webhook secret is unsuitable, or nil.
// The webhook service still starts with a weak secret; callers log the
// error as a warning.
func ValidateSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("secret is empty")
	}

	lower := strings.ToLower(secret)
	if placeholderSecrets[lower] {
		return fmt.Errorf("secret is a placeholder value, generate one with 'counterhook webhook secret'")
	}
	for _, fragment := range placeholderFragments {
		if strings.Contains(lower, fragment) {
			return fmt.Errorf("secret appears to be a placeholder value")
		}
	}

	if len(secret) < MinSecretLength {
		return fmt.Errorf("secret too short (minimum %d characters, got %d)", MinSecretLength, len(secret))
	}

	if entropy := calculateEntropy(secret); entropy < MinEntropy {
		return fmt.Errorf("secret has insufficient entropy (%.2f < %.2f)", entropy, MinEntropy)
	}

	return nil
}

// GenerateSecret creates a cryptographically secure random secret.
func GenerateSecret() (string, error) {
	buf := make([]byte, GeneratedSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random secret: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// calculateEntropy computes the Shannon entropy of a string.
func calculateEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	freq := make(map[rune]int)
	for _, c := range s {
		freq[c]++
	}

	var entropy float64
	length := float64(len(s))
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}

	return entropy
}

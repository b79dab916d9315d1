// Package codex implements the OpenAI Codex OAuth2 flow: PKCE code
// generation, authorize-URL construction, authorization-code exchange,
// token refresh, and the local JSON credential/PKCE cache.
package codex

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/oauth2"
)

// PKCECodes is a verifier/challenge pair per RFC 7636 (S256 method).
type PKCECodes struct {
	CodeVerifier  string
	CodeChallenge string
}

// GeneratePKCECodes creates a cryptographically random code verifier
// (32 bytes, base64url without padding) and its SHA-256 challenge.
func GeneratePKCECodes() *PKCECodes {
	verifier := oauth2.GenerateVerifier()
	return &PKCECodes{
		CodeVerifier:  verifier,
		CodeChallenge: oauth2.S256ChallengeFromVerifier(verifier),
	}
}

// CreateState returns a 16-byte hex-encoded anti-CSRF correlation token.
func CreateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

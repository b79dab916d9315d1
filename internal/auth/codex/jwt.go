package codex

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// JWTClaimNamespace is the claim key under which OpenAI nests ChatGPT
// account details in access and ID tokens.
const JWTClaimNamespace = "https://api.openai.com/auth"

// JWTClaims is the subset of token claims the proxy cares about.
type JWTClaims struct {
	Email    string        `json:"email"`
	Exp      int64         `json:"exp"`
	Iat      int64         `json:"iat"`
	AuthInfo CodexAuthInfo `json:"https://api.openai.com/auth"`
}

// CodexAuthInfo contains ChatGPT account details from JWT claims.
type CodexAuthInfo struct {
	ChatgptAccountID string `json:"chatgpt_account_id"`
	ChatgptPlanType  string `json:"chatgpt_plan_type"`
	ChatgptUserID    string `json:"chatgpt_user_id"`
}

// ParseJWT extracts the claims from a JWT token string.
// The signature is NOT verified; the token was just minted to us by
// the token endpoint over TLS, so this is a local trust boundary only.
func ParseJWT(token string) (*JWTClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid JWT format: expected 3 parts, got %d", len(parts))
	}

	data, err := base64URLDecode(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode JWT payload: %w", err)
	}

	var claims JWTClaims
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, fmt.Errorf("failed to parse JWT claims: %w", err)
	}
	return &claims, nil
}

// ExtractAccountID pulls the ChatGPT account identifier out of an
// access token. A token without the claim is unusable for the Codex
// backend, so absence is an error.
func ExtractAccountID(accessToken string) (string, error) {
	claims, err := ParseJWT(accessToken)
	if err != nil {
		return "", fmt.Errorf("failed to extract accountId from token: %w", err)
	}
	if claims.AuthInfo.ChatgptAccountID == "" {
		return "", fmt.Errorf("failed to extract accountId from token: claim %s.chatgpt_account_id missing", JWTClaimNamespace)
	}
	return claims.AuthInfo.ChatgptAccountID, nil
}

// base64URLDecode decodes a base64url string, restoring the padding
// JWT segments omit.
func base64URLDecode(data string) ([]byte, error) {
	switch len(data) % 4 {
	case 2:
		data += "=="
	case 3:
		data += "="
	}
	return base64.URLEncoding.DecodeString(data)
}

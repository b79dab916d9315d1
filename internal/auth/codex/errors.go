package codex

import "errors"

// Sentinel errors for the auth taxonomy. Handlers and the client
// facade match on these to pick status codes and user guidance.
var (
	// ErrNotAuthenticated is returned when no credential file exists
	// or it cannot be read as credentials.
	ErrNotAuthenticated = errors.New("no Codex OAuth credentials found")

	// ErrCredentialsExpired is returned when credentials exist but are
	// past (or within the TTL headroom of) their expiry.
	ErrCredentialsExpired = errors.New("codex OAuth credentials expired; refresh required")

	// ErrMissingPKCEState is returned when a code exchange cannot find
	// the pending PKCE record for its state token.
	ErrMissingPKCEState = errors.New("missing PKCE state; call auth start and resubmit the full redirect URL (including state)")

	// ErrMissingAuthorizationCode is returned when no code could be
	// extracted from the pasted redirect URL or raw input.
	ErrMissingAuthorizationCode = errors.New("missing authorization code")
)

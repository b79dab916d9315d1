package codex

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// DefaultMinTTL is the headroom required for credentials to count as
// valid, so a token is never handed out seconds before it expires.
const DefaultMinTTL = 60 * time.Second

// DefaultMaxPKCEEntries bounds the pending-flow list when multiple
// authorization attempts are started without being completed.
const DefaultMaxPKCEEntries = 5

// OAuthCredentials is the persisted token material. All four fields
// are populated together on a successful exchange or refresh; the
// record is overwritten whole, never partially updated.
type OAuthCredentials struct {
	Access    string `json:"access"`
	Refresh   string `json:"refresh"`
	Expires   int64  `json:"expires"` // epoch millis
	AccountID string `json:"account_id"`
}

// Valid reports whether the credentials are usable with the default
// 60-second headroom.
func (c *OAuthCredentials) Valid() bool {
	return c.ValidFor(DefaultMinTTL)
}

// ValidFor reports whether the credentials will still be valid minTTL
// from now.
func (c *OAuthCredentials) ValidFor(minTTL time.Duration) bool {
	return c.Expires > time.Now().UnixMilli()+minTTL.Milliseconds()
}

// MockCredentials returns the fixed credentials used in mock mode.
func MockCredentials() *OAuthCredentials {
	return &OAuthCredentials{
		Access:    "mock-access-token",
		Refresh:   "mock-refresh-token",
		Expires:   time.Now().UnixMilli() + int64(time.Hour/time.Millisecond),
		AccountID: "mock-account",
	}
}

// SaveCredentials writes the credential file, creating parent
// directories as needed. Single local user; no writer coordination.
func SaveCredentials(creds *OAuthCredentials, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadCredentials reads the credential file. A missing or malformed
// file yields nil: the local cache is not a source of truth, so
// corruption degrades to "not authenticated" rather than an error.
func LoadCredentials(path string) *OAuthCredentials {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var creds OAuthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil
	}
	return &creds
}

// SavePKCE prepends a pending-flow record to the PKCE file, replacing
// any existing record with the same state and truncating the list to
// maxEntries (minimum 1). The file may hold either a single object or
// a list from older writes; both are normalized to a list.
func SavePKCE(state *PKCEState, path string, maxEntries int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	entries := readPKCEEntries(path)
	kept := make([]PKCEState, 0, len(entries)+1)
	kept = append(kept, *state)
	for _, e := range entries {
		if e.State != state.State {
			kept = append(kept, e)
		}
	}

	if maxEntries < 1 {
		maxEntries = 1
	}
	if len(kept) > maxEntries {
		kept = kept[:maxEntries]
	}

	data, err := json.MarshalIndent(kept, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadPKCE returns the pending-flow record for the given state, or nil
// if none matches. With an empty state it returns the single entry only
// when exactly one exists: with several flows in flight the caller must
// supply the correlation token.
func LoadPKCE(state, path string) *PKCEState {
	entries := readPKCEEntries(path)
	if len(entries) == 0 {
		return nil
	}

	if state != "" {
		for i := range entries {
			if entries[i].State == state {
				return &entries[i]
			}
		}
		return nil
	}

	if len(entries) == 1 {
		return &entries[0]
	}
	return nil
}

// readPKCEEntries tolerates a file holding a list, a single object, or
// garbage; unreadable content collapses to an empty list.
func readPKCEEntries(path string) []PKCEState {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		var single PKCEState
		if err := json.Unmarshal(data, &single); err != nil {
			return nil
		}
		return []PKCEState{single}
	}

	entries := make([]PKCEState, 0, len(raws))
	for _, raw := range raws {
		var e PKCEState
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	codexauth "github.com/pysugar/codex-nexus/internal/auth/codex"
	"github.com/pysugar/codex-nexus/internal/client"
)

// AuthHandler serves the OAuth login flow endpoints.
type AuthHandler struct {
	client *client.Client
}

func NewAuthHandler(c *client.Client) *AuthHandler {
	return &AuthHandler{client: c}
}

// Status handles GET /auth/codex/status.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.client.AuthStatusNow())
}

type startRequest struct {
	RedirectURI string `json:"redirect_uri"`
	Originator  string `json:"originator"`
}

// Start handles POST /auth/codex/start: generates PKCE material, persists
// it, and returns the authorization URL to open in a browser.
func (h *AuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.Body != nil {
		// Body is optional; ignore decode errors for an empty body.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.client.StartAuth(req.Originator, req.RedirectURI)
	if err != nil {
		log.Printf("⚠️ Failed to start auth flow: %v", err)
		writeOpenAIError(w, fmt.Sprintf("failed to start auth flow: %v", err), http.StatusInternalServerError)
		return
	}

	log.Printf("🔑 Auth flow started, state %s", result.State)
	writeJSON(w, http.StatusOK, result)
}

type exchangeRequest struct {
	Code string `json:"code"`
}

// Exchange handles POST /auth/codex/exchange: accepts an authorization
// code or a full redirect URL and trades it for credentials.
func (h *AuthHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOpenAIError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Code == "" {
		writeOpenAIError(w, "missing required field: code", http.StatusBadRequest)
		return
	}

	creds, err := h.client.ExchangeCode(r.Context(), req.Code)
	if err != nil {
		// A re-submitted code after a completed login is not an error:
		// when valid credentials already exist, report that instead.
		if existing := codexauth.LoadCredentials(h.client.Config().AuthFile); existing != nil && existing.Valid() {
			log.Printf("✅ Exchange skipped, already authenticated (account %s)", existing.AccountID)
			writeJSON(w, http.StatusOK, map[string]any{
				"status":     "already_authenticated",
				"account_id": existing.AccountID,
			})
			return
		}
		log.Printf("⚠️ Code exchange failed: %v", err)
		writeOpenAIError(w, fmt.Sprintf("code exchange failed: %v", err), http.StatusBadRequest)
		return
	}

	log.Printf("✅ Codex authentication complete (account %s)", creds.AccountID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "authenticated",
		"account_id": creds.AccountID,
	})
}

// Refresh handles POST /auth/codex/refresh: forces a token refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	creds, err := h.client.Refresh(r.Context())
	if err != nil {
		log.Printf("⚠️ Token refresh failed: %v", err)
		writeOpenAIError(w, fmt.Sprintf("token refresh failed: %v", err), http.StatusBadRequest)
		return
	}

	log.Printf("🔄 Codex credentials refreshed (account %s)", creds.AccountID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "refreshed",
		"account_id": creds.AccountID,
		"expires":    creds.Expires,
	})
}

const callbackSuccessHTML = `<!DOCTYPE html>
<html>
<head><title>Codex Nexus</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h2>✅ Authentication successful</h2>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`

// Callback handles GET /auth/callback (and /auth/codex/callback), the
// OAuth redirect target. It exchanges the code immediately so the flow
// completes without a manual paste.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		desc := query.Get("error_description")
		log.Printf("⚠️ OAuth callback error: %s %s", errParam, desc)
		writeOpenAIError(w, fmt.Sprintf("authorization failed: %s %s", errParam, desc), http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		writeOpenAIError(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	creds, err := h.client.ExchangeCode(r.Context(), r.URL.RawQuery)
	if err != nil {
		log.Printf("⚠️ Callback exchange failed: %v", err)
		writeOpenAIError(w, fmt.Sprintf("code exchange failed: %v", err), http.StatusBadRequest)
		return
	}

	log.Printf("✅ Codex authentication complete (account %s)", creds.AccountID)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(callbackSuccessHTML))
}

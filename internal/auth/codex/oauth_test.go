package codex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestBuildAuthorizeURL(t *testing.T) {
	client := NewOAuthClient()
	pkce, authorizeURL, err := client.BuildAuthorizeURL("pi", "")
	if err != nil {
		t.Fatalf("BuildAuthorizeURL() error: %v", err)
	}

	u, err := url.Parse(authorizeURL)
	if err != nil {
		t.Fatalf("authorize URL does not parse: %v", err)
	}
	q := u.Query()

	if got := q.Get("client_id"); got != ClientID {
		t.Errorf("client_id = %q", got)
	}
	if got := q.Get("redirect_uri"); got != RedirectURI {
		t.Errorf("redirect_uri = %q", got)
	}
	if got := q.Get("response_type"); got != "code" {
		t.Errorf("response_type = %q", got)
	}
	if got := q.Get("code_challenge_method"); got != "S256" {
		t.Errorf("code_challenge_method = %q", got)
	}
	if q.Get("code_challenge") == "" {
		t.Error("code_challenge missing")
	}
	if got := q.Get("state"); got != pkce.State {
		t.Errorf("state = %q, want %q", got, pkce.State)
	}
	if got := q.Get("originator"); got != "pi" {
		t.Errorf("originator = %q", got)
	}
	if got := q.Get("codex_cli_simplified_flow"); got != "true" {
		t.Errorf("codex_cli_simplified_flow = %q", got)
	}
	if !strings.Contains(q.Get("scope"), "offline_access") {
		t.Errorf("scope = %q, want offline_access included", q.Get("scope"))
	}
	if pkce.RedirectURI != "" {
		t.Errorf("default flow should not record a custom redirect, got %q", pkce.RedirectURI)
	}
}

func TestBuildAuthorizeURL_CustomRedirect(t *testing.T) {
	client := NewOAuthClient()
	custom := "http://localhost:9999/done"
	pkce, authorizeURL, err := client.BuildAuthorizeURL("pi", custom)
	if err != nil {
		t.Fatalf("BuildAuthorizeURL() error: %v", err)
	}

	u, _ := url.Parse(authorizeURL)
	q := u.Query()

	// The URL still advertises the registered redirect; the custom one
	// rides inside the state envelope.
	if got := q.Get("redirect_uri"); got != RedirectURI {
		t.Errorf("redirect_uri = %q, want registered %q", got, RedirectURI)
	}
	rawState, redirect := DecodeState(q.Get("state"))
	if rawState != pkce.State {
		t.Errorf("decoded state = %q, want %q", rawState, pkce.State)
	}
	if redirect != custom {
		t.Errorf("decoded redirect = %q, want %q", redirect, custom)
	}
	if pkce.RedirectURI != custom {
		t.Errorf("pkce.RedirectURI = %q, want %q", pkce.RedirectURI, custom)
	}
}

func TestDecodeState_RoundTrip(t *testing.T) {
	encoded := EncodeStateWithRedirect("abc123", "http://localhost:3000/cb")
	state, redirect := DecodeState(encoded)
	if state != "abc123" || redirect != "http://localhost:3000/cb" {
		t.Errorf("DecodeState() = (%q, %q)", state, redirect)
	}
}

func TestDecodeState_Fallback(t *testing.T) {
	cases := []string{
		"plain-state-value",
		"not!base64url",
		"aGVsbG8", // decodes but not JSON
	}
	for _, in := range cases {
		state, redirect := DecodeState(in)
		if state != in || redirect != "" {
			t.Errorf("DecodeState(%q) = (%q, %q), want passthrough", in, state, redirect)
		}
	}
}

func TestParseAuthorizationInput(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantCode  string
		wantState string
	}{
		{"full URL", "http://localhost:1455/auth/callback?code=abc&state=xyz", "abc", "xyz"},
		{"https URL", "https://example.com/cb?code=abc", "abc", ""},
		{"code hash state", "abc#xyz", "abc", "xyz"},
		{"query string", "code=abc&state=xyz", "abc", "xyz"},
		{"bare code", "abc", "abc", ""},
		{"whitespace", "  abc  ", "abc", ""},
		{"empty", "", "", ""},
		// A URL with no code query falls through every extraction step,
		// so the whole trimmed input is treated as the code.
		{"URL without code", "http://localhost:1455/auth/callback?error=denied", "http://localhost:1455/auth/callback?error=denied", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, state := ParseAuthorizationInput(tt.input)
			if code != tt.wantCode || state != tt.wantState {
				t.Errorf("ParseAuthorizationInput(%q) = (%q, %q), want (%q, %q)",
					tt.input, code, state, tt.wantCode, tt.wantState)
			}
		})
	}
}

func newTestOAuthClient(tokenURL string) *OAuthClient {
	return &OAuthClient{
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		authURL:     AuthURL,
		tokenURL:    tokenURL,
		clientID:    ClientID,
		redirectURI: RedirectURI,
	}
}

func TestExchangeAuthorizationCode(t *testing.T) {
	accessToken := makeToken(t, map[string]any{
		JWTClaimNamespace: map[string]any{"chatgpt_account_id": "acct-test"},
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("code"); got != "the-code" {
			t.Errorf("code = %q", got)
		}
		if got := r.PostForm.Get("code_verifier"); got != "the-verifier" {
			t.Errorf("code_verifier = %q", got)
		}
		if got := r.PostForm.Get("redirect_uri"); got != RedirectURI {
			t.Errorf("redirect_uri = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"` + accessToken + `","refresh_token":"rt-1","expires_in":3600}`))
	}))
	defer server.Close()

	client := newTestOAuthClient(server.URL)
	creds, err := client.ExchangeAuthorizationCode(context.Background(), "the-code", "the-verifier", "")
	if err != nil {
		t.Fatalf("ExchangeAuthorizationCode() error: %v", err)
	}

	if creds.Access != accessToken {
		t.Error("access token not preserved")
	}
	if creds.Refresh != "rt-1" {
		t.Errorf("refresh = %q", creds.Refresh)
	}
	if creds.AccountID != "acct-test" {
		t.Errorf("account id = %q", creds.AccountID)
	}
	wantMin := time.Now().UnixMilli() + 3500*1000
	if creds.Expires < wantMin {
		t.Errorf("expires %d too soon", creds.Expires)
	}
}

func TestRefreshAccessToken(t *testing.T) {
	accessToken := makeToken(t, map[string]any{
		JWTClaimNamespace: map[string]any{"chatgpt_account_id": "acct-r"},
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if got := r.PostForm.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("refresh_token"); got != "rt-old" {
			t.Errorf("refresh_token = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"` + accessToken + `","refresh_token":"rt-new","expires_in":1800}`))
	}))
	defer server.Close()

	client := newTestOAuthClient(server.URL)
	creds, err := client.RefreshAccessToken(context.Background(), "rt-old")
	if err != nil {
		t.Fatalf("RefreshAccessToken() error: %v", err)
	}
	if creds.Refresh != "rt-new" {
		t.Errorf("refresh = %q, want rt-new", creds.Refresh)
	}
	if creds.AccountID != "acct-r" {
		t.Errorf("account id = %q", creds.AccountID)
	}
}

func TestRequestToken_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	client := newTestOAuthClient(server.URL)
	_, err := client.ExchangeAuthorizationCode(context.Background(), "bad", "v", "")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "invalid_grant") {
		t.Errorf("error should include server body, got %v", err)
	}
}

func TestRequestToken_MissingFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"a.b.c"}`))
	}))
	defer server.Close()

	client := newTestOAuthClient(server.URL)
	if _, err := client.ExchangeAuthorizationCode(context.Background(), "c", "v", ""); err == nil {
		t.Fatal("expected error for response missing refresh_token/expires_in")
	}
}

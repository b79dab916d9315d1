package codex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// OAuth configuration constants for OpenAI Codex.
const (
	AuthURL  = "https://auth.openai.com/oauth/authorize"
	TokenURL = "https://auth.openai.com/oauth/token"
	ClientID = "app_EMoamEEZ73f0CkXaXp7hrann"

	// RedirectURI is the only redirect the authorization server has
	// whitelisted for this client. Callers that listen elsewhere get
	// their URI smuggled through the state parameter instead.
	RedirectURI = "http://localhost:1455/auth/callback"

	Scope = "openid profile email offline_access"
)

// PKCEState is a pending authorization attempt: the verifier that must
// accompany the code exchange, the correlation state, and the caller's
// logical redirect URI when it differs from the registered one.
type PKCEState struct {
	Verifier    string `json:"verifier"`
	State       string `json:"state"`
	CreatedAt   int64  `json:"created_at"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// OAuthClient performs the HTTP legs of the Codex OAuth flow.
type OAuthClient struct {
	httpClient  *http.Client
	authURL     string
	tokenURL    string
	clientID    string
	redirectURI string
}

// NewOAuthClient creates an OAuthClient against the production OpenAI
// authorization server.
func NewOAuthClient() *OAuthClient {
	return &OAuthClient{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		authURL:     AuthURL,
		tokenURL:    TokenURL,
		clientID:    ClientID,
		redirectURI: RedirectURI,
	}
}

// BuildAuthorizeURL generates fresh PKCE material and constructs the
// browser authorize URL. The URL always advertises the registered
// RedirectURI; when customRedirectURI points somewhere else, it is
// embedded inside the state parameter (see EncodeStateWithRedirect) so
// it survives the round trip without the IdP knowing about it.
func (o *OAuthClient) BuildAuthorizeURL(originator string, customRedirectURI string) (*PKCEState, string, error) {
	codes := GeneratePKCECodes()
	state, err := CreateState()
	if err != nil {
		return nil, "", err
	}

	pkce := &PKCEState{
		Verifier:  codes.CodeVerifier,
		State:     state,
		CreatedAt: time.Now().UnixMilli(),
	}

	wireState := state
	if customRedirectURI != "" && customRedirectURI != o.redirectURI {
		pkce.RedirectURI = customRedirectURI
		wireState = EncodeStateWithRedirect(state, customRedirectURI)
	}

	conf := &oauth2.Config{
		ClientID:    o.clientID,
		RedirectURL: o.redirectURI,
		Scopes:      strings.Fields(Scope),
		Endpoint: oauth2.Endpoint{
			AuthURL:  o.authURL,
			TokenURL: o.tokenURL,
		},
	}

	authorizeURL := conf.AuthCodeURL(wireState,
		oauth2.SetAuthURLParam("code_challenge", codes.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("id_token_add_organizations", "true"),
		oauth2.SetAuthURLParam("codex_cli_simplified_flow", "true"),
		oauth2.SetAuthURLParam("originator", originator),
	)
	return pkce, authorizeURL, nil
}

// EncodeStateWithRedirect packs the raw state and a custom redirect URI
// into a base64url JSON envelope {"s":...,"r":...}. This is a transport
// workaround for the single-whitelisted-redirect constraint, not an
// integrity mechanism: the value is not signed.
func EncodeStateWithRedirect(state, redirectURI string) string {
	payload, _ := json.Marshal(map[string]string{"s": state, "r": redirectURI})
	return base64.RawURLEncoding.EncodeToString(payload)
}

// DecodeState unpacks a state parameter produced by
// EncodeStateWithRedirect. Any failure (bad base64, bad JSON, missing
// key) falls back to treating the whole input as the raw state with no
// embedded redirect; it never fails.
func DecodeState(state string) (rawState string, redirectURI string) {
	decoded, err := base64URLDecode(state)
	if err != nil {
		return state, ""
	}
	var payload struct {
		S *string `json:"s"`
		R *string `json:"r"`
	}
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return state, ""
	}
	rawState = state
	if payload.S != nil {
		rawState = *payload.S
	}
	if payload.R != nil {
		redirectURI = *payload.R
	}
	return rawState, redirectURI
}

// ParseAuthorizationInput accepts whatever the user pastes back after
// authorizing: a full redirect URL, a "code#state" fragment, a raw
// query string, or a bare code. Returns empty strings for anything it
// cannot find.
func ParseAuthorizationInput(value string) (code string, state string) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return "", ""
	}

	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if u, err := url.Parse(raw); err == nil {
			q := u.Query()
			if c := q.Get("code"); c != "" {
				return c, q.Get("state")
			}
		}
	}

	if i := strings.Index(raw, "#"); i >= 0 {
		return raw[:i], raw[i+1:]
	}

	if strings.Contains(raw, "code=") {
		q, _ := url.ParseQuery(raw)
		return q.Get("code"), q.Get("state")
	}

	return raw, ""
}

// ExchangeAuthorizationCode trades an authorization code plus its PKCE
// verifier for credentials. redirectURI may be empty to use the
// registered default.
func (o *OAuthClient) ExchangeAuthorizationCode(ctx context.Context, code, verifier, redirectURI string) (*OAuthCredentials, error) {
	if redirectURI == "" {
		redirectURI = o.redirectURI
	}
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {o.clientID},
		"code":          {code},
		"code_verifier": {verifier},
		"redirect_uri":  {redirectURI},
	}
	return o.requestToken(ctx, data, "token exchange")
}

// RefreshAccessToken mints fresh credentials from a refresh token.
func (o *OAuthClient) RefreshAccessToken(ctx context.Context, refreshToken string) (*OAuthCredentials, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {o.clientID},
		"refresh_token": {refreshToken},
	}
	return o.requestToken(ctx, data, "token refresh")
}

func (o *OAuthClient) requestToken(ctx context.Context, data url.Values, op string) (*OAuthCredentials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", op, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s failed: %d %s", op, resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken  string      `json:"access_token"`
		RefreshToken string      `json:"refresh_token"`
		ExpiresIn    json.Number `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%s: failed to parse response: %w", op, err)
	}

	expiresIn, numErr := payload.ExpiresIn.Int64()
	if payload.AccessToken == "" || payload.RefreshToken == "" || numErr != nil {
		return nil, fmt.Errorf("%s response missing fields", op)
	}

	accountID, err := ExtractAccountID(payload.AccessToken)
	if err != nil {
		return nil, err
	}

	return &OAuthCredentials{
		Access:    payload.AccessToken,
		Refresh:   payload.RefreshToken,
		Expires:   time.Now().UnixMilli() + expiresIn*1000,
		AccountID: accountID,
	}, nil
}

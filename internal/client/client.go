// Package client is the embedding-friendly facade over the Codex
// OAuth flow, the credential cache, and the responses stream. The CLI
// and the HTTP handlers are both thin wrappers around it.
package client

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	codexauth "github.com/pysugar/codex-nexus/internal/auth/codex"
	"github.com/pysugar/codex-nexus/internal/config"
	"github.com/pysugar/codex-nexus/internal/proxy/mappers"
	codexapi "github.com/pysugar/codex-nexus/internal/upstream/codex"
)

// ErrUnsupportedModel rejects requests for models outside the fixed
// allow-list before any network interaction.
var ErrUnsupportedModel = errors.New("unsupported model; use nexus/codex")

// ErrNoMessages rejects requests with an empty messages list.
var ErrNoMessages = errors.New("messages must not be empty")

var supportedModels = map[string]bool{
	"nexus/codex":           true,
	"nexus/codex-responses": true,
	"openai-codex":          true,
}

// SupportedModels returns the fixed model allow-list.
func SupportedModels() []string {
	return []string{"nexus/codex", "nexus/codex-responses", "openai-codex"}
}

// IsSupportedModel reports whether model is on the allow-list.
func IsSupportedModel(model string) bool {
	return supportedModels[model]
}

// Client combines the flow engine, credential store, translator and
// event consumer for one local account.
type Client struct {
	cfg      config.Config
	oauth    *codexauth.OAuthClient
	upstream *codexapi.Client

	// refreshMu serializes refreshes within this process so two
	// callers seeing the same stale token issue one POST, not two.
	// Cross-process the files stay last-writer-wins.
	refreshMu sync.Mutex
}

// New builds a Client from an explicit configuration value.
func New(cfg config.Config) *Client {
	if cfg.Model == "" {
		cfg.Model = config.DefaultModel
	}
	if cfg.Originator == "" {
		cfg.Originator = config.DefaultOriginator
	}
	return &Client{
		cfg:      cfg,
		oauth:    codexauth.NewOAuthClient(),
		upstream: codexapi.NewClient(cfg.Originator),
	}
}

// Config returns the effective configuration the client was built with.
func (c *Client) Config() config.Config {
	return c.cfg
}

// AuthStatus describes the persisted credential state.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Expires       int64  `json:"expires,omitempty"`
	AccountID     string `json:"account_id,omitempty"`
	Valid         bool   `json:"valid,omitempty"`
}

// AuthStatusNow inspects the credential file without touching the
// network.
func (c *Client) AuthStatusNow() AuthStatus {
	creds := codexauth.LoadCredentials(c.cfg.AuthFile)
	if creds == nil {
		return AuthStatus{}
	}
	return AuthStatus{
		Authenticated: true,
		Expires:       creds.Expires,
		AccountID:     creds.AccountID,
		Valid:         creds.Valid(),
	}
}

// AuthStartResult is what a caller needs to drive the browser leg of
// the flow.
type AuthStartResult struct {
	AuthorizeURL string `json:"authorize_url"`
	RedirectURI  string `json:"redirect_uri"`
	State        string `json:"state"`
}

// StartAuth builds an authorize URL and persists the PKCE record so a
// later exchange can find the verifier. redirectURI may be empty to
// use the registered default.
func (c *Client) StartAuth(originator, redirectURI string) (*AuthStartResult, error) {
	if originator == "" {
		originator = c.cfg.Originator
	}
	pkce, authorizeURL, err := c.oauth.BuildAuthorizeURL(originator, redirectURI)
	if err != nil {
		return nil, err
	}
	if err := codexauth.SavePKCE(pkce, c.cfg.PKCEFile, codexauth.DefaultMaxPKCEEntries); err != nil {
		return nil, fmt.Errorf("failed to persist PKCE state: %w", err)
	}
	return &AuthStartResult{
		AuthorizeURL: authorizeURL,
		RedirectURI:  codexauth.RedirectURI,
		State:        pkce.State,
	}, nil
}

// ExchangeCode turns a pasted redirect URL (or bare code) into
// persisted credentials. In mock mode it short-circuits to the fixed
// mock credentials.
func (c *Client) ExchangeCode(ctx context.Context, codeOrURL string) (*codexauth.OAuthCredentials, error) {
	code, state := codexauth.ParseAuthorizationInput(codeOrURL)
	if code == "" {
		return nil, codexauth.ErrMissingAuthorizationCode
	}

	if c.cfg.MockMode {
		creds := codexauth.MockCredentials()
		if err := codexauth.SaveCredentials(creds, c.cfg.AuthFile); err != nil {
			return nil, err
		}
		return creds, nil
	}

	rawState := state
	if state != "" {
		rawState, _ = codexauth.DecodeState(state)
	}
	pkce := codexauth.LoadPKCE(rawState, c.cfg.PKCEFile)
	if pkce == nil {
		return nil, codexauth.ErrMissingPKCEState
	}

	creds, err := c.oauth.ExchangeAuthorizationCode(ctx, code, pkce.Verifier, "")
	if err != nil {
		return nil, err
	}
	if err := codexauth.SaveCredentials(creds, c.cfg.AuthFile); err != nil {
		return nil, err
	}
	return creds, nil
}

// Refresh mints and persists fresh credentials from the stored refresh
// token.
func (c *Client) Refresh(ctx context.Context) (*codexauth.OAuthCredentials, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Client) refreshLocked(ctx context.Context) (*codexauth.OAuthCredentials, error) {
	creds := codexauth.LoadCredentials(c.cfg.AuthFile)
	if creds == nil {
		return nil, codexauth.ErrNotAuthenticated
	}

	var refreshed *codexauth.OAuthCredentials
	if c.cfg.MockMode {
		refreshed = codexauth.MockCredentials()
	} else {
		var err error
		refreshed, err = c.oauth.RefreshAccessToken(ctx, creds.Refresh)
		if err != nil {
			return nil, err
		}
	}
	if err := codexauth.SaveCredentials(refreshed, c.cfg.AuthFile); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// EnsureCredentials returns usable credentials, refreshing at most
// once when they are stale. The refresh happens before the upstream
// call, never after a failed one.
func (c *Client) EnsureCredentials(ctx context.Context, autoRefresh bool) (*codexauth.OAuthCredentials, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	creds := codexauth.LoadCredentials(c.cfg.AuthFile)
	if creds == nil {
		return nil, codexauth.ErrNotAuthenticated
	}
	if creds.Valid() {
		return creds, nil
	}
	if !autoRefresh {
		return nil, codexauth.ErrCredentialsExpired
	}
	return c.refreshLocked(ctx)
}

// ChatCompletions runs one non-streaming chat completion.
func (c *Client) ChatCompletions(ctx context.Context, req mappers.ChatRequest) (*mappers.ChatCompletion, error) {
	body, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}

	creds, err := c.EnsureCredentials(ctx, true)
	if err != nil {
		return nil, err
	}

	stream, err := c.openStream(ctx, creds, body, req.SessionID)
	if err != nil {
		return nil, err
	}

	text, usage, finishReason, err := codexapi.Collect(stream)
	if err != nil {
		return nil, err
	}
	if finishReason == "" {
		finishReason = "stop"
	}

	return &mappers.ChatCompletion{
		ID:      NewCompletionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []mappers.CompletionChoice{{
			Index:        0,
			Message:      mappers.AssistantMessage{Role: "assistant", Content: text},
			FinishReason: finishReason,
		}},
		Usage: usage,
	}, nil
}

// StreamChatCompletions runs one streaming chat completion, returning
// a pull-based chunk sequence. Closing it aborts the upstream stream.
func (c *Client) StreamChatCompletions(ctx context.Context, req mappers.ChatRequest) (*ChunkStream, error) {
	body, err := c.prepareRequest(req)
	if err != nil {
		return nil, err
	}

	creds, err := c.EnsureCredentials(ctx, true)
	if err != nil {
		return nil, err
	}

	stream, err := c.openStream(ctx, creds, body, req.SessionID)
	if err != nil {
		return nil, err
	}

	return &ChunkStream{
		id:      NewCompletionID(),
		created: time.Now().Unix(),
		model:   req.Model,
		events:  stream,
	}, nil
}

// prepareRequest validates and translates the inbound request. All
// rejections happen here, before any network call.
func (c *Client) prepareRequest(req mappers.ChatRequest) (*codexapi.RequestBody, error) {
	if !IsSupportedModel(req.Model) {
		return nil, ErrUnsupportedModel
	}
	if len(req.Messages) == 0 {
		return nil, ErrNoMessages
	}

	converted := mappers.ConvertMessages(req.Messages)
	return codexapi.BuildRequestBody(
		c.cfg.Model,
		converted.Instructions,
		converted.Input,
		req.Temperature,
		mappers.ConvertTools(req.Tools),
		req.ToolChoice,
		req.SessionID,
	), nil
}

func (c *Client) openStream(ctx context.Context, creds *codexauth.OAuthCredentials, body *codexapi.RequestBody, sessionID string) (codexapi.EventStream, error) {
	if c.cfg.MockMode {
		return codexapi.NewMockStream(body), nil
	}
	return c.upstream.StreamEvents(ctx, creds.Access, creds.AccountID, body, sessionID)
}

// NewCompletionID mints an OpenAI-style completion identifier.
func NewCompletionID() string {
	u := uuid.New()
	return "chatcmpl_" + hex.EncodeToString(u[:])
}

package client

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	codexauth "github.com/pysugar/codex-nexus/internal/auth/codex"
	"github.com/pysugar/codex-nexus/internal/config"
	"github.com/pysugar/codex-nexus/internal/proxy/mappers"
)

func mockConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.MockMode = true
	cfg.AuthFile = filepath.Join(dir, "auth.json")
	cfg.PKCEFile = filepath.Join(dir, "pkce.json")
	cfg.DBPath = filepath.Join(dir, "nexus.db")
	return cfg
}

// authenticate runs the mock flow end to end: start, then exchange a
// placeholder code.
func authenticate(t *testing.T, c *Client) {
	t.Helper()
	if _, err := c.StartAuth("", ""); err != nil {
		t.Fatalf("StartAuth() error: %v", err)
	}
	if _, err := c.ExchangeCode(context.Background(), "mock-code"); err != nil {
		t.Fatalf("ExchangeCode() error: %v", err)
	}
}

func TestStartAuth(t *testing.T) {
	c := New(mockConfig(t))
	result, err := c.StartAuth("", "")
	if err != nil {
		t.Fatalf("StartAuth() error: %v", err)
	}
	if !strings.HasPrefix(result.AuthorizeURL, codexauth.AuthURL) {
		t.Errorf("AuthorizeURL = %q", result.AuthorizeURL)
	}
	if result.State == "" {
		t.Error("State should not be empty")
	}
	if result.RedirectURI != codexauth.RedirectURI {
		t.Errorf("RedirectURI = %q", result.RedirectURI)
	}

	// The PKCE record must be findable by state for the later exchange.
	if pkce := codexauth.LoadPKCE(result.State, c.Config().PKCEFile); pkce == nil {
		t.Error("PKCE record not persisted")
	}
}

func TestExchangeCode_MockMode(t *testing.T) {
	c := New(mockConfig(t))
	authenticate(t, c)

	status := c.AuthStatusNow()
	if !status.Authenticated || !status.Valid {
		t.Errorf("status = %+v, want authenticated and valid", status)
	}
	if status.AccountID != "mock-account" {
		t.Errorf("AccountID = %q", status.AccountID)
	}
}

func TestExchangeCode_EmptyInput(t *testing.T) {
	c := New(mockConfig(t))
	_, err := c.ExchangeCode(context.Background(), "   ")
	if !errors.Is(err, codexauth.ErrMissingAuthorizationCode) {
		t.Errorf("err = %v, want ErrMissingAuthorizationCode", err)
	}
}

func TestChatCompletions_MockFlow(t *testing.T) {
	c := New(mockConfig(t))
	authenticate(t, c)

	req := mappers.ChatRequest{
		Model: "nexus/codex",
		Messages: []mappers.ChatMessage{
			mappers.NewTextMessage("system", "Be brief."),
			mappers.NewTextMessage("user", "Say hello"),
		},
	}
	completion, err := c.ChatCompletions(context.Background(), req)
	if err != nil {
		t.Fatalf("ChatCompletions() error: %v", err)
	}

	if completion.Object != "chat.completion" {
		t.Errorf("Object = %q", completion.Object)
	}
	if !strings.HasPrefix(completion.ID, "chatcmpl_") {
		t.Errorf("ID = %q", completion.ID)
	}
	if completion.Model != "nexus/codex" {
		t.Errorf("Model = %q", completion.Model)
	}
	if len(completion.Choices) != 1 {
		t.Fatalf("Choices length = %d", len(completion.Choices))
	}
	choice := completion.Choices[0]
	if !strings.Contains(choice.Message.Content, "Say hello") {
		t.Errorf("Content = %q, want echo of the user text", choice.Message.Content)
	}
	if choice.FinishReason != "stop" {
		t.Errorf("FinishReason = %q", choice.FinishReason)
	}
	if completion.Usage.TotalTokens == 0 {
		t.Error("Usage should be populated from the completed event")
	}
}

func TestChatCompletions_UnsupportedModel(t *testing.T) {
	c := New(mockConfig(t))
	authenticate(t, c)

	req := mappers.ChatRequest{
		Model:    "gpt-4o",
		Messages: []mappers.ChatMessage{mappers.NewTextMessage("user", "hi")},
	}
	_, err := c.ChatCompletions(context.Background(), req)
	if !errors.Is(err, ErrUnsupportedModel) {
		t.Errorf("err = %v, want ErrUnsupportedModel", err)
	}
}

func TestChatCompletions_NoMessages(t *testing.T) {
	c := New(mockConfig(t))
	authenticate(t, c)

	_, err := c.ChatCompletions(context.Background(), mappers.ChatRequest{Model: "nexus/codex"})
	if !errors.Is(err, ErrNoMessages) {
		t.Errorf("err = %v, want ErrNoMessages", err)
	}
}

func TestChatCompletions_NotAuthenticated(t *testing.T) {
	c := New(mockConfig(t))

	req := mappers.ChatRequest{
		Model:    "nexus/codex",
		Messages: []mappers.ChatMessage{mappers.NewTextMessage("user", "hi")},
	}
	_, err := c.ChatCompletions(context.Background(), req)
	if !errors.Is(err, codexauth.ErrNotAuthenticated) {
		t.Errorf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestStreamChatCompletions(t *testing.T) {
	c := New(mockConfig(t))
	authenticate(t, c)

	req := mappers.ChatRequest{
		Model:    "nexus/codex",
		Messages: []mappers.ChatMessage{mappers.NewTextMessage("user", "Say hello")},
		Stream:   true,
	}
	stream, err := c.StreamChatCompletions(context.Background(), req)
	if err != nil {
		t.Fatalf("StreamChatCompletions() error: %v", err)
	}
	defer stream.Close()

	var chunks []*mappers.ChatCompletionChunk
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		chunks = append(chunks, chunk)
	}
	if len(chunks) < 3 {
		t.Fatalf("chunk count = %d, want role + content + final", len(chunks))
	}

	first := chunks[0].Choices[0]
	if first.Delta.Role != "assistant" || first.Delta.Content != "" {
		t.Errorf("first chunk = %+v, want bare role announcement", first)
	}

	var text strings.Builder
	for _, chunk := range chunks {
		text.WriteString(chunk.Choices[0].Delta.Content)
	}
	if !strings.Contains(text.String(), "Say hello") {
		t.Errorf("streamed text = %q", text.String())
	}

	last := chunks[len(chunks)-1].Choices[0]
	if last.FinishReason == nil || *last.FinishReason != "stop" {
		t.Errorf("final chunk finish_reason = %v, want stop", last.FinishReason)
	}
	if last.Delta.Role != "" || last.Delta.Content != "" {
		t.Errorf("final chunk delta = %+v, want empty", last.Delta)
	}

	for _, chunk := range chunks[:len(chunks)-1] {
		if chunk.Choices[0].FinishReason != nil {
			t.Error("finish_reason must stay null before the terminal chunk")
		}
		if chunk.Object != "chat.completion.chunk" {
			t.Errorf("Object = %q", chunk.Object)
		}
	}
}

func TestRefresh_MockMode(t *testing.T) {
	c := New(mockConfig(t))
	authenticate(t, c)

	creds, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if creds.AccountID != "mock-account" {
		t.Errorf("AccountID = %q", creds.AccountID)
	}
}

func TestRefresh_NotAuthenticated(t *testing.T) {
	c := New(mockConfig(t))
	_, err := c.Refresh(context.Background())
	if !errors.Is(err, codexauth.ErrNotAuthenticated) {
		t.Errorf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestSupportedModels(t *testing.T) {
	for _, model := range SupportedModels() {
		if !IsSupportedModel(model) {
			t.Errorf("listed model %q not accepted", model)
		}
	}
	if IsSupportedModel("gpt-4o") {
		t.Error("gpt-4o should not be accepted")
	}
}

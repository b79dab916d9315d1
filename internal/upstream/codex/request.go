// Package codex talks to the ChatGPT backend "responses" endpoint:
// request-body assembly, the streaming SSE event consumer, and a
// deterministic offline substitute for tests and mock mode.
package codex

import (
	"fmt"
	"net/http"
	"runtime"
)

const (
	// CodexURL is the ChatGPT backend responses endpoint.
	CodexURL = "https://chatgpt.com/backend-api/codex/responses"
)

// TextPart is a user/tool content part.
type TextPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// OutputTextPart is an assistant content part. Annotations is always
// serialized, empty or not, matching what the backend expects.
type OutputTextPart struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	Annotations []any  `json:"annotations"`
}

// RefusalPart is an assistant refusal content part.
type RefusalPart struct {
	Type    string `json:"type"`
	Refusal string `json:"refusal"`
}

// InputItem is one normalized message in the request input list.
// Assistant messages carry the full envelope (type/status/id); other
// roles are bare role+content objects.
type InputItem struct {
	Type    string `json:"type,omitempty"`
	Role    string `json:"role"`
	Content []any  `json:"content"`
	Status  string `json:"status,omitempty"`
	ID      string `json:"id,omitempty"`
}

// ToolDefinition is a flattened function tool in the vendor's shape.
type ToolDefinition struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// VerbosityConfig pins the response verbosity policy.
type VerbosityConfig struct {
	Verbosity string `json:"verbosity"`
}

// RequestBody is the vendor request. Built fresh per call, never
// persisted.
type RequestBody struct {
	Model             string           `json:"model"`
	Store             bool             `json:"store"`
	Stream            bool             `json:"stream"`
	Instructions      *string          `json:"instructions"`
	Input             []InputItem      `json:"input"`
	Text              VerbosityConfig  `json:"text"`
	Include           []string         `json:"include"`
	PromptCacheKey    string           `json:"prompt_cache_key,omitempty"`
	ToolChoice        any              `json:"tool_choice"`
	ParallelToolCalls bool             `json:"parallel_tool_calls"`
	Temperature       *float64         `json:"temperature,omitempty"`
	Tools             []ToolDefinition `json:"tools,omitempty"`
}

// BuildRequestBody assembles the vendor request with the fixed policy
// fields: non-persistent, always streaming upstream regardless of the
// caller's own streaming preference, medium verbosity, and encrypted
// reasoning content requested. toolChoice defaults to "auto".
func BuildRequestBody(model string, instructions *string, input []InputItem, temperature *float64, tools []ToolDefinition, toolChoice any, sessionID string) *RequestBody {
	body := &RequestBody{
		Model:             model,
		Store:             false,
		Stream:            true,
		Instructions:      instructions,
		Input:             input,
		Text:              VerbosityConfig{Verbosity: "medium"},
		Include:           []string{"reasoning.encrypted_content"},
		PromptCacheKey:    sessionID,
		ToolChoice:        "auto",
		ParallelToolCalls: true,
		Temperature:       temperature,
		Tools:             tools,
	}
	if toolChoice != nil {
		body.ToolChoice = toolChoice
	}
	return body
}

// BuildHeaders returns the fixed beta/originator header set for the
// responses endpoint.
func BuildHeaders(accessToken, accountID, sessionID, originator string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+accessToken)
	h.Set("chatgpt-account-id", accountID)
	h.Set("OpenAI-Beta", "responses=experimental")
	h.Set("originator", originator)
	h.Set("User-Agent", fmt.Sprintf("%s (%s; %s)", originator, runtime.GOOS, runtime.GOARCH))
	h.Set("Accept", "text/event-stream")
	h.Set("Content-Type", "application/json")
	if sessionID != "" {
		h.Set("session_id", sessionID)
	}
	return h
}

// Package mappers translates between the OpenAI chat-completions
// surface and the Codex responses request shape.
package mappers

import (
	"encoding/json"
	"fmt"
	"strings"

	codexapi "github.com/pysugar/codex-nexus/internal/upstream/codex"
)

// ChatRequest is the inbound /v1/chat/completions payload.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Stream      bool          `json:"stream,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Tools       []Tool        `json:"tools,omitempty"`
	ToolChoice  any           `json:"tool_choice,omitempty"`
	SessionID   string        `json:"session_id,omitempty"`
}

// ChatMessage is one inbound message. Content stays raw until
// conversion so both plain strings and typed part lists survive
// untouched.
type ChatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// NewTextMessage builds a plain-string message, used by the CLI and
// tests.
func NewTextMessage(role, text string) ChatMessage {
	content, _ := json.Marshal(text)
	return ChatMessage{Role: role, Content: content}
}

// Tool is an OpenAI tool definition; only function tools survive
// conversion.
type Tool struct {
	Type     string              `json:"type"`
	Function *FunctionDefinition `json:"function,omitempty"`
}

// FunctionDefinition is the nested function schema of a tool.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// AssistantMessage is the response message of a completion choice.
type AssistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletion is the OpenAI-compatible non-streaming response.
type ChatCompletion struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   codexapi.Usage     `json:"usage"`
}

// CompletionChoice is one completion alternative; this proxy always
// returns exactly one.
type CompletionChoice struct {
	Index        int              `json:"index"`
	Message      AssistantMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

// ChatCompletionChunk is one streaming frame in OpenAI chunk shape.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice carries a delta; FinishReason stays null until the
// terminal chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChunkDelta is the incremental message fragment. The terminal chunk
// serializes it as an empty object.
type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ConvertedMessages is the translator output: the derived instructions
// string (nil when no system messages were present) and the normalized
// input item list.
type ConvertedMessages struct {
	Instructions *string
	Input        []codexapi.InputItem
}

// ConvertMessages partitions messages by role: system text is joined
// into the instructions string, everything else becomes an input item.
// Assistant messages get the full message envelope with a sequential
// id counting only appended input items.
func ConvertMessages(messages []ChatMessage) ConvertedMessages {
	var systemParts []string
	var input []codexapi.InputItem

	for _, msg := range messages {
		if msg.Role == "system" {
			systemParts = append(systemParts, coerceText(msg.Content))
			continue
		}
		if msg.Role == "" {
			continue
		}
		if msg.Role == "assistant" {
			input = append(input, codexapi.InputItem{
				Type:    "message",
				Role:    "assistant",
				Content: ContentToParts(msg.Content, "assistant"),
				Status:  "completed",
				ID:      fmt.Sprintf("msg_%d", len(input)),
			})
			continue
		}
		input = append(input, codexapi.InputItem{
			Role:    msg.Role,
			Content: ContentToParts(msg.Content, msg.Role),
		})
	}

	var instructions *string
	if len(systemParts) > 0 {
		var nonEmpty []string
		for _, part := range systemParts {
			if part != "" {
				nonEmpty = append(nonEmpty, part)
			}
		}
		joined := strings.Join(nonEmpty, "\n")
		instructions = &joined
	}
	return ConvertedMessages{Instructions: instructions, Input: input}
}

// contentItem is the wire shape of a typed content part. Text and
// refusal stay raw so non-string values get coerced instead of failing
// the whole message.
type contentItem struct {
	Type        string          `json:"type"`
	Text        json.RawMessage `json:"text"`
	Refusal     json.RawMessage `json:"refusal"`
	Annotations []any           `json:"annotations"`
}

// ContentToParts converts message content to the vendor's part list,
// keyed by role. Typed list items are mapped individually and
// unrecognized shapes dropped; plain strings, and lists that yield
// nothing, fall back to a single coerced text part.
func ContentToParts(content json.RawMessage, role string) []any {
	assistant := role == "assistant"

	var items []json.RawMessage
	if err := json.Unmarshal(content, &items); err == nil {
		var parts []any
		for _, raw := range items {
			var item contentItem
			if err := json.Unmarshal(raw, &item); err != nil {
				continue
			}
			switch strings.TrimSpace(item.Type) {
			case "text", "input_text", "output_text":
				if assistant {
					annotations := item.Annotations
					if annotations == nil {
						annotations = []any{}
					}
					parts = append(parts, codexapi.OutputTextPart{
						Type:        "output_text",
						Text:        coerceText(item.Text),
						Annotations: annotations,
					})
				} else {
					parts = append(parts, codexapi.TextPart{
						Type: "input_text",
						Text: coerceText(item.Text),
					})
				}
			case "refusal":
				if assistant {
					parts = append(parts, codexapi.RefusalPart{
						Type:    "refusal",
						Refusal: coerceText(item.Refusal),
					})
				}
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}

	if assistant {
		return []any{codexapi.OutputTextPart{
			Type:        "output_text",
			Text:        coerceText(content),
			Annotations: []any{},
		}}
	}
	return []any{codexapi.TextPart{Type: "input_text", Text: coerceText(content)}}
}

// ConvertTools flattens function tools to the vendor shape. Returns
// nil when nothing survives the filter.
func ConvertTools(tools []Tool) []codexapi.ToolDefinition {
	var converted []codexapi.ToolDefinition
	for _, tool := range tools {
		if tool.Type != "function" {
			continue
		}
		def := codexapi.ToolDefinition{Type: "function"}
		if tool.Function != nil {
			def.Name = tool.Function.Name
			def.Description = tool.Function.Description
			def.Parameters = tool.Function.Parameters
		}
		converted = append(converted, def)
	}
	return converted
}

// coerceText renders raw JSON content as text: absent and null become
// the empty string, strings are unquoted, anything else keeps its JSON
// rendering.
func coerceText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}

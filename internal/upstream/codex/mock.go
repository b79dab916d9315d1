package codex

import (
	"io"
	"strings"
)

const mockDeltaSize = 16

// NewMockStream builds an offline substitute event sequence from a
// request body: a reply embedding the most recent user message, cut
// into fixed-size delta events, followed by a completed event whose
// usage is a whitespace token count. Wire-compatible with the real
// consumer so the rest of the pipeline is exercised identically.
func NewMockStream(body *RequestBody) EventStream {
	userText := lastUserText(body)
	responseText := "Mock Codex response."
	if userText != "" {
		responseText = "Mock Codex response to: " + userText
	}

	var events []*Event
	for i := 0; i < len(responseText); i += mockDeltaSize {
		end := i + mockDeltaSize
		if end > len(responseText) {
			end = len(responseText)
		}
		events = append(events, &Event{
			Type:  EventTypeOutputTextDelta,
			Delta: responseText[i:end],
		})
	}

	inTokens := estimateTokens(userText)
	outTokens := estimateTokens(responseText)
	events = append(events, &Event{
		Type: EventTypeCompleted,
		Response: &EventResponse{
			Status: "completed",
			Usage: &EventUsage{
				InputTokens:  inTokens,
				OutputTokens: outTokens,
				TotalTokens:  inTokens + outTokens,
			},
		},
	})

	return &mockEventStream{events: events}
}

type mockEventStream struct {
	events []*Event
	pos    int
	closed bool
}

func (m *mockEventStream) Next() (*Event, error) {
	if m.closed || m.pos >= len(m.events) {
		return nil, io.EOF
	}
	ev := m.events[m.pos]
	m.pos++
	return ev, nil
}

func (m *mockEventStream) Close() error {
	m.closed = true
	return nil
}

// lastUserText scans input items from the end for the most recent
// user message and joins its text parts.
func lastUserText(body *RequestBody) string {
	if body == nil {
		return ""
	}
	for i := len(body.Input) - 1; i >= 0; i-- {
		item := body.Input[i]
		if item.Role != "user" {
			continue
		}
		var parts []string
		for _, part := range item.Content {
			switch p := part.(type) {
			case TextPart:
				parts = append(parts, p.Text)
			case *TextPart:
				parts = append(parts, p.Text)
			case OutputTextPart:
				parts = append(parts, p.Text)
			case *OutputTextPart:
				parts = append(parts, p.Text)
			case string:
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			return strings.TrimSpace(strings.Join(parts, " "))
		}
	}
	return ""
}

// estimateTokens is a crude whitespace token count: zero for empty
// text, otherwise at least one.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(strings.Fields(text))
	if n < 1 {
		n = 1
	}
	return n
}

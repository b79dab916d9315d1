package codex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Vendor event types the consumer acts on. Anything else is ignored.
const (
	EventTypeOutputTextDelta = "response.output_text.delta"
	EventTypeCompleted       = "response.completed"
	EventTypeFailed          = "response.failed"
	EventTypeError           = "error"
)

// Event is one parsed server-sent event from the responses stream.
type Event struct {
	Type     string         `json:"type"`
	Delta    string         `json:"delta,omitempty"`
	Response *EventResponse `json:"response,omitempty"`

	// Raw is the original JSON payload, kept for error reporting.
	Raw json.RawMessage `json:"-"`
}

// EventResponse is the nested response object on terminal events.
type EventResponse struct {
	Status string      `json:"status"`
	Usage  *EventUsage `json:"usage"`
}

// EventUsage carries the vendor's token counters.
type EventUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Usage is the aggregated OpenAI-style counter set.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// EventStream is a lazy, single-pass event sequence tied to one
// underlying connection. Next returns io.EOF when the stream ends;
// Close releases the connection and may be called at any point to
// abandon the remainder.
type EventStream interface {
	Next() (*Event, error)
	Close() error
}

// Client issues streaming requests to the responses endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	originator string
}

// NewClient creates a Client against the production endpoint. The long
// timeout accommodates slow streams; per-request cancellation comes
// from the caller's context.
func NewClient(originator string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    CodexURL,
		originator: originator,
	}
}

// StreamEvents opens the streaming POST and returns the event
// sequence. A response status >= 400 fails immediately with the status
// and body text. Cancelling ctx or calling Close on the returned
// stream closes the connection promptly.
func (c *Client) StreamEvents(ctx context.Context, accessToken, accountID string, body *RequestBody, sessionID string) (EventStream, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header = BuildHeaders(accessToken, accountID, sessionID, c.originator)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("codex request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		text, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, fmt.Errorf("codex request failed: %d %s", resp.StatusCode, string(text))
	}

	return newHTTPEventStream(resp), nil
}

type httpEventStream struct {
	resp   *http.Response
	frames *frameReader
	closed bool
}

func newHTTPEventStream(resp *http.Response) *httpEventStream {
	return &httpEventStream{resp: resp, frames: newFrameReader(resp.Body)}
}

// Next reads frames until one yields a usable event. Unparseable
// payloads and non-object JSON are protocol noise and are skipped.
func (s *httpEventStream) Next() (*Event, error) {
	for {
		frame, err := s.frames.next()
		if err != nil {
			return nil, err
		}
		if ev := parseEventFrame(frame); ev != nil {
			return ev, nil
		}
	}
}

func (s *httpEventStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.resp.Body.Close()
}

// parseEventFrame extracts the data payload of one SSE frame: every
// "data:" line stripped and trimmed, multiple lines joined by newline.
// Empty payloads, the [DONE] sentinel, unparseable JSON, and non-object
// values all yield nil.
func parseEventFrame(frame string) *Event {
	var dataLines []string
	for _, line := range strings.Split(frame, "\n") {
		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
		}
	}
	if len(dataLines) == 0 {
		return nil
	}

	payload := strings.TrimSpace(strings.Join(dataLines, "\n"))
	if payload == "" || payload == "[DONE]" {
		return nil
	}
	if payload[0] != '{' {
		return nil
	}

	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return nil
	}
	ev.Raw = json.RawMessage(payload)
	return &ev
}

// frameReader buffers the response body and splits it on blank-line
// frame boundaries.
type frameReader struct {
	r   io.Reader
	buf bytes.Buffer
	eof bool
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: r}
}

func (f *frameReader) next() (string, error) {
	chunk := make([]byte, 4096)
	for {
		if i := bytes.Index(f.buf.Bytes(), []byte("\n\n")); i >= 0 {
			frame := string(f.buf.Next(i))
			f.buf.Next(2)
			return frame, nil
		}
		if f.eof {
			if f.buf.Len() > 0 {
				frame := f.buf.String()
				f.buf.Reset()
				return frame, nil
			}
			return "", io.EOF
		}

		n, err := f.r.Read(chunk)
		if n > 0 {
			f.buf.Write(chunk[:n])
		}
		if err == io.EOF {
			f.eof = true
		} else if err != nil {
			return "", err
		}
	}
}

// Collect drains the stream, concatenating text deltas and capturing
// usage from the terminal completed event. An error or response.failed
// event aborts consumption and propagates. finishReason is "stop" when
// a completed event was observed, empty otherwise.
func Collect(stream EventStream) (text string, usage Usage, finishReason string, err error) {
	defer func() {
		_ = stream.Close()
	}()

	var sb strings.Builder
	for {
		ev, nextErr := stream.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}
		if nextErr != nil {
			return "", Usage{}, "", nextErr
		}

		switch ev.Type {
		case EventTypeOutputTextDelta:
			sb.WriteString(ev.Delta)
		case EventTypeCompleted:
			// Vendor terminal statuses are collapsed to "stop" until a
			// richer vocabulary is confirmed.
			finishReason = "stop"
			if ev.Response != nil && ev.Response.Usage != nil {
				usage.PromptTokens = ev.Response.Usage.InputTokens
				usage.CompletionTokens = ev.Response.Usage.OutputTokens
				usage.TotalTokens = ev.Response.Usage.TotalTokens
			}
		case EventTypeError:
			return "", Usage{}, "", fmt.Errorf("codex error: %s", string(ev.Raw))
		case EventTypeFailed:
			return "", Usage{}, "", errors.New("codex response failed")
		}
	}
	return sb.String(), usage, finishReason, nil
}

package client

import (
	"errors"
	"fmt"
	"io"

	"github.com/pysugar/codex-nexus/internal/proxy/mappers"
	codexapi "github.com/pysugar/codex-nexus/internal/upstream/codex"
)

// ChunkStream re-emits vendor events as OpenAI chat.completion.chunk
// frames: a one-time role announcement before the first content delta,
// one chunk per delta, and a final empty-delta chunk with
// finish_reason "stop" when the vendor reports completion. Next
// returns io.EOF once the underlying stream ends.
type ChunkStream struct {
	id      string
	created int64
	model   string
	events  codexapi.EventStream

	queue    []*mappers.ChatCompletionChunk
	sentRole bool
	done     bool
}

// Next returns the next chunk, or io.EOF at end of stream. A vendor
// error or response.failed event aborts the sequence with an error;
// the underlying connection is closed either way.
func (s *ChunkStream) Next() (*mappers.ChatCompletionChunk, error) {
	if len(s.queue) > 0 {
		chunk := s.queue[0]
		s.queue = s.queue[1:]
		return chunk, nil
	}
	if s.done {
		return nil, io.EOF
	}

	for {
		ev, err := s.events.Next()
		if errors.Is(err, io.EOF) {
			s.finish()
			return nil, io.EOF
		}
		if err != nil {
			s.finish()
			return nil, err
		}

		switch ev.Type {
		case codexapi.EventTypeOutputTextDelta:
			content := s.chunk(mappers.ChunkDelta{Content: ev.Delta}, nil)
			if !s.sentRole {
				s.sentRole = true
				s.queue = append(s.queue, content)
				return s.chunk(mappers.ChunkDelta{Role: "assistant"}, nil), nil
			}
			return content, nil
		case codexapi.EventTypeCompleted:
			finish := "stop"
			return s.chunk(mappers.ChunkDelta{}, &finish), nil
		case codexapi.EventTypeError:
			s.finish()
			return nil, fmt.Errorf("codex error: %s", string(ev.Raw))
		case codexapi.EventTypeFailed:
			s.finish()
			return nil, errors.New("codex response failed")
		}
	}
}

// Close abandons the remaining sequence and releases the underlying
// connection. Safe to call more than once.
func (s *ChunkStream) Close() error {
	s.done = true
	return s.events.Close()
}

func (s *ChunkStream) finish() {
	s.done = true
	_ = s.events.Close()
}

func (s *ChunkStream) chunk(delta mappers.ChunkDelta, finishReason *string) *mappers.ChatCompletionChunk {
	return &mappers.ChatCompletionChunk{
		ID:      s.id,
		Object:  "chat.completion.chunk",
		Created: s.created,
		Model:   s.model,
		Choices: []mappers.ChunkChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finishReason,
		}},
	}
}

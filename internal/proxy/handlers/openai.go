package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/pysugar/codex-nexus/internal/auth/codex"
	"github.com/pysugar/codex-nexus/internal/client"
	"github.com/pysugar/codex-nexus/internal/db"
	"github.com/pysugar/codex-nexus/internal/db/models"
	"github.com/pysugar/codex-nexus/internal/logging"
	"github.com/pysugar/codex-nexus/internal/proxy/mappers"
	"github.com/pysugar/codex-nexus/internal/util"
)

// OpenAIHandler serves the OpenAI-compatible chat completions endpoint,
// translating requests to the Codex responses API through the client facade.
type OpenAIHandler struct {
	client   *client.Client
	database *gorm.DB
}

func NewOpenAIHandler(c *client.Client, database *gorm.DB) *OpenAIHandler {
	return &OpenAIHandler{client: c, database: database}
}

// ChatCompletions handles POST /v1/chat/completions.
func (h *OpenAIHandler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	reqID := logging.GetRequestID(r.Context())
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeOpenAIError(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var chatReq mappers.ChatRequest
	if err := json.Unmarshal(body, &chatReq); err != nil {
		writeOpenAIError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if chatReq.Model == "" {
		writeOpenAIError(w, "missing required field: model", http.StatusBadRequest)
		return
	}
	if len(chatReq.Messages) == 0 {
		writeOpenAIError(w, "missing required field: messages", http.StatusBadRequest)
		return
	}

	if util.IsVerbose() {
		log.Printf("[%s] 📥 chat request: %s", reqID, util.TruncateBytes(body))
	}

	if chatReq.Stream {
		h.streamCompletion(w, r, chatReq, reqID, start)
		return
	}

	completion, err := h.client.ChatCompletions(r.Context(), chatReq)
	if err != nil {
		h.record(chatReq, start, http.StatusBadGateway, err)
		writeUpstreamError(w, reqID, err)
		return
	}

	h.recordUsage(chatReq, start, http.StatusOK, completion.Usage.PromptTokens, completion.Usage.CompletionTokens, completion.Usage.TotalTokens)
	log.Printf("[%s] ✅ chat completion %s (%d tokens, %s)", reqID, completion.ID, completion.Usage.TotalTokens, time.Since(start).Round(time.Millisecond))
	writeJSON(w, http.StatusOK, completion)
}

// chunkSource is the pull-based chunk sequence the streaming writer
// drains.
type chunkSource interface {
	Next() (*mappers.ChatCompletionChunk, error)
	Close() error
}

func (h *OpenAIHandler) streamCompletion(w http.ResponseWriter, r *http.Request, chatReq mappers.ChatRequest, reqID string, start time.Time) {
	stream, err := h.client.StreamChatCompletions(r.Context(), chatReq)
	if err != nil {
		h.record(chatReq, start, http.StatusBadGateway, err)
		writeUpstreamError(w, reqID, err)
		return
	}
	defer stream.Close()

	SetSSEHeaders(w)
	h.writeChunks(w, chatReq, reqID, start, stream)
}

func (h *OpenAIHandler) writeChunks(w http.ResponseWriter, chatReq mappers.ChatRequest, reqID string, start time.Time, stream chunkSource) {
	flusher, canFlush := w.(http.Flusher)

	chunks := 0
	var streamErr error
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			streamErr = err
			break
		}

		payload, err := json.Marshal(chunk)
		if err != nil {
			streamErr = err
			break
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		if canFlush {
			flusher.Flush()
		}
		chunks++
	}

	// The terminal frame goes out even when the upstream aborted, so
	// clients waiting on it never hang.
	fmt.Fprint(w, "data: [DONE]\n\n")
	if canFlush {
		flusher.Flush()
	}

	if streamErr != nil {
		log.Printf("[%s] ⚠️ stream aborted: %v", reqID, streamErr)
		h.record(chatReq, start, http.StatusBadGateway, streamErr)
		return
	}
	h.record(chatReq, start, http.StatusOK, nil)
	log.Printf("[%s] ✅ chat stream finished (%d chunks, %s)", reqID, chunks, time.Since(start).Round(time.Millisecond))
}

func writeUpstreamError(w http.ResponseWriter, reqID string, err error) {
	log.Printf("[%s] ⚠️ chat completion failed: %v", reqID, err)
	switch {
	case errors.Is(err, client.ErrUnsupportedModel), errors.Is(err, client.ErrNoMessages):
		writeOpenAIError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, codex.ErrNotAuthenticated), errors.Is(err, codex.ErrCredentialsExpired):
		writeOpenAIError(w, err.Error(), http.StatusUnauthorized)
	default:
		writeOpenAIError(w, err.Error(), http.StatusBadGateway)
	}
}

func (h *OpenAIHandler) record(chatReq mappers.ChatRequest, start time.Time, status int, err error) {
	h.recordEntry(chatReq, start, status, err, 0, 0, 0)
}

func (h *OpenAIHandler) recordUsage(chatReq mappers.ChatRequest, start time.Time, status int, in, out, total int) {
	h.recordEntry(chatReq, start, status, nil, in, out, total)
}

func (h *OpenAIHandler) recordEntry(chatReq mappers.ChatRequest, start time.Time, status int, err error, in, out, total int) {
	if h.database == nil {
		return
	}
	entry := models.RequestLog{
		Model:        chatReq.Model,
		MappedModel:  h.client.Config().Model,
		Stream:       chatReq.Stream,
		Status:       status,
		Duration:     time.Since(start).Milliseconds(),
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  total,
	}
	if err != nil {
		entry.Error = util.TruncateLog(err.Error(), util.DefaultLogMaxLen)
	}
	db.RecordRequest(h.database, entry)
}

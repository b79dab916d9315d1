// Package handlers implements the HTTP surface of the proxy: the auth
// flow endpoints and the OpenAI-compatible /v1 API.
package handlers

import (
	"encoding/json"
	"net/http"
)

// openAIError is the error envelope OpenAI clients expect.
type openAIError struct {
	Error openAIErrorBody `json:"error"`
}

type openAIErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// writeOpenAIError writes an OpenAI-style error response.
func writeOpenAIError(w http.ResponseWriter, message string, status int) {
	errType := "invalid_request_error"
	switch {
	case status == http.StatusUnauthorized:
		errType = "authentication_error"
	case status >= 500:
		errType = "api_error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(openAIError{Error: openAIErrorBody{
		Message: message,
		Type:    errType,
	}})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// SetSSEHeaders sets standard headers for server-sent-event streaming.
func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

package models

// RequestLog records one chat-completions call for local diagnostics.
// Rows are written best-effort; a failed insert never fails the
// request that produced it.
type RequestLog struct {
	ID           string `gorm:"primaryKey" json:"id"`
	Timestamp    int64  `gorm:"index" json:"timestamp"`
	Model        string `gorm:"index" json:"model"`
	MappedModel  string `json:"mapped_model,omitempty"`
	Stream       bool   `json:"stream"`
	Status       int    `json:"status"`
	Duration     int64  `json:"duration"` // milliseconds
	Error        string `json:"error,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	TotalTokens  int    `json:"total_tokens,omitempty"`
}

// RequestStats holds aggregated statistics for request logs.
type RequestStats struct {
	TotalRequests int64 `json:"total_requests"`
	SuccessCount  int64 `json:"success_count"`
	ErrorCount    int64 `json:"error_count"`
}

package util

import (
	"fmt"
	"strings"
	"testing"
)

func TestTruncateLog(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short", "short log", 1024, "short log"},
		{"exact limit", strings.Repeat("x", 20), 20, strings.Repeat("x", 20)},
		{"empty", "", 10, ""},
		{"over limit", "1234567890abcdefghij", 10, "1234567890... [truncated, 20 bytes total]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateLog(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("TruncateLog() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateLog_UpstreamErrorBody(t *testing.T) {
	// Upstream failures arrive with the full response body attached;
	// the request log keeps only the leading kilobyte.
	errText := fmt.Sprintf("codex request failed: 429 %s", strings.Repeat("{\"detail\":\"slow down\"}", 200))
	got := TruncateLog(errText, DefaultLogMaxLen)
	if len(got) >= len(errText) {
		t.Error("long error text should be truncated")
	}
	if !strings.HasPrefix(got, "codex request failed: 429") {
		t.Errorf("truncation should keep the leading status text, got %q", got[:40])
	}
	if !strings.HasSuffix(got, fmt.Sprintf("[truncated, %d bytes total]", len(errText))) {
		t.Errorf("suffix should report the original size, got %q", got[len(got)-40:])
	}
}

func TestTruncateBytes(t *testing.T) {
	if got := TruncateBytes([]byte("short")); got != "short" {
		t.Errorf("TruncateBytes() = %q", got)
	}

	long := make([]byte, 2*DefaultLogMaxLen)
	for i := range long {
		long[i] = 'y'
	}
	got := TruncateBytes(long)
	if got[:DefaultLogMaxLen] != string(long[:DefaultLogMaxLen]) {
		t.Error("TruncateBytes() should preserve the leading DefaultLogMaxLen bytes")
	}
	if !strings.Contains(got, "[truncated,") {
		t.Error("TruncateBytes() should append the truncation marker")
	}
}

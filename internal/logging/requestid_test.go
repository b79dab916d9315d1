package logging

import (
	"context"
	"testing"
)

func TestGenerateRequestID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		id := GenerateRequestID()
		if len(id) != 8 {
			t.Fatalf("GenerateRequestID() length = %d, want 8", len(id))
		}
		if seen[id] {
			t.Fatalf("GenerateRequestID() repeated %q", id)
		}
		seen[id] = true
	}
}

func TestRequestIDContext(t *testing.T) {
	// A context that saw no middleware yields the empty string, which
	// handlers render as a bare log prefix rather than failing.
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID(background) = %q, want empty", got)
	}

	ctx := WithRequestID(context.Background(), "abc12345")
	if got := GetRequestID(ctx); got != "abc12345" {
		t.Errorf("GetRequestID() = %q", got)
	}

	// Re-attaching replaces the value for derived contexts.
	ctx = WithRequestID(ctx, "def67890")
	if got := GetRequestID(ctx); got != "def67890" {
		t.Errorf("GetRequestID() after overwrite = %q", got)
	}
}

package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func bufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestLogFieldsBuilder(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentIngest).
		WithUserID(0).
		WithIngest(3, 2).
		WithError(errors.New("boom")).
		WithError(nil)

	if _, ok := f[FieldUserID]; ok {
		t.Error("zero user id should be omitted")
	}
	if f[FieldCount] != 3 || f[FieldInserted] != 2 {
		t.Errorf("unexpected ingest fields: %v", f)
	}
	if f[FieldError] != "boom" {
		t.Errorf("unexpected error field: %v", f[FieldError])
	}
	if len(f.ToSlice()) != 2*len(f) {
		t.Errorf("ToSlice length = %d, want %d", len(f.ToSlice()), 2*len(f))
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf, ComponentAuth)
	logger.Info("User registered", FieldUserID, 7)

	out := buf.String()
	if !strings.Contains(out, "component=auth") || !strings.Contains(out, "user_id=7") {
		t.Errorf("unexpected log line: %s", out)
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf, ComponentApp).WithComponent(ComponentBackend)
	logger.Info("Backend ready")

	if got := logger.Component(); got != ComponentBackend {
		t.Errorf("Component() = %q, want %q", got, ComponentBackend)
	}
	if out := buf.String(); strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=backend") {
		t.Errorf("unexpected log line: %s", out)
	}
}

func TestLoggerKeepsExplicitComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := bufferLogger(&buf, "unknown")
	logger.Warn("Suspicious request", NewFields().WithComponent(ComponentSecurity).ToSlice()...)

	out := buf.String()
	if strings.Count(out, "component=") != 1 || !strings.Contains(out, "component=security") {
		t.Errorf("component should appear once: %s", out)
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Error("expected fallback logger")
	}

	var buf bytes.Buffer
	logger := bufferLogger(&buf, ComponentHTTP)
	ctx := NewContext(context.Background(), logger.With(FieldRequestID, "req_1"))

	if got := FromContext(ctx); got.Component() != ComponentHTTP {
		t.Fatalf("expected http component logger, got %+v", got)
	}
}

func TestLogHTTPEndLevels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{200, "level=INFO"},
		{404, "level=WARN"},
		{500, "level=ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		sl := NewStructuredLogger(bufferLogger(&buf, ComponentHTTP))
		r := httptest.NewRequest(http.MethodPost, "/api/upload", nil)
		sl.LogHTTPEnd(context.Background(), r, "req_1", tt.status, 15*time.Millisecond, "127.0.0.1")

		out := buf.String()
		if !strings.Contains(out, tt.level) {
			t.Errorf("status %d: expected %s in %s", tt.status, tt.level, out)
		}
		if !strings.Contains(out, "request_id=req_1") {
			t.Errorf("status %d: missing request id in %s", tt.status, out)
		}
	}
}

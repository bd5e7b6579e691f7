package es_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/getpup/pupstore/es"
)

// TestNoOpLogger verifies the NoOpLogger doesn't panic.
func TestNoOpLogger(t *testing.T) {
	ctx := context.Background()
	logger := es.NoOpLogger{}

	// These should not panic
	logger.Debug(ctx, "debug message", "key", "value")
	logger.Info(ctx, "info message", "key", "value")
	logger.Error(ctx, "error message", "key", "value")
}

// TestLoggerInterface verifies the bundled loggers implement Logger.
func TestLoggerInterface(t *testing.T) {
	var _ es.Logger = es.NoOpLogger{}
	var _ es.Logger = (*es.SlogLogger)(nil)
}

func TestSlogLogger(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := es.NewSlogLogger(slog.New(handler))

	logger.Debug(ctx, "amend starting", "stream", "balance")
	logger.Info(ctx, "stream created", "stream", "balance")
	logger.Error(ctx, "amend failed", "stream", "balance")

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG msg=\"amend starting\" stream=balance",
		"level=INFO msg=\"stream created\" stream=balance",
		"level=ERROR msg=\"amend failed\" stream=balance",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestNewSlogLogger_NilUsesDefault(t *testing.T) {
	logger := es.NewSlogLogger(nil)
	if logger == nil {
		t.Fatal("NewSlogLogger(nil) returned nil")
	}
	logger.Info(context.Background(), "uses default")
}

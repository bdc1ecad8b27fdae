package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContextFallsBackToDefault(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Fatal("expected default logger")
	}

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatal("expected stored logger")
	}
}

func TestStartSpanReusesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-1")

	ctx, span := StartSpan(ctx, "outer")
	if TraceIDFromContext(ctx) != "req-1" {
		t.Fatalf("expected trace id from request id, got %q", TraceIDFromContext(ctx))
	}

	_, child := StartSpan(ctx, "inner")
	_ = child.Fail(errors.New("boom"))
	child.End()
	span.End()

	out := buf.String()
	if !strings.Contains(out, `"parent_span_id"`) {
		t.Fatalf("expected child span to reference parent: %s", out)
	}
	if !strings.Contains(out, "span failed") || !strings.Contains(out, "span completed") {
		t.Fatalf("expected both span outcomes to be logged: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v want %v", in, got, want)
		}
	}
}

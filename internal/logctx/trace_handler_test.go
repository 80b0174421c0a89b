package logctx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

type stubSpan struct {
	trace.Span
	spanContext trace.SpanContext
}

func (s *stubSpan) SpanContext() trace.SpanContext { return s.spanContext }

func (s *stubSpan) End(...trace.SpanEndOption) {}

func contextWithSpan(t *testing.T) context.Context {
	t.Helper()

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	if err != nil {
		t.Fatalf("failed to build trace id: %v", err)
	}
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	if err != nil {
		t.Fatalf("failed to build span id: %v", err)
	}

	span := &stubSpan{spanContext: trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})}

	return trace.ContextWithSpan(context.Background(), span)
}

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log output: %v", err)
	}

	return entry
}

func TestTraceHandler_NoSpanContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil)))

	logger.InfoContext(context.Background(), "test message", "key", "value")

	entry := decodeLogLine(t, &buf)

	if _, exists := entry["trace_id"]; exists {
		t.Errorf("trace_id should not be present without span context, got: %v", entry["trace_id"])
	}
	if _, exists := entry["span_id"]; exists {
		t.Errorf("span_id should not be present without span context, got: %v", entry["span_id"])
	}
	if entry["msg"] != "test message" {
		t.Errorf("expected msg='test message', got: %v", entry["msg"])
	}
	if entry["key"] != "value" {
		t.Errorf("expected key='value', got: %v", entry["key"])
	}
}

func TestTraceHandler_WithSpanContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTraceHandler(slog.NewJSONHandler(&buf, nil)))

	logger.InfoContext(contextWithSpan(t), "test message")

	entry := decodeLogLine(t, &buf)

	if entry["trace_id"] != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("expected trace_id to match span context, got: %v", entry["trace_id"])
	}
	if entry["span_id"] != "00f067aa0ba902b7" {
		t.Errorf("expected span_id to match span context, got: %v", entry["span_id"])
	}
	if entry["msg"] != "test message" {
		t.Errorf("expected msg='test message', got: %v", entry["msg"])
	}
}

func TestTraceHandler_Enabled(t *testing.T) {
	handler := NewTraceHandler(slog.NewJSONHandler(nil, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	ctx := context.Background()

	if handler.Enabled(ctx, slog.LevelInfo) {
		t.Errorf("expected Info level to be disabled when handler level is Warn")
	}
	if !handler.Enabled(ctx, slog.LevelWarn) {
		t.Errorf("expected Warn level to be enabled")
	}
	if !handler.Enabled(ctx, slog.LevelError) {
		t.Errorf("expected Error level to be enabled")
	}
}

func TestTraceHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := NewTraceHandler(slog.NewJSONHandler(&buf, nil))

	withAttrs := handler.WithAttrs([]slog.Attr{slog.String("component", "api")})
	if _, ok := withAttrs.(*TraceHandler); !ok {
		t.Fatalf("WithAttrs should return *TraceHandler, got: %T", withAttrs)
	}

	slog.New(withAttrs).InfoContext(context.Background(), "test")

	entry := decodeLogLine(t, &buf)
	if entry["component"] != "api" {
		t.Errorf("expected component attribute to be preserved, got: %v", entry["component"])
	}
}

func TestTraceHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	handler := NewTraceHandler(slog.NewJSONHandler(&buf, nil))

	withGroup := handler.WithGroup("request")
	if _, ok := withGroup.(*TraceHandler); !ok {
		t.Fatalf("WithGroup should return *TraceHandler, got: %T", withGroup)
	}

	slog.New(withGroup).InfoContext(context.Background(), "test", "key", "value")

	entry := decodeLogLine(t, &buf)
	group, ok := entry["request"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected request group in output, got: %v", entry)
	}
	if group["key"] != "value" {
		t.Errorf("expected grouped key='value', got: %v", group["key"])
	}
}

func TestTraceHandler_NilHandler(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("NewTraceHandler with nil handler should panic")
		}
	}()

	NewTraceHandler(nil)
}

func TestLoggerFromContext_Fallback(t *testing.T) {
	if LoggerFromContext(context.Background()) == nil {
		t.Fatal("expected default logger when context carries none")
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithLogger(context.Background(), logger)

	if LoggerFromContext(ctx) != logger {
		t.Errorf("expected logger stored in context to be returned")
	}
}

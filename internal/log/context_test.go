// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func captureBase(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "test"})
	t.Cleanup(func() { Configure(Config{}) })
	return &buf
}

func TestContextWithRequestID(t *testing.T) {
	tests := []struct {
		name      string
		ctx       context.Context
		requestID string
		want      string
	}{
		{name: "nil context", ctx: nil, requestID: "test-id-123", want: "test-id-123"},
		{name: "background context", ctx: context.Background(), requestID: "req-456", want: "req-456"},
		{name: "empty request ID", ctx: context.Background(), requestID: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithRequestID(tt.ctx, tt.requestID)
			if got := RequestIDFromContext(ctx); got != tt.want {
				t.Errorf("RequestIDFromContext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTaskIDFromContext(t *testing.T) {
	ctx := ContextWithTaskID(nil, "task-1") //nolint:staticcheck // nil context is handled explicitly
	assert.Equal(t, "task-1", TaskIDFromContext(ctx))
	assert.Empty(t, TaskIDFromContext(context.Background()))
	assert.Empty(t, TaskIDFromContext(context.WithValue(context.Background(), taskIDKey, 42)))
}

func TestWithContext_AddsCorrelationFields(t *testing.T) {
	buf := captureBase(t)

	ctx := ContextWithRequestID(context.Background(), "req-123")
	ctx = ContextWithTaskID(ctx, "task-456")
	l := WithContext(ctx, WithComponent("test"))
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-123", entry[FieldRequestID])
	assert.Equal(t, "task-456", entry[FieldTaskID])
	assert.Equal(t, "test", entry[FieldComponent])
	assert.Equal(t, "test", entry["service"])
}

func TestDerive(t *testing.T) {
	buf := captureBase(t)

	l := Derive(func(c *zerolog.Context) {
		*c = c.Str("custom_field", "test_value")
	})
	l.Info().Msg("derived")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test_value", entry["custom_field"])

	if Derive(nil).GetLevel() > zerolog.PanicLevel {
		t.Error("Expected valid logger from Derive with nil builder")
	}
}

func TestWithTraceContext(t *testing.T) {
	buf := captureBase(t)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	l := WithTraceContext(ctx)
	l.Info().Msg("test with trace")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestMiddleware_LogsStatusAndBytes(t *testing.T) {
	buf := captureBase(t)

	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/pot", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "rid-1"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "request.handled", entry[FieldEvent])
	assert.EqualValues(t, http.StatusTeapot, entry["status"])
	assert.EqualValues(t, len("short and stout"), entry["bytes"])
	assert.Equal(t, "rid-1", entry[FieldRequestID])
}

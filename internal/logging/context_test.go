package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func spanContext(t *testing.T, sampled bool) trace.SpanContext {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	if err != nil {
		t.Fatal(err)
	}
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	if err != nil {
		t.Fatal(err)
	}
	cfg := trace.SpanContextConfig{TraceID: traceID, SpanID: spanID}
	if sampled {
		cfg.TraceFlags = trace.FlagsSampled
	}
	return trace.NewSpanContext(cfg)
}

func fieldMap(ctx context.Context) map[string]any {
	m := map[string]any{}
	for _, f := range ContextFields(ctx) {
		if f.String != "" {
			m[f.Key] = f.String
		} else {
			m[f.Key] = f.Integer == 1
		}
	}
	return m
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_Trace(t *testing.T) {
	ctx := trace.ContextWithSpanContext(context.Background(), spanContext(t, true))

	fields := fieldMap(ctx)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
	assert.Equal(t, true, fields["trace_sampled"])

	ctx = trace.ContextWithSpanContext(context.Background(), spanContext(t, false))
	assert.NotContains(t, fieldMap(ctx), "trace_sampled")
}

func TestContextFields_RequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	assert.Equal(t, "req-123", fieldMap(ctx)["request.id"])
}

func TestWithRequestID_Invalid(t *testing.T) {
	base := context.Background()
	for _, id := range []string{"", "has space", "new\nline", strings.Repeat("a", 129)} {
		ctx := WithRequestID(base, id)
		assert.Equal(t, base, ctx, "invalid id %q must not be stored", id)
		assert.Empty(t, RequestIDFromContext(ctx))
	}
	assert.True(t, ValidRequestID(strings.Repeat("a", 128)))
}

func TestLoggerContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	assert.Same(t, tl.Logger, FromContext(ctx))
}

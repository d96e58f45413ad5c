package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/embedded"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newBufferLogger(t *testing.T, cfg *Config, provider log.LoggerProvider) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := NewLogger(cfg, provider, WithWriter(zapcore.AddSync(&buf)))
	require.NoError(t, err)
	return logger, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestNewLogger_JSON(t *testing.T) {
	cfg := NewDefaultConfig()
	logger, buf := newBufferLogger(t, cfg, nil)

	ctx := trace.ContextWithSpanContext(context.Background(), spanContext(t, true))
	ctx = WithRequestID(ctx, "req-1")
	logger.Info(ctx, "hello", zap.Int("value", 7))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "hello", lines[0]["msg"])
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "otelrand", lines[0]["service"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", lines[0]["trace_id"])
	assert.Equal(t, "req-1", lines[0]["request.id"])
	assert.EqualValues(t, 7, lines[0]["value"])
	assert.Contains(t, lines[0]["caller"], "logger_test.go")
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"
	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)
}

func TestLogger_Levels(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = TraceLevel
	cfg.Sampling.Enabled = false
	logger, buf := newBufferLogger(t, cfg, nil)
	ctx := context.Background()

	logger.Trace(ctx, "t")
	logger.Debug(ctx, "d")
	logger.Info(ctx, "i")
	logger.Warn(ctx, "w")
	logger.Error(ctx, "e")

	var levels []string
	for _, line := range decodeLines(t, buf) {
		levels = append(levels, line["level"].(string))
	}
	assert.Equal(t, []string{"trace", "debug", "info", "warn", "error"}, levels)
}

func TestLogger_LevelFiltering(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Level = zapcore.WarnLevel
	logger, buf := newBufferLogger(t, cfg, nil)

	logger.Info(context.Background(), "dropped")
	logger.Warn(context.Background(), "kept")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["msg"])
	assert.False(t, logger.Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Enabled(zapcore.ErrorLevel))
}

func TestLogger_WithAndNamed(t *testing.T) {
	logger, buf := newBufferLogger(t, NewDefaultConfig(), nil)

	logger.Named("http").With(zap.String("component", "server")).Info(context.Background(), "child")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "http", lines[0]["logger"])
	assert.Equal(t, "server", lines[0]["component"])
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.Info(context.Background(), "discarded")
	assert.NoError(t, logger.Sync())
	assert.NotNil(t, logger.Underlying())
}

// recordingProvider collects bridged log bodies.
type recordingProvider struct {
	embedded.LoggerProvider
	mu     sync.Mutex
	bodies []string
}

func (p *recordingProvider) Logger(string, ...log.LoggerOption) log.Logger {
	return &recordingLogger{provider: p}
}

type recordingLogger struct {
	embedded.Logger
	provider *recordingProvider
}

func (l *recordingLogger) Emit(_ context.Context, r log.Record) {
	l.provider.mu.Lock()
	defer l.provider.mu.Unlock()
	l.provider.bodies = append(l.provider.bodies, r.Body().AsString())
}

func (l *recordingLogger) Enabled(context.Context, log.EnabledParameters) bool {
	return true
}

func TestNewLogger_OTelOutput(t *testing.T) {
	provider := &recordingProvider{}
	cfg := NewDefaultConfig()
	logger, buf := newBufferLogger(t, cfg, provider)

	logger.Debug(context.Background(), "below level")
	logger.Info(context.Background(), "bridged")

	provider.mu.Lock()
	assert.Equal(t, []string{"bridged"}, provider.bodies)
	provider.mu.Unlock()
	assert.Len(t, decodeLines(t, buf), 1)

	cfg = NewDefaultConfig()
	cfg.Output.OTel = false
	provider = &recordingProvider{}
	logger, _ = newBufferLogger(t, cfg, provider)
	logger.Info(context.Background(), "stdout only")
	assert.Empty(t, provider.bodies)
}

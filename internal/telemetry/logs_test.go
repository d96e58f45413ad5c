package telemetry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

type memoryLogExporter struct {
	mu      sync.Mutex
	bodies  []string
	stopped bool
}

func (e *memoryLogExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.bodies = append(e.bodies, r.Body().AsString())
	}
	return nil
}

func (e *memoryLogExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	return nil
}

func (e *memoryLogExporter) ForceFlush(context.Context) error {
	return nil
}

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	lp, err := NewLoggerProvider(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, lp)

	lp, err = NewLoggerProvider(ctx, resolve(t, "OTEL_LOGS_EXPORTER=none"))
	require.NoError(t, err)
	assert.Nil(t, lp)

	assert.NotNil(t, lp.LoggerProvider())
	assert.NoError(t, lp.ForceFlush(ctx))
	assert.NoError(t, lp.Shutdown(ctx))
}

func TestNewLoggerProvider_Exports(t *testing.T) {
	ctx := context.Background()
	exp := &memoryLogExporter{}

	lp, err := NewLoggerProvider(ctx, resolve(t, "OTEL_SERVICE_NAME=logs"), WithLogExporter(exp))
	require.NoError(t, err)
	require.NotNil(t, lp)

	var rec log.Record
	rec.SetBody(log.StringValue("hello"))
	rec.SetSeverity(log.SeverityInfo)
	lp.LoggerProvider().Logger("test").Emit(ctx, rec)

	require.NoError(t, lp.ForceFlush(ctx))
	require.NoError(t, lp.Shutdown(ctx))

	exp.mu.Lock()
	defer exp.mu.Unlock()
	assert.Equal(t, []string{"hello"}, exp.bodies)
	assert.True(t, exp.stopped)
}

func TestNewLogExporter(t *testing.T) {
	for _, environ := range [][]string{
		{"OTEL_EXPORTER_OTLP_ENDPOINT=http://" + unroutable + ":4317"},
		{"OTEL_EXPORTER_OTLP_ENDPOINT=https://" + unroutable + ":4317", "OTEL_EXPORTER_OTLP_HEADERS=a=1", "OTEL_EXPORTER_OTLP_COMPRESSION=gzip"},
		{"OTEL_EXPORTER_OTLP_PROTOCOL=http/protobuf", "OTEL_EXPORTER_OTLP_ENDPOINT=http://" + unroutable + ":4318"},
		{"OTEL_EXPORTER_OTLP_PROTOCOL=http/protobuf", "OTEL_EXPORTER_OTLP_ENDPOINT=https://" + unroutable, "OTEL_EXPORTER_OTLP_COMPRESSION=gzip"},
	} {
		exp, err := newLogExporter(context.Background(), resolve(t, environ...))
		require.NoError(t, err)
		require.NotNil(t, exp)
		assert.NoError(t, exp.Shutdown(context.Background()))
	}

	_, err := newLogExporter(context.Background(), &ExporterConfig{Protocol: "thrift"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

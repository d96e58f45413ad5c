package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	mp, err := NewMeterProvider(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, mp)

	cfg := resolve(t, "OTEL_METRICS_EXPORTER=none")
	mp, err = NewMeterProvider(ctx, cfg)
	require.NoError(t, err)
	assert.Nil(t, mp)

	// A nil provider still hands out usable meters.
	counter, err := mp.Meter("test").Int64Counter("noop")
	require.NoError(t, err)
	counter.Add(ctx, 1)
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_Records(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()

	mp, err := NewMeterProvider(ctx, resolve(t, "OTEL_SERVICE_NAME=metered"), WithMetricReader(reader))
	require.NoError(t, err)
	require.NotNil(t, mp)

	counter, err := mp.Meter("test").Int64Counter("requests")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	require.Len(t, rm.ScopeMetrics[0].Metrics, 1)

	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.EqualValues(t, 3, sum.DataPoints[0].Value)

	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_Exporters(t *testing.T) {
	for _, environ := range [][]string{
		{"OTEL_EXPORTER_OTLP_ENDPOINT=http://" + unroutable + ":4317"},
		{"OTEL_EXPORTER_OTLP_ENDPOINT=https://" + unroutable + ":4317", "OTEL_EXPORTER_OTLP_HEADERS=a=1", "OTEL_EXPORTER_OTLP_COMPRESSION=gzip"},
		{"OTEL_EXPORTER_OTLP_PROTOCOL=http/protobuf", "OTEL_EXPORTER_OTLP_ENDPOINT=http://" + unroutable + ":4318"},
		{"OTEL_EXPORTER_OTLP_PROTOCOL=http/protobuf", "OTEL_EXPORTER_OTLP_ENDPOINT=https://" + unroutable, "OTEL_EXPORTER_OTLP_HEADERS=a=1", "OTEL_EXPORTER_OTLP_COMPRESSION=gzip"},
	} {
		cfg := resolve(t, environ...)
		exp, err := newMetricExporter(context.Background(), cfg)
		require.NoError(t, err)
		require.NotNil(t, exp)
		assert.Equal(t, metricdata.CumulativeTemporality, exp.Temporality(sdkmetric.InstrumentKindCounter))
	}
}

func TestNewMetricExporter_UnknownProtocol(t *testing.T) {
	_, err := newMetricExporter(context.Background(), &ExporterConfig{Protocol: "thrift"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
)

// 192.0.2.0/24 is reserved for documentation; nothing listens there and the
// exporters connect lazily, so construction never touches the network.
const unroutable = "192.0.2.1"

func TestBuildExporter_NoEnvironment(t *testing.T) {
	exp, cfg, err := BuildExporter(context.Background(), SnapshotFrom([]string{"HOME=/root"}))
	require.NoError(t, err)
	assert.Nil(t, exp)
	assert.Nil(t, cfg)
}

func TestBuildExporter_SDKDisabled(t *testing.T) {
	exp, cfg, err := BuildExporter(context.Background(), SnapshotFrom([]string{
		"OTEL_SDK_DISABLED=true",
		"OTEL_EXPORTER_OTLP_PROTOCOL=unsupported-value",
	}))
	require.NoError(t, err)
	assert.Nil(t, exp)
	assert.Nil(t, cfg)
}

func TestBuildExporter_UnsupportedProtocol(t *testing.T) {
	exp, cfg, err := BuildExporter(context.Background(), SnapshotFrom([]string{
		"OTEL_EXPORTER_OTLP_PROTOCOL=unsupported-value",
	}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Nil(t, exp)
	assert.Nil(t, cfg)
}

func TestBuildExporter_InvalidHeaders(t *testing.T) {
	exp, _, err := BuildExporter(context.Background(), SnapshotFrom([]string{
		"OTEL_EXPORTER_OTLP_HEADERS=a=1,bad",
	}))
	require.Error(t, err)
	assert.Nil(t, exp)
}

func TestBuildExporter_Protocols(t *testing.T) {
	tests := []struct {
		name    string
		environ []string
	}{
		{"grpc plaintext", []string{"OTEL_EXPORTER_OTLP_ENDPOINT=http://" + unroutable + ":4317"}},
		{"grpc tls with headers", []string{
			"OTEL_EXPORTER_OTLP_PROTOCOL=grpc",
			"OTEL_EXPORTER_OTLP_ENDPOINT=https://" + unroutable + ":4317",
			"OTEL_EXPORTER_OTLP_HEADERS=authorization=Bearer%20x",
			"OTEL_EXPORTER_OTLP_COMPRESSION=gzip",
		}},
		{"http plaintext", []string{
			"OTEL_EXPORTER_OTLP_PROTOCOL=http/protobuf",
			"OTEL_EXPORTER_OTLP_ENDPOINT=http://" + unroutable + ":4318",
		}},
		{"http tls with headers", []string{
			"OTEL_EXPORTER_OTLP_PROTOCOL=http/protobuf",
			"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT=https://" + unroutable + "/otlp/traces",
			"OTEL_EXPORTER_OTLP_HEADERS=x-api-key=abc",
			"OTEL_EXPORTER_OTLP_COMPRESSION=gzip",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			exp, cfg, err := BuildExporter(ctx, SnapshotFrom(tt.environ))
			require.NoError(t, err)
			require.NotNil(t, exp)
			require.NotNil(t, cfg)
			assert.IsType(t, &otlptrace.Exporter{}, exp)
			assert.NoError(t, exp.Shutdown(ctx))
		})
	}
}

func TestNewExporter_UnknownProtocol(t *testing.T) {
	exp, err := NewExporter(context.Background(), &ExporterConfig{Protocol: "thrift"})
	require.Error(t, err)
	assert.Nil(t, exp)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestConstructionError(t *testing.T) {
	inner := errors.New("boom")
	err := error(&ConstructionError{Protocol: ProtocolGRPC, Err: inner})
	assert.ErrorIs(t, err, inner)
	assert.False(t, errors.Is(err, ErrInvalidConfig))
	assert.Equal(t, "creating grpc trace exporter: boom", err.Error())
}

func TestSystemTLSConfig(t *testing.T) {
	cfg := systemTLSConfig()
	assert.Nil(t, cfg.RootCAs)
	assert.False(t, cfg.InsecureSkipVerify)
	assert.NotNil(t, systemTLSCredentials())
}

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotFrom(t *testing.T) {
	tests := []struct {
		name      string
		environ   []string
		requested bool
		len       int
	}{
		{"empty", nil, false, 0},
		{"unrelated only", []string{"HOME=/root", "PATH=/bin", "OTELX=1"}, false, 0},
		{"one otel var", []string{"HOME=/root", "OTEL_SERVICE_NAME=svc"}, true, 1},
		{"empty value still requests", []string{"OTEL_EXPORTER_OTLP_ENDPOINT="}, true, 1},
		{"name without equals", []string{"OTEL_FOO"}, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := SnapshotFrom(tt.environ)
			assert.Equal(t, tt.requested, snap.Requested())
			assert.Equal(t, tt.len, snap.Len())
		})
	}
}

func TestReadEnvironment(t *testing.T) {
	t.Setenv(EnvServiceName, "from-env")

	snap := ReadEnvironment()
	assert.True(t, snap.Requested())
	name, ok := snap.Lookup(EnvServiceName)
	assert.True(t, ok)
	assert.Equal(t, "from-env", name)
}

func TestSnapshot_Lookup(t *testing.T) {
	snap := SnapshotFrom([]string{
		"OTEL_SERVICE_NAME=  padded  ",
		"OTEL_EXPORTER_OTLP_ENDPOINT=   ",
		"OTEL_EXPORTER_OTLP_HEADERS=a=b=c",
	})

	v, ok := snap.Lookup(EnvServiceName)
	assert.True(t, ok)
	assert.Equal(t, "padded", v)

	_, ok = snap.Lookup(EnvEndpoint)
	assert.False(t, ok, "blank values count as unset")

	v, ok = snap.Headers()
	assert.True(t, ok)
	assert.Equal(t, "a=b=c", v, "only the first '=' separates name and value")

	_, ok = snap.Lookup(EnvProtocol)
	assert.False(t, ok)
}

func TestSnapshot_SignalPrecedence(t *testing.T) {
	snap := SnapshotFrom([]string{
		"OTEL_EXPORTER_OTLP_PROTOCOL=grpc",
		"OTEL_EXPORTER_OTLP_TRACES_PROTOCOL=http/protobuf",
		"OTEL_EXPORTER_OTLP_ENDPOINT=http://generic:4317",
	})

	protocol, ok := snap.Protocol()
	assert.True(t, ok)
	assert.Equal(t, "http/protobuf", protocol)

	endpoint, ok := snap.Endpoint()
	assert.True(t, ok)
	assert.Equal(t, "http://generic:4317", endpoint)

	_, name, ok := snap.lookupSignal(EnvTracesHeaders, EnvHeaders)
	assert.False(t, ok)
	assert.Equal(t, EnvHeaders, name)
}

func TestSnapshot_SDKDisabled(t *testing.T) {
	assert.True(t, SnapshotFrom([]string{"OTEL_SDK_DISABLED=true"}).SDKDisabled())
	assert.True(t, SnapshotFrom([]string{"OTEL_SDK_DISABLED=TRUE"}).SDKDisabled())
	assert.False(t, SnapshotFrom([]string{"OTEL_SDK_DISABLED=false"}).SDKDisabled())
	assert.False(t, SnapshotFrom([]string{"OTEL_SDK_DISABLED=1"}).SDKDisabled())
	assert.False(t, SnapshotFrom(nil).SDKDisabled())
}

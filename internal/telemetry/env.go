package telemetry

import (
	"os"
	"strings"
)

// EnvPrefix marks the environment variables that belong to the OpenTelemetry
// configuration contract. The presence of any of them turns tracing on.
const EnvPrefix = "OTEL_"

// Environment variables read into a Snapshot. Where a TRACES_ variant
// exists it takes precedence over the generic one.
const (
	EnvProtocol          = "OTEL_EXPORTER_OTLP_PROTOCOL"
	EnvTracesProtocol    = "OTEL_EXPORTER_OTLP_TRACES_PROTOCOL"
	EnvEndpoint          = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvTracesEndpoint    = "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"
	EnvHeaders           = "OTEL_EXPORTER_OTLP_HEADERS"
	EnvTracesHeaders     = "OTEL_EXPORTER_OTLP_TRACES_HEADERS"
	EnvTimeout           = "OTEL_EXPORTER_OTLP_TIMEOUT"
	EnvTracesTimeout     = "OTEL_EXPORTER_OTLP_TRACES_TIMEOUT"
	EnvCompression       = "OTEL_EXPORTER_OTLP_COMPRESSION"
	EnvTracesCompression = "OTEL_EXPORTER_OTLP_TRACES_COMPRESSION"
	EnvServiceName       = "OTEL_SERVICE_NAME"
	EnvSDKDisabled       = "OTEL_SDK_DISABLED"
	EnvMetricsExporter   = "OTEL_METRICS_EXPORTER"
	EnvLogsExporter      = "OTEL_LOGS_EXPORTER"

	EnvBSPScheduleDelay      = "OTEL_BSP_SCHEDULE_DELAY"
	EnvBSPExportTimeout      = "OTEL_BSP_EXPORT_TIMEOUT"
	EnvBSPMaxQueueSize       = "OTEL_BSP_MAX_QUEUE_SIZE"
	EnvBSPMaxExportBatchSize = "OTEL_BSP_MAX_EXPORT_BATCH_SIZE"
)

// Snapshot is an immutable copy of the OTEL_* environment taken once at
// startup. Nothing downstream reads the process environment again.
type Snapshot struct {
	requested bool
	vars      map[string]string
}

// ReadEnvironment snapshots the current process environment.
func ReadEnvironment() Snapshot {
	return SnapshotFrom(os.Environ())
}

// SnapshotFrom builds a Snapshot from "KEY=value" pairs as returned by
// os.Environ. Entries without the OTEL_ prefix are ignored. Values are not
// validated here.
func SnapshotFrom(environ []string) Snapshot {
	s := Snapshot{vars: make(map[string]string)}
	for _, kv := range environ {
		name, value, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		s.requested = true
		s.vars[name] = value
	}
	return s
}

// Requested reports whether any OTEL_* variable was present, even with an
// empty value.
func (s Snapshot) Requested() bool {
	return s.requested
}

// SDKDisabled reports whether OTEL_SDK_DISABLED explicitly turns tracing off.
func (s Snapshot) SDKDisabled() bool {
	v, _ := s.Lookup(EnvSDKDisabled)
	return strings.EqualFold(v, "true")
}

// Lookup returns the trimmed value of name. Empty values count as unset.
func (s Snapshot) Lookup(name string) (string, bool) {
	v := strings.TrimSpace(s.vars[name])
	return v, v != ""
}

// lookupSignal returns the traces-specific variable when set, falling back
// to the generic one. The returned name is the variable actually used.
func (s Snapshot) lookupSignal(specific, generic string) (value, name string, ok bool) {
	if v, ok := s.Lookup(specific); ok {
		return v, specific, true
	}
	if v, ok := s.Lookup(generic); ok {
		return v, generic, true
	}
	return "", generic, false
}

// Protocol returns the raw protocol selector and whether it was set.
func (s Snapshot) Protocol() (string, bool) {
	v, _, ok := s.lookupSignal(EnvTracesProtocol, EnvProtocol)
	return v, ok
}

// Endpoint returns the raw collector endpoint and whether it was set.
func (s Snapshot) Endpoint() (string, bool) {
	v, _, ok := s.lookupSignal(EnvTracesEndpoint, EnvEndpoint)
	return v, ok
}

// Headers returns the raw header list and whether it was set.
func (s Snapshot) Headers() (string, bool) {
	v, _, ok := s.lookupSignal(EnvTracesHeaders, EnvHeaders)
	return v, ok
}

// Len returns the number of OTEL_* variables captured.
func (s Snapshot) Len() int {
	return len(s.vars)
}

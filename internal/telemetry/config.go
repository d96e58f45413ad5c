package telemetry

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Protocol selects the OTLP transport.
type Protocol string

const (
	ProtocolGRPC         Protocol = "grpc"
	ProtocolHTTPProtobuf Protocol = "http/protobuf"
)

// DefaultProtocol is used when no protocol variable is set.
const DefaultProtocol = ProtocolGRPC

// Default collector endpoints per protocol. Both are plaintext.
const (
	DefaultGRPCEndpoint = "http://localhost:4317"
	DefaultHTTPEndpoint = "http://localhost:4318"
)

const (
	tracesPath  = "/v1/traces"
	metricsPath = "/v1/metrics"
	logsPath    = "/v1/logs"
)

// DefaultServiceName is the resource service.name when OTEL_SERVICE_NAME is unset.
const DefaultServiceName = "otelrand"

// Compression selects payload compression for export requests.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
)

// BatchConfig tunes the batch span processor. Defaults match the SDK.
type BatchConfig struct {
	ScheduleDelay      time.Duration
	ExportTimeout      time.Duration
	MaxQueueSize       int
	MaxExportBatchSize int
}

// DefaultBatchConfig returns the SDK batch processor defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		ScheduleDelay:      5 * time.Second,
		ExportTimeout:      30 * time.Second,
		MaxQueueSize:       2048,
		MaxExportBatchSize: 512,
	}
}

// ExporterConfig is the validated exporter configuration. It is built once
// by ResolveConfig and not modified afterwards.
type ExporterConfig struct {
	Protocol Protocol
	// Endpoint is the full trace collector URL. For http/protobuf it
	// includes the request path.
	Endpoint string
	// EndpointSet is false when Endpoint is the protocol default.
	EndpointSet bool
	// MetricsEndpoint and LogsEndpoint are the collector URLs used for the
	// other signals. They share scheme, host and headers with Endpoint.
	MetricsEndpoint string
	LogsEndpoint    string
	// Secure is true when the endpoint scheme is https. TLS then uses the
	// system trust roots.
	Secure         bool
	Headers        []Header
	Timeout        time.Duration
	Compression    Compression
	ServiceName    string
	Batch          BatchConfig
	MetricsEnabled bool
	LogsEnabled    bool
}

// MarshalLogObject implements zapcore.ObjectMarshaler. Header values are
// never logged, only names.
func (c *ExporterConfig) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("protocol", string(c.Protocol))
	enc.AddString("endpoint", c.Endpoint)
	enc.AddBool("endpoint_default", !c.EndpointSet)
	enc.AddBool("secure", c.Secure)
	enc.AddString("headers", strings.Join(headerNames(c.Headers), ","))
	enc.AddDuration("timeout", c.Timeout)
	enc.AddString("compression", string(c.Compression))
	enc.AddString("service_name", c.ServiceName)
	enc.AddBool("metrics", c.MetricsEnabled)
	enc.AddBool("logs", c.LogsEnabled)
	return nil
}

// ResolveConfig validates a snapshot and turns it into an ExporterConfig.
// It does not check Requested; callers decide whether telemetry is on.
func ResolveConfig(snap Snapshot) (*ExporterConfig, error) {
	protocol, err := resolveProtocol(snap)
	if err != nil {
		return nil, err
	}

	cfg := &ExporterConfig{
		Protocol:       protocol,
		Timeout:        10 * time.Second,
		Compression:    CompressionNone,
		ServiceName:    DefaultServiceName,
		Batch:          DefaultBatchConfig(),
		MetricsEnabled: true,
		LogsEnabled:    true,
	}

	if err := resolveEndpoint(snap, cfg); err != nil {
		return nil, err
	}

	if raw, name, ok := snap.lookupSignal(EnvTracesHeaders, EnvHeaders); ok {
		headers, err := ParseHeaders(raw)
		if err != nil {
			return nil, withVariable(err, name)
		}
		if protocol == ProtocolGRPC {
			for _, h := range headers {
				if !validGRPCMetadataKey(h.Name) {
					return nil, &ConfigError{Variable: name, Input: h.Name, Reason: "header name is not a valid gRPC metadata key"}
				}
			}
		}
		cfg.Headers = headers
	}

	if raw, name, ok := snap.lookupSignal(EnvTracesTimeout, EnvTimeout); ok {
		if cfg.Timeout, err = parseMillis(name, raw); err != nil {
			return nil, err
		}
	}

	if raw, name, ok := snap.lookupSignal(EnvTracesCompression, EnvCompression); ok {
		switch Compression(strings.ToLower(raw)) {
		case CompressionGzip:
			cfg.Compression = CompressionGzip
		case CompressionNone:
		default:
			return nil, &ConfigError{Variable: name, Input: raw, Reason: "compression must be 'gzip' or 'none'"}
		}
	}

	if name, ok := snap.Lookup(EnvServiceName); ok {
		cfg.ServiceName = name
	}

	if exporter, ok := snap.Lookup(EnvMetricsExporter); ok && strings.EqualFold(exporter, "none") {
		cfg.MetricsEnabled = false
	}
	if exporter, ok := snap.Lookup(EnvLogsExporter); ok && strings.EqualFold(exporter, "none") {
		cfg.LogsEnabled = false
	}

	if cfg.Batch, err = resolveBatch(snap); err != nil {
		return nil, err
	}

	return cfg, nil
}

func resolveProtocol(snap Snapshot) (Protocol, error) {
	raw, name, ok := snap.lookupSignal(EnvTracesProtocol, EnvProtocol)
	if !ok {
		return DefaultProtocol, nil
	}
	switch Protocol(raw) {
	case ProtocolGRPC, ProtocolHTTPProtobuf:
		return Protocol(raw), nil
	default:
		return "", &ConfigError{
			Variable: name,
			Input:    raw,
			Reason:   fmt.Sprintf("unsupported protocol (want %q or %q)", ProtocolGRPC, ProtocolHTTPProtobuf),
		}
	}
}

// resolveEndpoint fills the signal endpoints, EndpointSet and Secure.
//
// For http/protobuf the generic endpoint is a base URL that gets the signal
// path appended, while the traces-specific endpoint is used as given. gRPC
// ignores paths.
func resolveEndpoint(snap Snapshot, cfg *ExporterConfig) error {
	raw, name, ok := snap.lookupSignal(EnvTracesEndpoint, EnvEndpoint)
	if !ok {
		if cfg.Protocol == ProtocolGRPC {
			cfg.Endpoint = DefaultGRPCEndpoint
			cfg.MetricsEndpoint = DefaultGRPCEndpoint
			cfg.LogsEndpoint = DefaultGRPCEndpoint
		} else {
			cfg.Endpoint = DefaultHTTPEndpoint + tracesPath
			cfg.MetricsEndpoint = DefaultHTTPEndpoint + metricsPath
			cfg.LogsEndpoint = DefaultHTTPEndpoint + logsPath
		}
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return &ConfigError{Variable: name, Input: raw, Reason: "endpoint is not a valid URL"}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigError{Variable: name, Input: raw, Reason: "endpoint scheme must be http or https"}
	}
	if u.Host == "" {
		return &ConfigError{Variable: name, Input: raw, Reason: "endpoint has no host"}
	}
	if u.Port() != "" {
		if port, err := strconv.Atoi(u.Port()); err != nil || port < 1 || port > 65535 {
			return &ConfigError{Variable: name, Input: raw, Reason: "endpoint port is out of range"}
		}
	}

	cfg.EndpointSet = true
	cfg.Secure = u.Scheme == "https"

	origin := u.Scheme + "://" + u.Host
	switch {
	case cfg.Protocol == ProtocolGRPC:
		cfg.Endpoint = origin
		cfg.MetricsEndpoint = origin
		cfg.LogsEndpoint = origin
	case name == EnvTracesEndpoint:
		cfg.Endpoint = origin + u.EscapedPath()
		cfg.MetricsEndpoint = origin + metricsPath
		cfg.LogsEndpoint = origin + logsPath
	default:
		base := strings.TrimSuffix(u.EscapedPath(), "/")
		cfg.Endpoint = origin + base + tracesPath
		cfg.MetricsEndpoint = origin + base + metricsPath
		cfg.LogsEndpoint = origin + base + logsPath
	}
	return nil
}

func resolveBatch(snap Snapshot) (BatchConfig, error) {
	b := DefaultBatchConfig()
	var err error

	if raw, ok := snap.Lookup(EnvBSPScheduleDelay); ok {
		if b.ScheduleDelay, err = parseMillis(EnvBSPScheduleDelay, raw); err != nil {
			return b, err
		}
	}
	if raw, ok := snap.Lookup(EnvBSPExportTimeout); ok {
		if b.ExportTimeout, err = parseMillis(EnvBSPExportTimeout, raw); err != nil {
			return b, err
		}
	}
	if raw, ok := snap.Lookup(EnvBSPMaxQueueSize); ok {
		if b.MaxQueueSize, err = parsePositive(EnvBSPMaxQueueSize, raw); err != nil {
			return b, err
		}
	}
	if raw, ok := snap.Lookup(EnvBSPMaxExportBatchSize); ok {
		if b.MaxExportBatchSize, err = parsePositive(EnvBSPMaxExportBatchSize, raw); err != nil {
			return b, err
		}
	}
	if b.MaxExportBatchSize > b.MaxQueueSize {
		return b, &ConfigError{
			Variable: EnvBSPMaxExportBatchSize,
			Input:    strconv.Itoa(b.MaxExportBatchSize),
			Reason:   fmt.Sprintf("must not exceed the max queue size %d", b.MaxQueueSize),
		}
	}
	return b, nil
}

// parseMillis parses a positive integer number of milliseconds.
func parseMillis(name, raw string) (time.Duration, error) {
	ms, err := parsePositive(name, raw)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func parsePositive(name, raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, &ConfigError{Variable: name, Input: raw, Reason: "must be a positive integer"}
	}
	return n, nil
}

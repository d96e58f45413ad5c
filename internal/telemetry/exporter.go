package telemetry

import (
	"context"
	"crypto/tls"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// BuildExporter resolves the snapshot and constructs the span exporter.
//
// It returns a nil exporter and nil config, with no error, when no OTEL_*
// variable is present or OTEL_SDK_DISABLED=true: tracing is off, which is
// the documented default. Any configuration or construction problem is
// returned as an error and must abort startup.
//
// The transport connects lazily; no network I/O happens here.
func BuildExporter(ctx context.Context, snap Snapshot) (trace.SpanExporter, *ExporterConfig, error) {
	if !snap.Requested() || snap.SDKDisabled() {
		return nil, nil, nil
	}

	cfg, err := ResolveConfig(snap)
	if err != nil {
		return nil, nil, err
	}

	exp, err := NewExporter(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return exp, cfg, nil
}

// NewExporter creates the OTLP span exporter described by cfg.
func NewExporter(ctx context.Context, cfg *ExporterConfig) (trace.SpanExporter, error) {
	var (
		exporter trace.SpanExporter
		err      error
	)

	switch cfg.Protocol {
	case ProtocolHTTPProtobuf:
		exporter, err = otlptracehttp.New(ctx, httpTraceOptions(cfg)...)
	case ProtocolGRPC:
		exporter, err = otlptracegrpc.New(ctx, grpcTraceOptions(cfg)...)
	default:
		return nil, &ConfigError{Input: string(cfg.Protocol), Reason: "unsupported protocol"}
	}

	if err != nil {
		return nil, &ConstructionError{Protocol: cfg.Protocol, Err: err}
	}
	return exporter, nil
}

func grpcTraceOptions(cfg *ExporterConfig) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpointURL(cfg.Endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
	}
	if cfg.Secure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(systemTLSCredentials()))
	} else {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	if headers := headerMap(cfg.Headers); headers != nil {
		opts = append(opts, otlptracegrpc.WithHeaders(headers))
	}
	if cfg.Compression == CompressionGzip {
		opts = append(opts, otlptracegrpc.WithCompressor(string(CompressionGzip)))
	}
	return opts
}

func httpTraceOptions(cfg *ExporterConfig) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
		otlptracehttp.WithTimeout(cfg.Timeout),
	}
	if cfg.Secure {
		opts = append(opts, otlptracehttp.WithTLSClientConfig(systemTLSConfig()))
	} else {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if headers := headerMap(cfg.Headers); headers != nil {
		opts = append(opts, otlptracehttp.WithHeaders(headers))
	}
	if cfg.Compression == CompressionGzip {
		opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
	}
	return opts
}

// systemTLSConfig leaves RootCAs nil so the platform trust store is used.
func systemTLSConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12}
}

func systemTLSCredentials() credentials.TransportCredentials {
	return credentials.NewTLS(systemTLSConfig())
}

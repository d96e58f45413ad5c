package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/log"
	lognoop "go.opentelemetry.io/otel/log/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

var noopLoggerProvider log.LoggerProvider = lognoop.NewLoggerProvider()

// LoggerProvider ships log records to the collector. The logging package
// attaches it to zap through the otelzap bridge. A nil *LoggerProvider hands
// out no-op loggers.
type LoggerProvider struct {
	lp *sdklog.LoggerProvider
}

// LogOption configures NewLoggerProvider.
type LogOption func(*logOptions)

type logOptions struct {
	exporter sdklog.Exporter
}

// WithLogExporter replaces the OTLP exporter (for testing).
func WithLogExporter(exp sdklog.Exporter) LogOption {
	return func(o *logOptions) {
		o.exporter = exp
	}
}

// NewLoggerProvider builds the log pipeline for cfg. It returns nil when cfg
// is nil (telemetry off) or OTEL_LOGS_EXPORTER=none.
func NewLoggerProvider(ctx context.Context, cfg *ExporterConfig, opts ...LogOption) (*LoggerProvider, error) {
	if cfg == nil || !cfg.LogsEnabled {
		return nil, nil
	}

	var o logOptions
	for _, opt := range opts {
		opt(&o)
	}

	exp := o.exporter
	if exp == nil {
		var err error
		if exp, err = newLogExporter(ctx, cfg); err != nil {
			return nil, err
		}
	}

	return &LoggerProvider{
		lp: sdklog.NewLoggerProvider(
			sdklog.WithResource(newResource(cfg.ServiceName, "")),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
		),
	}, nil
}

func newLogExporter(ctx context.Context, cfg *ExporterConfig) (sdklog.Exporter, error) {
	var (
		exporter sdklog.Exporter
		err      error
	)

	switch cfg.Protocol {
	case ProtocolHTTPProtobuf:
		opts := []otlploghttp.Option{
			otlploghttp.WithEndpointURL(cfg.LogsEndpoint),
			otlploghttp.WithTimeout(cfg.Timeout),
		}
		if cfg.Secure {
			opts = append(opts, otlploghttp.WithTLSClientConfig(systemTLSConfig()))
		} else {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		if headers := headerMap(cfg.Headers); headers != nil {
			opts = append(opts, otlploghttp.WithHeaders(headers))
		}
		if cfg.Compression == CompressionGzip {
			opts = append(opts, otlploghttp.WithCompression(otlploghttp.GzipCompression))
		}
		exporter, err = otlploghttp.New(ctx, opts...)
	case ProtocolGRPC:
		opts := []otlploggrpc.Option{
			otlploggrpc.WithEndpointURL(cfg.LogsEndpoint),
			otlploggrpc.WithTimeout(cfg.Timeout),
		}
		if cfg.Secure {
			opts = append(opts, otlploggrpc.WithTLSCredentials(systemTLSCredentials()))
		} else {
			opts = append(opts, otlploggrpc.WithInsecure())
		}
		if headers := headerMap(cfg.Headers); headers != nil {
			opts = append(opts, otlploggrpc.WithHeaders(headers))
		}
		if cfg.Compression == CompressionGzip {
			opts = append(opts, otlploggrpc.WithCompressor(string(CompressionGzip)))
		}
		exporter, err = otlploggrpc.New(ctx, opts...)
	default:
		return nil, &ConfigError{Input: string(cfg.Protocol), Reason: "unsupported protocol"}
	}

	if err != nil {
		return nil, fmt.Errorf("creating log exporter: %w", err)
	}
	return exporter, nil
}

// LoggerProvider exposes the provider through the API interface.
func (l *LoggerProvider) LoggerProvider() log.LoggerProvider {
	if l == nil {
		return noopLoggerProvider
	}
	return l.lp
}

// ForceFlush exports all queued records.
func (l *LoggerProvider) ForceFlush(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.lp.ForceFlush(ctx)
}

// Shutdown flushes queued records and closes the exporter.
func (l *LoggerProvider) Shutdown(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.lp.Shutdown(ctx); err != nil {
		return fmt.Errorf("logger provider shutdown: %w", err)
	}
	return nil
}

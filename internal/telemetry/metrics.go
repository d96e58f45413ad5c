package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// DefaultMetricInterval is how often the periodic reader pushes metrics.
const DefaultMetricInterval = 60 * time.Second

var noopMeterProvider metric.MeterProvider = metricnoop.NewMeterProvider()

// MeterProvider pushes OTLP metrics to the same collector as traces.
// A nil *MeterProvider is valid and hands out no-op meters.
type MeterProvider struct {
	mp *sdkmetric.MeterProvider
}

// MeterOption configures NewMeterProvider.
type MeterOption func(*meterOptions)

type meterOptions struct {
	interval time.Duration
	reader   sdkmetric.Reader
}

// WithMetricInterval overrides DefaultMetricInterval.
func WithMetricInterval(d time.Duration) MeterOption {
	return func(o *meterOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithMetricReader replaces the OTLP periodic reader (for testing).
func WithMetricReader(r sdkmetric.Reader) MeterOption {
	return func(o *meterOptions) {
		o.reader = r
	}
}

// NewMeterProvider builds the metric pipeline for cfg. It returns nil when
// cfg is nil (telemetry off) or OTEL_METRICS_EXPORTER=none.
func NewMeterProvider(ctx context.Context, cfg *ExporterConfig, opts ...MeterOption) (*MeterProvider, error) {
	if cfg == nil || !cfg.MetricsEnabled {
		return nil, nil
	}

	o := meterOptions{interval: DefaultMetricInterval}
	for _, opt := range opts {
		opt(&o)
	}

	reader := o.reader
	if reader == nil {
		exp, err := newMetricExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		reader = sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(o.interval))
	}

	return &MeterProvider{
		mp: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(newResource(cfg.ServiceName, "")),
			sdkmetric.WithReader(reader),
		),
	}, nil
}

// cumulativeTemporality keeps counters monotonic for Prometheus-style backends
// regardless of OTEL_EXPORTER_OTLP_METRICS_TEMPORALITY_PREFERENCE.
func cumulativeTemporality(sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

func newMetricExporter(ctx context.Context, cfg *ExporterConfig) (sdkmetric.Exporter, error) {
	var (
		exporter sdkmetric.Exporter
		err      error
	)

	switch cfg.Protocol {
	case ProtocolHTTPProtobuf:
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpointURL(cfg.MetricsEndpoint),
			otlpmetrichttp.WithTimeout(cfg.Timeout),
			otlpmetrichttp.WithTemporalitySelector(cumulativeTemporality),
		}
		if cfg.Secure {
			opts = append(opts, otlpmetrichttp.WithTLSClientConfig(systemTLSConfig()))
		} else {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if headers := headerMap(cfg.Headers); headers != nil {
			opts = append(opts, otlpmetrichttp.WithHeaders(headers))
		}
		if cfg.Compression == CompressionGzip {
			opts = append(opts, otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression))
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
	case ProtocolGRPC:
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpointURL(cfg.MetricsEndpoint),
			otlpmetricgrpc.WithTimeout(cfg.Timeout),
			otlpmetricgrpc.WithTemporalitySelector(cumulativeTemporality),
		}
		if cfg.Secure {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(systemTLSCredentials()))
		} else {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		if headers := headerMap(cfg.Headers); headers != nil {
			opts = append(opts, otlpmetricgrpc.WithHeaders(headers))
		}
		if cfg.Compression == CompressionGzip {
			opts = append(opts, otlpmetricgrpc.WithCompressor(string(CompressionGzip)))
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, &ConfigError{Input: string(cfg.Protocol), Reason: "unsupported protocol"}
	}

	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	return exporter, nil
}

// MeterProvider exposes the provider through the API interface.
func (m *MeterProvider) MeterProvider() metric.MeterProvider {
	if m == nil {
		return noopMeterProvider
	}
	return m.mp
}

// Meter returns a named meter.
func (m *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return m.MeterProvider().Meter(name, opts...)
}

// Shutdown flushes and stops the periodic reader.
func (m *MeterProvider) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	if err := m.mp.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}
	return nil
}

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultShutdownTimeout bounds Shutdown when the caller's context has no deadline.
const DefaultShutdownTimeout = 5 * time.Second

var noopTracerProvider trace.TracerProvider = noop.NewTracerProvider()

// w3cPropagator carries W3C trace context and baggage. A disabled provider
// returns it too: with no active span it injects only incoming baggage.
var w3cPropagator propagation.TextMapPropagator = propagation.NewCompositeTextMapPropagator(
	propagation.TraceContext{},
	propagation.Baggage{},
)

// Provider owns the tracer provider and its background batch pipeline.
//
// A nil *Provider means tracing is disabled; every method is safe to call on
// nil. The process creates at most one Provider at startup, hands it to the
// HTTP layer through AsLayer, and must call Shutdown exactly once on exit so
// buffered spans are flushed.
type Provider struct {
	tp              *sdktrace.TracerProvider
	propagator      propagation.TextMapPropagator
	shutdownTimeout time.Duration

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option configures Start.
type Option func(*providerOptions)

type providerOptions struct {
	serviceName     string
	serviceVersion  string
	batch           BatchConfig
	shutdownTimeout time.Duration
	processors      []sdktrace.SpanProcessor
}

// WithService sets the service.name and service.version resource attributes.
func WithService(name, version string) Option {
	return func(o *providerOptions) {
		if name != "" {
			o.serviceName = name
		}
		o.serviceVersion = version
	}
}

// WithBatchConfig overrides the batch span processor settings.
func WithBatchConfig(b BatchConfig) Option {
	return func(o *providerOptions) {
		o.batch = b
	}
}

// WithShutdownTimeout sets the flush budget used by Shutdown when the
// caller's context carries no deadline.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *providerOptions) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// WithSpanProcessor registers an extra span processor (for testing).
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *providerOptions) {
		o.processors = append(o.processors, sp)
	}
}

// Start builds a Provider that batches spans and exports them through exp on
// a background goroutine. It returns nil when exp is nil.
//
// Request goroutines only enqueue finished spans. The queue is bounded and
// non-blocking: when it is full, new spans are dropped rather than delaying
// the request.
func Start(exp sdktrace.SpanExporter, opts ...Option) *Provider {
	if exp == nil {
		return nil
	}

	o := providerOptions{
		serviceName:     DefaultServiceName,
		batch:           DefaultBatchConfig(),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exp,
			sdktrace.WithBatchTimeout(o.batch.ScheduleDelay),
			sdktrace.WithExportTimeout(o.batch.ExportTimeout),
			sdktrace.WithMaxQueueSize(o.batch.MaxQueueSize),
			sdktrace.WithMaxExportBatchSize(o.batch.MaxExportBatchSize),
		),
		sdktrace.WithResource(newResource(o.serviceName, o.serviceVersion)),
	}
	for _, sp := range o.processors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}

	return &Provider{
		tp:              sdktrace.NewTracerProvider(tpOpts...),
		propagator:      w3cPropagator,
		shutdownTimeout: o.shutdownTimeout,
	}
}

// newResource describes the service. It is standalone rather than merged
// with resource.Default() to avoid schema URL conflicts between semconv
// versions.
func newResource(name, version string) *resource.Resource {
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if version != "" {
		attrs = append(attrs, semconv.ServiceVersion(version))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

// Tracer returns a named tracer. The name identifies the instrumenting
// component in emitted spans. On a nil Provider it returns a no-op tracer.
func (p *Provider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return p.TracerProvider().Tracer(name, opts...)
}

// TracerProvider exposes the provider through the API interface.
func (p *Provider) TracerProvider() trace.TracerProvider {
	if p == nil {
		return noopTracerProvider
	}
	return p.tp
}

// Propagator returns the W3C trace context and baggage propagator.
func (p *Provider) Propagator() propagation.TextMapPropagator {
	if p == nil {
		return w3cPropagator
	}
	return p.propagator
}

// ForceFlush exports all spans queued so far.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p == nil {
		return nil
	}
	return p.tp.ForceFlush(ctx)
}

// Shutdown flushes pending spans and closes the exporter. Only the first
// call does any work; later calls return the same result.
//
// When ctx has no deadline the configured shutdown timeout applies. If the
// flush does not finish in time the remaining spans are dropped and the
// returned error matches ErrFlushTimeout.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}

	p.shutdownOnce.Do(func() {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.shutdownTimeout)
			defer cancel()
		}

		err := p.tp.Shutdown(ctx)
		if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
			err = fmt.Errorf("%w: %w", ErrFlushTimeout, err)
		}
		if err != nil {
			err = fmt.Errorf("trace provider shutdown: %w", err)
		}
		p.shutdownErr = err
	})

	return p.shutdownErr
}

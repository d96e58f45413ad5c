package telemetry

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// DefaultExcludedPaths are never traced.
var DefaultExcludedPaths = []string{"/health", "/metrics"}

// Layer is the HTTP instrumentation attached to the server. It is either
// Disabled or Enabled; no other implementations exist.
type Layer interface {
	// Middleware returns the echo middleware for this layer.
	Middleware() echo.MiddlewareFunc
	// TracerProvider returns the provider handlers should use for child spans.
	TracerProvider() trace.TracerProvider
	// Active reports whether spans are being exported.
	Active() bool

	sealed()
}

// Disabled is the layer used when tracing is off. Its middleware passes
// requests through untouched and its tracers are no-ops.
type Disabled struct{}

func (Disabled) sealed() {}

// Middleware returns a pass-through middleware.
func (Disabled) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return next
	}
}

// TracerProvider returns a no-op provider.
func (Disabled) TracerProvider() trace.TracerProvider {
	return noopTracerProvider
}

// Active always returns false.
func (Disabled) Active() bool {
	return false
}

// Enabled traces every request through Provider.
type Enabled struct {
	Provider *Provider
	// Meters, when set, receives the http.server.* metrics from otelhttp.
	Meters *MeterProvider
	// ExcludedPaths are request paths that produce no span.
	ExcludedPaths []string
}

func (Enabled) sealed() {}

// TracerProvider returns the exporting provider.
func (l Enabled) TracerProvider() trace.TracerProvider {
	return l.Provider.TracerProvider()
}

// Active always returns true.
func (Enabled) Active() bool {
	return true
}

// Middleware extracts incoming W3C trace context, starts a server span per
// request and names it "METHOD /route" once echo has resolved the route.
func (l Enabled) Middleware() echo.MiddlewareFunc {
	excluded := make(map[string]struct{}, len(l.ExcludedPaths))
	for _, p := range l.ExcludedPaths {
		excluded[p] = struct{}{}
	}

	opts := []otelhttp.Option{
		otelhttp.WithTracerProvider(l.Provider.TracerProvider()),
		otelhttp.WithPropagators(l.Provider.Propagator()),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			_, skip := excluded[r.URL.Path]
			return !skip
		}),
	}
	if l.Meters != nil {
		opts = append(opts, otelhttp.WithMeterProvider(l.Meters.MeterProvider()))
	}

	wrap := echo.WrapMiddleware(otelhttp.NewMiddleware("http.server", opts...))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return wrap(func(c echo.Context) error {
			if route := c.Path(); route != "" {
				span := trace.SpanFromContext(c.Request().Context())
				span.SetName(c.Request().Method + " " + route)
				span.SetAttributes(semconv.HTTPRoute(route))
			}
			// The error handler must write the response while the span is
			// still open so the recorded status code is the real one.
			if err := next(c); err != nil {
				c.Error(err)
			}
			return nil
		})
	}
}

// AsLayer wraps an optional provider. A nil provider yields Disabled.
func AsLayer(p *Provider, opts ...LayerOption) Layer {
	if p == nil {
		return Disabled{}
	}
	l := Enabled{
		Provider:      p,
		ExcludedPaths: DefaultExcludedPaths,
	}
	for _, opt := range opts {
		opt(&l)
	}
	return l
}

// LayerOption configures the Enabled layer built by AsLayer.
type LayerOption func(*Enabled)

// WithMeters records otelhttp server metrics through m.
func WithMeters(m *MeterProvider) LayerOption {
	return func(l *Enabled) {
		l.Meters = m
	}
}

// WithExcludedPaths replaces DefaultExcludedPaths.
func WithExcludedPaths(paths ...string) LayerOption {
	return func(l *Enabled) {
		l.ExcludedPaths = paths
	}
}

// Package http serves the otelrand HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/otelrand/internal/logging"
	"github.com/fyrsmithlabs/otelrand/internal/telemetry"
)

const (
	indexBody = "Hello. You probably want to try the /rand endpoint."

	// DefaultTracerName names the tracer used for handler child spans.
	DefaultTracerName = "otelrand"
)

var noopMeterProvider metric.MeterProvider = metricnoop.NewMeterProvider()

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	// RateLimit is requests per second per client on /rand. Zero disables it.
	RateLimit   float64
	ServiceName string
	TracerName  string
}

// Server provides the otelrand HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	logger   *logging.Logger
	layer    telemetry.Layer
	tracer   trace.Tracer
	metrics  *HTTPMetrics
	registry *prometheus.Registry
	served   prometheus.Counter
	random   func() uint64
	config   *Config
}

// Option configures NewServer.
type Option func(*Server)

// WithRandomSource replaces the random number source used by /rand.
func WithRandomSource(fn func() uint64) Option {
	return func(s *Server) {
		if fn != nil {
			s.random = fn
		}
	}
}

// WithMeterProvider sends the request metrics through mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Server) {
		s.metrics = NewHTTPMetrics(mp, s.logger.Underlying())
	}
}

// WithRegistry serves /metrics from reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// NewServer creates the HTTP server. The telemetry layer is attached before
// any route is registered, so every request passes through it.
func NewServer(cfg *Config, logger *logging.Logger, layer telemetry.Layer, opts ...Option) (*Server, error) {
	if logger == nil {
		return nil, errors.New("logger is required for request tracking and debugging")
	}
	if layer == nil {
		layer = telemetry.Disabled{}
	}
	if cfg == nil {
		cfg = &Config{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		}
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = telemetry.DefaultServiceName
	}
	if cfg.TracerName == "" {
		cfg.TracerName = DefaultTracerName
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		logger:   logger.Named("http"),
		layer:    layer,
		tracer:   layer.TracerProvider().Tracer(cfg.TracerName),
		registry: prometheus.NewRegistry(),
		random:   rand.Uint64,
		config:   cfg,
	}
	s.metrics = NewHTTPMetrics(nil, s.logger.Underlying())
	for _, opt := range opts {
		opt(s)
	}

	s.served = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "otelrand_random_numbers_total",
		Help: "Random numbers served by /rand.",
	})
	if err := s.registry.Register(s.served); err != nil {
		return nil, fmt.Errorf("registering random number counter: %w", err)
	}
	// Callers passing a shared registry may already carry these.
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		var are prometheus.AlreadyRegisteredError
		if err := s.registry.Register(c); err != nil && !errors.As(err, &are) {
			return nil, fmt.Errorf("registering runtime collectors: %w", err)
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(layer.Middleware())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator:        uuid.NewString,
		RequestIDHandler: bindRequestID,
	}))
	e.Use(s.requestLogger())
	e.Use(s.metrics.MetricsMiddleware())

	s.echo = e
	s.registerRoutes()

	return s, nil
}

// bindRequestID makes the request ID visible to context-aware logging and
// records it on the request span.
func bindRequestID(c echo.Context, id string) {
	req := c.Request()
	ctx := logging.WithRequestID(req.Context(), id)
	c.SetRequest(req.WithContext(ctx))
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("http.request_id", id))
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			s.logger.Info(c.Request().Context(), "http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
			)

			return err
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleIndex)

	var limits []echo.MiddlewareFunc
	if s.config.RateLimit > 0 {
		limits = append(limits, middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
			Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(s.config.RateLimit),
				ExpiresIn: 3 * time.Minute,
			}),
			IdentifierExtractor: func(c echo.Context) (string, error) {
				return c.RealIP(), nil
			},
		}))
	}
	s.echo.GET("/rand", s.handleRand, limits...)

	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		Registry: s.registry,
	})))
}

func (s *Server) handleIndex(c echo.Context) error {
	ctx, span := s.tracer.Start(c.Request().Context(), "handle index")
	defer span.End()

	s.logger.Info(ctx, "handling index request")
	return c.String(http.StatusOK, indexBody)
}

func (s *Server) handleRand(c echo.Context) error {
	ctx, span := s.tracer.Start(c.Request().Context(), "generate random number")
	defer span.End()

	s.logger.Info(ctx, "generating random number")
	n := s.random()
	span.SetAttributes(attribute.String("otelrand.value", strconv.FormatUint(n, 10)))
	s.logger.Info(ctx, "random number generated", zap.Uint64("value", n))

	s.served.Inc()
	s.metrics.recordRandom(c)

	return c.String(http.StatusOK, fmt.Sprintf("Hello. Your random number is %d.", n))
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Tracing bool   `json:"tracing"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: s.config.ServiceName,
		Tracing: s.layer.Active(),
	})
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}

// ListenerAddr returns the bound address, or nil before Start has bound.
func (s *Server) ListenerAddr() net.Addr {
	return s.echo.ListenerAddr()
}

// Start starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
//
// When ctx is cancelled, in-flight requests get the configured shutdown
// timeout to finish. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := s.Addr()
	s.logger.Info(ctx, "starting http server",
		zap.String("addr", addr),
		zap.Bool("tracing", s.layer.Active()),
	)

	errCh := make(chan error, 1)

	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}

		return http.ErrServerClosed
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance for registering additional routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

package main

import (
	"context"
	"errors"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/otelrand/internal/logging"
	"github.com/fyrsmithlabs/otelrand/internal/telemetry"
)

// signals holds the telemetry pipelines built at startup. Every field may be
// nil when the matching signal is off.
type signals struct {
	traces *telemetry.Provider
	meters *telemetry.MeterProvider
	logs   *telemetry.LoggerProvider
}

type signalOptions struct {
	logs   []telemetry.LogOption
	meters []telemetry.MeterOption
}

// startSignals builds the log, metric and trace pipelines around exp, the
// span exporter returned by BuildExporter. On error nothing is left running:
// exp and any pipeline already built are shut down.
func startSignals(ctx context.Context, exp sdktrace.SpanExporter, cfg *telemetry.ExporterConfig, shutdownTimeout time.Duration, opts signalOptions) (*signals, error) {
	s := &signals{}

	fail := func(err error) (*signals, error) {
		if exp != nil {
			_ = exp.Shutdown(context.Background())
		}
		s.shutdown(logging.NewNop(), shutdownTimeout)
		return nil, err
	}

	var err error
	if s.logs, err = telemetry.NewLoggerProvider(ctx, cfg, opts.logs...); err != nil {
		return fail(err)
	}
	if s.meters, err = telemetry.NewMeterProvider(ctx, cfg, opts.meters...); err != nil {
		return fail(err)
	}

	if cfg != nil {
		s.traces = telemetry.Start(exp,
			telemetry.WithService(cfg.ServiceName, version),
			telemetry.WithBatchConfig(cfg.Batch),
			telemetry.WithShutdownTimeout(shutdownTimeout),
		)
	}
	return s, nil
}

// shutdown flushes traces, then metrics, then logs, so entries logged while
// flushing the other signals are still exported.
func (s *signals) shutdown(logger *logging.Logger, timeout time.Duration) {
	if s.traces != nil {
		shutdown(logger, "tracer provider", timeout, s.traces.Shutdown)
	}
	if s.meters != nil {
		shutdown(logger, "meter provider", timeout, s.meters.Shutdown)
	}
	if s.logs != nil {
		shutdown(logger, "logger provider", timeout, s.logs.Shutdown)
	}
}

// serviceLoggers returns the logger handlers use and the stdout-only logger
// for telemetry's own failures. A failed log export reported through the log
// pipeline would be queued for the next export and fail again.
func serviceLoggers(cfg *logging.Config, ws zapcore.WriteSyncer, logs *telemetry.LoggerProvider, ship bool) (service, local *logging.Logger, err error) {
	local, err = logging.NewLogger(cfg, nil, logging.WithWriter(ws))
	if err != nil {
		return nil, nil, err
	}
	if logs == nil || !ship {
		return local, local, nil
	}
	service, err = logging.NewLogger(cfg, logs.LoggerProvider(), logging.WithWriter(ws))
	if err != nil {
		return nil, nil, err
	}
	return service, local, nil
}

// shutdown runs fn bounded by timeout. A flush that runs out of time drops
// pending data, which is logged and not treated as a failure.
func shutdown(logger *logging.Logger, what string, timeout time.Duration, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := fn(ctx)
	switch {
	case err == nil:
	case errors.Is(err, telemetry.ErrFlushTimeout), errors.Is(err, context.DeadlineExceeded):
		logger.Warn(ctx, "telemetry flush timed out, pending data dropped", zap.String("component", what), zap.Error(err))
	default:
		logger.Error(ctx, "telemetry shutdown failed", zap.String("component", what), zap.Error(err))
	}
}

// Package main runs the otelrand HTTP service.
//
// Tracing is configured entirely through the standard OTEL_* environment
// variables. With none set the service runs untraced; an invalid setting
// aborts startup before the listener is bound.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/otelrand/internal/config"
	httpapi "github.com/fyrsmithlabs/otelrand/internal/http"
	"github.com/fyrsmithlabs/otelrand/internal/logging"
	"github.com/fyrsmithlabs/otelrand/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "otelrand",
		Short: "Random number HTTP service with OpenTelemetry tracing",
		Long: `otelrand serves random numbers over HTTP and traces every request.

Traces, metrics and logs are exported over OTLP when any OTEL_* variable is set:

  OTEL_EXPORTER_OTLP_ENDPOINT   collector URL (https enables TLS)
  OTEL_EXPORTER_OTLP_PROTOCOL   grpc (default) or http/protobuf
  OTEL_EXPORTER_OTLP_HEADERS    key=value,key=value sent with every export

Service settings come from --config and OTELRAND_* variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err := run(ctx, configPath, cmd.OutOrStdout())
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "otelrand: %v\n", err)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "otelrand\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Git Commit: %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}

// run wires configuration, telemetry and the HTTP server, then serves until
// ctx is cancelled. Log output goes to out.
func run(ctx context.Context, configPath string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logCfg, err := logging.FromServiceConfig(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	logCfg.Fields["version"] = version
	ws := zapcore.AddSync(out)

	logger, err := logging.NewLogger(logCfg, nil, logging.WithWriter(ws))
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	// Telemetry bootstrap. Every failure here is fatal and happens before
	// the listener is bound.
	snap := telemetry.ReadEnvironment()
	exp, expCfg, err := telemetry.BuildExporter(ctx, snap)
	if err != nil {
		logger.Error(ctx, "telemetry configuration rejected", zap.Error(err))
		return fmt.Errorf("telemetry: %w", err)
	}

	shutdownTimeout := cfg.Telemetry.ShutdownTimeout.Duration()
	sig, err := startSignals(ctx, exp, expCfg, shutdownTimeout, signalOptions{})
	if err != nil {
		logger.Error(ctx, "telemetry pipeline construction failed", zap.Error(err))
		return fmt.Errorf("telemetry: %w", err)
	}

	logger, local, err := serviceLoggers(logCfg, ws, sig.logs, cfg.Logging.OTel)
	if err != nil {
		sig.shutdown(logging.NewNop(), shutdownTimeout)
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	defer sig.shutdown(logger, shutdownTimeout)

	otel.SetErrorHandler(telemetry.ErrorHandler(local.Underlying()))

	serviceName := telemetry.DefaultServiceName
	if expCfg != nil {
		serviceName = expCfg.ServiceName
		otel.SetTracerProvider(sig.traces.TracerProvider())
		otel.SetTextMapPropagator(sig.traces.Propagator())
		logger.Info(ctx, "tracing enabled", zap.Object("exporter", expCfg))
	} else {
		logger.Info(ctx, "tracing disabled",
			zap.Bool("sdk_disabled", snap.SDKDisabled()),
			zap.Int("otel_variables", snap.Len()),
		)
	}

	layer := telemetry.AsLayer(sig.traces, telemetry.WithMeters(sig.meters))

	srv, err := httpapi.NewServer(&httpapi.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
		RateLimit:       cfg.Server.RateLimit,
		ServiceName:     serviceName,
		TracerName:      cfg.Telemetry.TracerName,
	}, logger, layer, httpapi.WithMeterProvider(sig.meters.MeterProvider()))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error(ctx, "server stopped", zap.Error(err))
		return err
	}

	logger.Info(context.Background(), "server stopped")
	return nil
}

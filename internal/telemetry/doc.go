// Package telemetry bootstraps OpenTelemetry tracing for otelrand.
//
// # Overview
//
// Configuration comes only from the standard OTEL_* environment variables.
// The environment is read once into a Snapshot; when no OTEL_* variable is
// present, tracing is off and nothing is constructed. When any is present
// the values are validated strictly and a bad value aborts startup.
//
// # Usage
//
//	snap := telemetry.ReadEnvironment()
//	exp, cfg, err := telemetry.BuildExporter(ctx, snap)
//	if err != nil {
//	    return err // ConfigError or ConstructionError
//	}
//	var provider *telemetry.Provider
//	if cfg != nil { // nil when no OTEL_* variable is set
//	    provider = telemetry.Start(exp, telemetry.WithService(cfg.ServiceName, version))
//	}
//	defer provider.Shutdown(context.Background())
//
//	layer := telemetry.AsLayer(provider)
//	e.Use(layer.Middleware())
//
// A nil *Provider is valid everywhere and AsLayer turns it into Disabled,
// whose middleware is a pass-through.
//
// # Export
//
// Spans are batched and exported on a background goroutine over OTLP/gRPC
// (default) or OTLP/HTTP protobuf. An https endpoint enables TLS with the
// system trust roots. Export failures after startup are reported through the
// OpenTelemetry error handler and never fail requests.
//
// # Testing
//
//	tp := telemetry.NewTestProvider()
//	_, span := tp.Tracer("test").Start(ctx, "work")
//	span.End()
//	tp.AssertSpanExists(t, "work")
package telemetry

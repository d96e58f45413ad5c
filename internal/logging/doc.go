// Package logging provides structured zap logging for otelrand.
//
// # Overview
//
// The package wraps zap with:
//   - a Trace level (-2, below Debug)
//   - stdout output, teed to OpenTelemetry through the otelzap bridge when a
//     logger provider is available
//   - trace_id, span_id and request.id taken from the context
//   - redaction of sensitive keys and secret-looking values
//   - per-level sampling; Error and above are never sampled
//
// # Usage
//
//	cfg, err := logging.FromServiceConfig(appCfg.Logging)
//	if err != nil {
//	    return err
//	}
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	logger.Info(ctx, "random number generated", zap.Int("value", n))
//
// Output carries the correlation fields automatically:
//
//	{"level":"info","ts":"2026-01-02T15:04:05.000Z","msg":"random number generated",
//	 "service":"otelrand","trace_id":"4bf9...","span_id":"00f0...","value":42}
//
// # Secrets
//
// Use Secret or RedactedString for values that must never be written:
//
//	logger.Debug(ctx, "header", logging.Secret("authorization", h.Value))
//
// # Testing
//
//	tl := logging.NewTestLogger()
//	tl.Info(ctx, "hello")
//	tl.AssertLogged(t, zapcore.InfoLevel, "hello")
package logging

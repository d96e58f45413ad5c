package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// ErrorHandler routes asynchronous SDK errors, such as a failed batch export,
// to logger. Install it with otel.SetErrorHandler.
func ErrorHandler(logger *zap.Logger) otel.ErrorHandler {
	logger = logger.Named("otel")
	return otel.ErrorHandlerFunc(func(err error) {
		logger.Warn("telemetry export error", zap.Error(err))
	})
}

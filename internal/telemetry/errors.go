package telemetry

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig matches every *ConfigError via errors.Is.
var ErrInvalidConfig = errors.New("invalid telemetry configuration")

// ErrFlushTimeout is returned by Provider.Shutdown when pending spans could
// not be exported before the shutdown deadline. Those spans are dropped.
var ErrFlushTimeout = errors.New("telemetry flush timed out")

// ConfigError reports an OTEL_* value that cannot be used.
//
// Startup must abort on a ConfigError: the variables were present, so the
// operator asked for tracing, and running without it would hide the mistake.
type ConfigError struct {
	// Variable is the environment variable the value came from. Empty when
	// the error comes from a parser invoked outside of ResolveConfig.
	Variable string
	// Input identifies the offending input. Header values are never included.
	Input  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Variable == "" {
		return fmt.Sprintf("%s: %s: %q", ErrInvalidConfig, e.Reason, e.Input)
	}
	return fmt.Sprintf("%s: %s: %s: %q", ErrInvalidConfig, e.Variable, e.Reason, e.Input)
}

// Is reports whether target is ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ConstructionError reports that the exporter for a valid configuration could
// not be built.
type ConstructionError struct {
	Protocol Protocol
	Err      error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("creating %s trace exporter: %v", e.Protocol, e.Err)
}

func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// withVariable returns a copy of err attributed to name when err is a
// *ConfigError, and err unchanged otherwise.
func withVariable(err error, name string) error {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		attributed := *cfgErr
		attributed.Variable = name
		return &attributed
	}
	return err
}

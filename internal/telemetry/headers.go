package telemetry

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/fyrsmithlabs/otelrand/internal/config"
)

// Header is one static metadata entry attached to every export request.
type Header struct {
	Name  string
	Value config.Secret
}

// ParseHeaders parses a comma-separated list of key=value pairs, the format
// of OTEL_EXPORTER_OTLP_HEADERS. Values are percent-decoded.
//
// An empty (or blank) input yields no headers. Every malformed entry is an
// error; nothing is silently dropped. The result keeps input order.
func ParseHeaders(raw string) ([]Header, error) {
	if strings.TrimSpace(raw) == "" {
		return []Header{}, nil
	}

	tokens := strings.Split(raw, ",")
	headers := make([]Header, 0, len(tokens))
	for _, token := range tokens {
		h, err := parseHeader(token)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, nil
}

func parseHeader(token string) (Header, error) {
	trimmed := strings.TrimSpace(token)
	if n := strings.Count(trimmed, "="); n != 1 {
		return Header{}, &ConfigError{
			Input:  trimmed,
			Reason: fmt.Sprintf("header entry must contain exactly one '=', found %d", n),
		}
	}

	name, rawValue, _ := strings.Cut(trimmed, "=")
	name = strings.TrimSpace(name)
	if !httpguts.ValidHeaderFieldName(name) {
		return Header{}, &ConfigError{Input: name, Reason: "invalid header name"}
	}

	value, err := url.PathUnescape(strings.TrimSpace(rawValue))
	if err != nil {
		return Header{}, &ConfigError{Input: name, Reason: "header value is not valid percent-encoding"}
	}
	if !validHeaderValue(value) {
		return Header{}, &ConfigError{Input: name, Reason: "header value must be printable ASCII"}
	}

	return Header{Name: name, Value: config.Secret(value)}, nil
}

// validHeaderValue accepts the values both transports can carry: a valid HTTP
// field value restricted to ASCII, which is also a valid gRPC ASCII
// metadata value.
func validHeaderValue(v string) bool {
	for i := 0; i < len(v); i++ {
		if v[i] < 0x20 || v[i] > 0x7e {
			return false
		}
	}
	return httpguts.ValidHeaderFieldValue(v)
}

// validGRPCMetadataKey reports whether name survives gRPC's metadata key
// rules once lower-cased: [0-9a-z-_.], not reserved with the grpc- prefix.
func validGRPCMetadataKey(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "grpc-") {
		return false
	}
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9') && c != '-' && c != '_' && c != '.' {
			return false
		}
	}
	return true
}

// headerMap converts headers to the exporter option form. A repeated name
// keeps its last value.
func headerMap(headers []Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Name] = h.Value.Value()
	}
	return m
}

// headerNames lists header names without values, for logs and errors.
func headerNames(headers []Header) []string {
	names := make([]string, len(headers))
	for i, h := range headers {
		names[i] = h.Name
	}
	return names
}

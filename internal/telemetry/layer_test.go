package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

func newTestEcho(layer Layer) *echo.Echo {
	e := echo.New()
	e.Use(layer.Middleware())
	e.GET("/items/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "item "+c.Param("id"))
	})
	e.GET("/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusInternalServerError, "broken")
	})
	e.GET("/health", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	e.GET("/span", func(c echo.Context) error {
		span := trace.SpanFromContext(c.Request().Context())
		return c.String(http.StatusOK, span.SpanContext().TraceID().String())
	})
	return e
}

func serve(e *echo.Echo, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAsLayer_NilProviderIsDisabled(t *testing.T) {
	layer := AsLayer(nil)
	assert.Equal(t, Disabled{}, layer)
	assert.False(t, layer.Active())

	_, span := layer.TracerProvider().Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.IsRecording())
}

func TestDisabled_PassesThrough(t *testing.T) {
	e := newTestEcho(Disabled{})

	rec := serve(e, "/items/7", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "item 7", rec.Body.String())

	rec = serve(e, "/fail", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = serve(e, "/span", nil)
	assert.Equal(t, trace.TraceID{}.String(), rec.Body.String())
}

func TestEnabled_NamesSpanByRoute(t *testing.T) {
	tp := NewTestProvider()
	defer tp.Shutdown(context.Background())

	layer := AsLayer(tp.Provider)
	require.True(t, layer.Active())
	e := newTestEcho(layer)

	rec := serve(e, "/items/42", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "item 42", rec.Body.String())

	tp.AssertSpanExists(t, "GET /items/:id")
	tp.AssertSpanAttribute(t, "GET /items/:id", "http.route", "/items/:id")

	span := tp.SpanByName("GET /items/:id")
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
}

func TestEnabled_RecordsErrorStatus(t *testing.T) {
	tp := NewTestProvider()
	defer tp.Shutdown(context.Background())

	e := newTestEcho(AsLayer(tp.Provider))
	rec := serve(e, "/fail", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	span := tp.SpanByName("GET /fail")
	require.NotNil(t, span)
	assert.Equal(t, codes.Error, span.Status().Code)
}

func TestEnabled_ContinuesIncomingTrace(t *testing.T) {
	tp := NewTestProvider()
	defer tp.Shutdown(context.Background())

	e := newTestEcho(AsLayer(tp.Provider))
	rec := serve(e, "/span", http.Header{
		"Traceparent": {"00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"},
	})
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", rec.Body.String())

	span := tp.SpanByName("GET /span")
	require.NotNil(t, span)
	assert.Equal(t, "00f067aa0ba902b7", span.Parent().SpanID().String())
}

func TestEnabled_ExcludedPaths(t *testing.T) {
	tp := NewTestProvider()
	defer tp.Shutdown(context.Background())

	e := newTestEcho(AsLayer(tp.Provider))
	rec := serve(e, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, tp.Spans())

	e = newTestEcho(AsLayer(tp.Provider, WithExcludedPaths()))
	serve(e, "/health", nil)
	tp.AssertSpanExists(t, "GET /health")
}

func TestEnabled_UnmatchedRoute(t *testing.T) {
	tp := NewTestProvider()
	defer tp.Shutdown(context.Background())

	e := newTestEcho(AsLayer(tp.Provider))
	rec := serve(e, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.Len(t, tp.Spans(), 1)
}

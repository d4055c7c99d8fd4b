package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/items/:id", func(c echo.Context) error {
		return SuccessResponse(c, map[string]string{"id": c.Param("id")})
	})
	e.GET("/api/boom", func(echo.Context) error { panic("boom") })
}

func TestServerRecordsRouteTemplates(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServer(routes{}, WithMetrics(reg, reg, "/metrics"))

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/items/"+id, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"id":"`+id+`"`)
	}

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `aria_http_requests_total{method="GET",path="/api/items/:id",status="200"} 3`)
	assert.False(t, strings.Contains(body, `path="/api/items/1"`))
}

func TestServerRecoversPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServer(routes{}, WithMetrics(reg, reg, ""))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServersShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() {
		NewServer(nil, WithMetrics(reg, reg, "/metrics"))
		NewServer(nil, WithMetrics(reg, reg, "/metrics"))
	})
}

func TestAppErrorResponseStatus(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error {
		return AppErrorResponse(c, NotFoundError("nothing here").WithParam("id", 3))
	})
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_FOUND")
}

func TestAppErrorResponseMapsContextErrors(t *testing.T) {
	e := echo.New()
	e.GET("/slow", func(c echo.Context) error {
		return AppErrorResponse(c, fmt.Errorf("detector: %w", context.DeadlineExceeded))
	})
	e.GET("/opaque", func(c echo.Context) error {
		return AppErrorResponse(c, errors.New("dial tcp 10.0.0.7:9000: refused"))
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_TIMEOUT")

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/opaque", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
}

func TestServerStartReportsBusyPort(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewServer(routes{}, WithHost("127.0.0.1"), WithPort(0), WithMetrics(reg, reg, ""))
	require.NoError(t, first.Start())
	defer first.Stop(context.Background())

	resp, err := http.Get("http://" + first.Addr() + "/api/items/9")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(echo.HeaderXRequestID))

	_, port, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)
	p, _ := strconv.Atoi(port)
	second := NewServer(nil, WithHost("127.0.0.1"), WithPort(p), WithMetrics(reg, reg, ""))
	assert.Error(t, second.Start())
}

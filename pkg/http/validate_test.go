package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleItem struct {
	Time string `json:"time" validate:"required"`
}

type sampleRequest struct {
	Name  string       `json:"name" validate:"required"`
	Items []sampleItem `json:"items" validate:"min=1,dive"`
	Limit int          `json:"limit" default:"10" validate:"lte=100"`
}

func bindBody(body string) echo.Context {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestReadAndValidateRequestUsesJSONPaths(t *testing.T) {
	var req sampleRequest
	res := ReadAndValidateRequest(bindBody(`{"items":[]}`), &req)

	errs, ok := res.([]ValidationError)
	require.True(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "name", errs[0].Field)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "items", errs[1].Field)
	assert.Equal(t, "items must contain at least 1 items", errs[1].Message)
}

func TestReadAndValidateRequestNestedField(t *testing.T) {
	var req sampleRequest
	res := ReadAndValidateRequest(bindBody(`{"name":"a","items":[{"time":""}]}`), &req)

	errs := res.([]ValidationError)
	require.Len(t, errs, 1)
	assert.Equal(t, "items[0].time", errs[0].Field)
}

func TestReadAndValidateRequestAppliesDefaults(t *testing.T) {
	var req sampleRequest
	assert.Nil(t, ReadAndValidateRequest(bindBody(`{"name":"a","items":[{"time":"1"}]}`), &req))
	assert.Equal(t, 10, req.Limit)
}

func TestReadAndValidateRequestMalformedBody(t *testing.T) {
	var req sampleRequest
	errs := ReadAndValidateRequest(bindBody(`{"name":`), &req).([]ValidationError)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_MALFORMED_BODY", errs[0].Code)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"AriaPull/internal/domain/models"
	"AriaPull/internal/service/ratelimit"
	"AriaPull/internal/services/smoothing"
	xhttp "AriaPull/pkg/http"
	"AriaPull/pkg/metrics"
	"AriaPull/pkg/units"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePairs struct {
	events  []models.AirborneEvent
	err     error
	failed  []error
	got     []*models.RadarPair
	summary models.EventSummary
	resets  int
}

func (f *fakePairs) ProcessEvents(_ context.Context, p *models.RadarPair) ([]models.AirborneEvent, error) {
	f.got = append(f.got, p)
	return f.events, f.err
}

func (f *fakePairs) Fail(_ *models.RadarPair, cause error) error {
	f.failed = append(f.failed, cause)
	return cause
}

func (f *fakePairs) Summary() models.EventSummary { return f.summary }
func (f *fakePairs) ResetSummary()                { f.resets++ }
func (f *fakePairs) Errors() int64                { return int64(len(f.failed)) + 7 }

type fakeStore struct {
	events []models.AirborneEvent
	limit  int
	err    error
}

func (s *fakeStore) Accept(context.Context, models.AirborneEvent) error { return nil }
func (s *fakeStore) Init(context.Context) error                         { return nil }
func (s *fakeStore) Health(context.Context) error                       { return s.err }
func (s *fakeStore) Recent(_ context.Context, limit int) ([]models.AirborneEvent, error) {
	s.limit = limit
	return s.events, s.err
}

type env struct {
	e     *echo.Echo
	pairs *fakePairs
	store *fakeStore
	errs  *metrics.ErrorCounter
}

func newEnv(t *testing.T) *env {
	t.Helper()
	errs := metrics.NewErrorCounter()
	trimmer, err := smoothing.NewTrimmer[models.RadarHit](smoothing.Config{
		SpeedLimit:              units.Knots(20),
		GroundAltitudeTolerance: units.Feet(50),
		MinPoints:               2,
	}, errs)
	require.NoError(t, err)

	pairs := &fakePairs{}
	store := &fakeStore{}
	h := NewEventsEchoHandler(nil, pairs, trimmer, store, nil)

	e := echo.New()
	h.RegisterRoutes(e)
	return &env{e: e, pairs: pairs, store: store, errs: errs}
}

func (v *env) do(method, path, body string) (*httptest.ResponseRecorder, xhttp.APIResponse) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)

	var resp xhttp.APIResponse
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	}
	return rec, resp
}

const pairBody = `{
  "track1": {"id": "A", "points": [{"time": "2024-05-01T12:00:00Z", "altitude_ft": 3000, "speed_kt": 180}]},
  "track2": {"id": "B", "points": [{"time": "2024-05-01T12:00:00Z", "altitude_ft": 3500, "speed_kt": 200}]}
}`

func TestSummaryAndReset(t *testing.T) {
	v := newEnv(t)
	v.pairs.summary = models.EventSummary{TotalEvents: 4, ByCategory: map[string]int64{"level/level": 4}}

	rec, resp := v.do(http.MethodGet, "/api/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, 4.0, data["total_events"])

	rec, _ = v.do(http.MethodPost, "/api/summary/reset", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, v.pairs.resets)
}

func TestErrorsEndpoint(t *testing.T) {
	v := newEnv(t)
	_, resp := v.do(http.MethodGet, "/api/errors", "")
	assert.Equal(t, map[string]interface{}{"errors": 7.0}, resp.Data)
}

func TestProcessPair(t *testing.T) {
	v := newEnv(t)
	v.pairs.events = []models.AirborneEvent{{ID: "e1", Category: "level/level"}}

	rec, resp := v.do(http.MethodPost, "/api/pairs", pairBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, v.pairs.got, 1)
	assert.Equal(t, "A|B", v.pairs.got[0].Key())

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "A|B", data["pair"])
	assert.Len(t, data["events"], 1)
}

func TestProcessPairEmptyEventsIsArray(t *testing.T) {
	v := newEnv(t)
	rec, _ := v.do(http.MethodPost, "/api/pairs", pairBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"events":[]`)
}

func TestProcessPairFailure(t *testing.T) {
	v := newEnv(t)
	v.pairs.err = errors.New("detect: remote detector unavailable")

	rec, _ := v.do(http.MethodPost, "/api/pairs", pairBody)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_PAIR_FAILED")
}

func TestProcessPairInvalidBodyIsCounted(t *testing.T) {
	v := newEnv(t)

	rec, _ := v.do(http.MethodPost, "/api/pairs", `{"track1":{"id":"A","points":[]}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, v.pairs.failed, 1)
	assert.Empty(t, v.pairs.got)

	rec, _ = v.do(http.MethodPost, "/api/pairs",
		`{"track1":{"id":"A","points":[{"time":"soon"}]},"track2":{"id":"B","points":[{"time":"1714564800"}]}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, v.pairs.failed, 2)
}

const trackBody = `{"track": {"id": "N123", "points": [
  {"time": "2024-05-01T12:00:00Z", "altitude_ft": 1000, "speed_kt": 5},
  {"time": "2024-05-01T12:00:01Z", "altitude_ft": 1010, "speed_kt": 8},
  {"time": "2024-05-01T12:00:02Z", "altitude_ft": 1500, "speed_kt": 120},
  {"time": "2024-05-01T12:00:03Z", "altitude_ft": 2000, "speed_kt": 140},
  {"time": "2024-05-01T12:00:04Z", "altitude_ft": 1049, "speed_kt": 6}
]}`

func TestCleanTrack(t *testing.T) {
	v := newEnv(t)

	rec, resp := v.do(http.MethodPost, "/api/tracks/clean", trackBody+"}")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, 5.0, data["original_size"])
	assert.Equal(t, 3.0, data["removed_points"])
	track := data["track"].(map[string]interface{})
	assert.Len(t, track["points"], 2)
}

func TestCleanTrackOverridesAndRejection(t *testing.T) {
	v := newEnv(t)

	rec, _ := v.do(http.MethodPost, "/api/tracks/clean", trackBody+`, "min_points": 4}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_TRACK_REJECTED")
	assert.Contains(t, rec.Body.String(), "insufficient points")
	assert.Equal(t, int64(0), v.errs.Count())

	rec, _ = v.do(http.MethodPost, "/api/tracks/clean", trackBody+`, "speed_limit_knots": 1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"removed_points":0`)

	rec, _ = v.do(http.MethodPost, "/api/tracks/clean", trackBody+`, "speed_limit_knots": -1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCleanTrackMissingSpeedIsCounted(t *testing.T) {
	v := newEnv(t)
	body := `{"track": {"id": "N1", "points": [
	  {"time": "2024-05-01T12:00:00Z", "altitude_ft": 1000, "speed_kt": 5},
	  {"time": "2024-05-01T12:00:01Z", "altitude_ft": 1000}
	]}}`

	rec, _ := v.do(http.MethodPost, "/api/tracks/clean", body)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing speed data")
	assert.Equal(t, int64(1), v.errs.Count())
}

func TestEvents(t *testing.T) {
	v := newEnv(t)
	v.store.events = []models.AirborneEvent{{ID: "e1", Time: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}}

	rec, resp := v.do(http.MethodGet, "/api/events?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, v.store.limit)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, 1.0, data["total"])

	_, _ = v.do(http.MethodGet, "/api/events", "")
	assert.Equal(t, 100, v.store.limit)

	rec, _ = v.do(http.MethodGet, "/api/events?limit=5000", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	v.store.err = errors.New("clickhouse down")
	rec, _ = v.do(http.MethodGet, "/api/events", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestEventsWithoutStore(t *testing.T) {
	errs := metrics.NewErrorCounter()
	trimmer, err := smoothing.NewTrimmer[models.RadarHit](smoothing.Config{SpeedLimit: 20, GroundAltitudeTolerance: 50, MinPoints: 1}, errs)
	require.NoError(t, err)
	e := echo.New()
	NewEventsEchoHandler(nil, &fakePairs{}, trimmer, nil, nil).RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	v := newEnv(t)
	h := NewEventsEchoHandler(nil, v.pairs, nil, v.store, nil).WithHealthChecks(
		HealthCheck{Name: "clickhouse", Check: v.store.Health},
		HealthCheck{Name: "redis", Check: func(context.Context) error { return nil }},
	)
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	v.store.err = errors.New("dial tcp: refused")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "refused")
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)
}

func TestRateLimitAppliesToPosts(t *testing.T) {
	v := newEnv(t)
	e := echo.New()
	errs := metrics.NewErrorCounter()
	trimmer, _ := smoothing.NewTrimmer[models.RadarHit](smoothing.Config{SpeedLimit: 20, GroundAltitudeTolerance: 50, MinPoints: 1}, errs)
	NewEventsEchoHandler(nil, v.pairs, trimmer, v.store, nil).
		WithRateLimit(ratelimit.New(), 0.001, 1).
		RegisterRoutes(e)

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/pairs", strings.NewReader(pairBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, post())
	assert.Equal(t, http.StatusTooManyRequests, post())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

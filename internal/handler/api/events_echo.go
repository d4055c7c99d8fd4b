package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"AriaPull/internal/domain/models"
	domrepo "AriaPull/internal/domain/repository"
	"AriaPull/internal/service/alertfeed"
	"AriaPull/internal/service/ratelimit"
	"AriaPull/internal/services/smoothing"
	xhttp "AriaPull/pkg/http"
	xlogger "AriaPull/pkg/logger"
	"AriaPull/pkg/units"

	"github.com/labstack/echo/v4"
)

// PairService is the pair pipeline as seen by the API.
type PairService interface {
	ProcessEvents(ctx context.Context, pair *models.RadarPair) ([]models.AirborneEvent, error)
	Fail(pair *models.RadarPair, cause error) error
	Summary() models.EventSummary
	ResetSummary()
	Errors() int64
}

// HealthCheck reports whether one dependency is usable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// EventsEchoHandler serves the pipeline's summary, the stored events, the
// synchronous pair and track endpoints and the live alert feed.
type EventsEchoHandler struct {
	logger  *xlogger.Logger
	pairs   PairService
	trimmer *smoothing.Trimmer[models.RadarHit]
	store   domrepo.EventStore
	feed    *alertfeed.Hub
	limiter *ratelimit.Limiter
	rps     float64
	burst   int
	checks  []HealthCheck
}

func NewEventsEchoHandler(
	logger *xlogger.Logger,
	pairs PairService,
	trimmer *smoothing.Trimmer[models.RadarHit],
	store domrepo.EventStore,
	feed *alertfeed.Hub,
) *EventsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &EventsEchoHandler{logger: logger, pairs: pairs, trimmer: trimmer, store: store, feed: feed}
}

// WithRateLimit limits the POST endpoints per client IP.
func (h *EventsEchoHandler) WithRateLimit(l *ratelimit.Limiter, rps float64, burst int) *EventsEchoHandler {
	h.limiter, h.rps, h.burst = l, rps, burst
	return h
}

// WithHealthChecks adds dependencies to /api/health.
func (h *EventsEchoHandler) WithHealthChecks(checks ...HealthCheck) *EventsEchoHandler {
	h.checks = append(h.checks, checks...)
	return h
}

func (h *EventsEchoHandler) RegisterRoutes(e *echo.Echo) {
	var limited []echo.MiddlewareFunc
	if h.limiter != nil {
		limited = append(limited, h.limiter.Middleware(h.rps, h.burst))
	}

	g := e.Group("/api")
	g.GET("/summary", h.Summary)
	g.POST("/summary/reset", h.ResetSummary)
	g.GET("/errors", h.Errors)
	g.GET("/health", h.Health)
	g.GET("/events", h.Events)
	g.POST("/pairs", h.ProcessPair, limited...)
	g.POST("/tracks/clean", h.CleanTrack, limited...)

	if h.feed != nil {
		e.GET("/ws/events", echo.WrapHandler(http.HandlerFunc(h.feed.ServeWS)))
	}
}

func (h *EventsEchoHandler) Summary(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.pairs.Summary())
}

func (h *EventsEchoHandler) ResetSummary(c echo.Context) error {
	h.pairs.ResetSummary()
	h.logger.Info("event summary reset", xlogger.String("remote", c.RealIP()))
	return xhttp.NoContentResponse(c)
}

func (h *EventsEchoHandler) Errors(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]int64{"errors": h.pairs.Errors()})
}

func (h *EventsEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for _, hc := range h.checks {
		if err := hc.Check(ctx); err != nil {
			deps[hc.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[hc.Name] = "ok"
	}
	return xhttp.DataResponse(c, status, deps)
}

func (h *EventsEchoHandler) Events(c echo.Context) error {
	if h.store == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("event store is not enabled"))
	}
	req := &models.EventsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	events, err := h.store.Recent(c.Request().Context(), req.Limit)
	if err != nil {
		h.logger.Error("recent events error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not load events").WithError(err))
	}
	return xhttp.ListResponse(c, events, int64(len(events)))
}

func (h *EventsEchoHandler) ProcessPair(c echo.Context) error {
	req := &models.TrackPairMessage{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		_ = h.pairs.Fail(nil, errors.New("invalid track pair request"))
		return xhttp.BadRequestResponse(c, verr)
	}
	pair, err := req.ToPair()
	if err != nil {
		_ = h.pairs.Fail(nil, err)
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	events, err := h.pairs.ProcessEvents(c.Request().Context(), pair)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.UnprocessableError("ERR_PAIR_FAILED", "", err.Error()).WithError(err))
	}
	if events == nil {
		events = []models.AirborneEvent{}
	}
	return xhttp.SuccessResponse(c, models.ProcessPairResponse{Pair: pair.Key(), Events: events})
}

func (h *EventsEchoHandler) CleanTrack(c echo.Context) error {
	req := &models.CleanTrackRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	trimmer, err := h.trimmerFor(req)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	track, err := req.Track.ToTrack()
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	cleaned, err := trimmer.Clean(track)
	if err != nil {
		var rej *smoothing.RejectionError
		if errors.As(err, &rej) {
			appErr := xhttp.UnprocessableError("ERR_TRACK_REJECTED", "track", rej.Error()).
				WithParam("kind", rej.Kind.Error()).
				WithParam("size", rej.Size).
				WithParam("remaining", rej.Remaining)
			return xhttp.AppErrorResponse(c, appErr)
		}
		return xhttp.AppErrorResponse(c, err)
	}

	return xhttp.SuccessResponse(c, models.CleanTrackResponse{
		Track:         models.NewTrackMessage(cleaned),
		OriginalSize:  track.Len(),
		RemovedPoints: track.Len() - cleaned.Len(),
	})
}

// trimmerFor applies the request's threshold overrides, if any.
func (h *EventsEchoHandler) trimmerFor(req *models.CleanTrackRequest) (*smoothing.Trimmer[models.RadarHit], error) {
	if req.SpeedLimitKnots == nil && req.GroundAltitudeToleranceFt == nil && req.MinPoints == nil {
		return h.trimmer, nil
	}
	cfg := h.trimmer.Config()
	if req.SpeedLimitKnots != nil {
		cfg.SpeedLimit = units.Knots(*req.SpeedLimitKnots)
	}
	if req.GroundAltitudeToleranceFt != nil {
		cfg.GroundAltitudeTolerance = units.Feet(*req.GroundAltitudeToleranceFt)
	}
	if req.MinPoints != nil {
		cfg.MinPoints = *req.MinPoints
	}
	return h.trimmer.WithConfig(cfg)
}

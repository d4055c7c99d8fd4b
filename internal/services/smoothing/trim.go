// Package smoothing cleans surveillance tracks before detection.
package smoothing

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"AriaPull/internal/domain/models"
	"AriaPull/internal/domain/repository"
	applogger "AriaPull/pkg/logger"
	"AriaPull/pkg/units"
	"AriaPull/pkg/util"

	"github.com/go-playground/validator/v10"
)

var (
	ErrMissingSpeedData   = errors.New("missing speed data")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrTrimmingFailed     = errors.New("trimming failed")
)

// Config holds the trimming thresholds.
type Config struct {
	SpeedLimit              units.Speed    `validate:"gt=0"`
	GroundAltitudeTolerance units.Distance `validate:"gte=0"`
	MinPoints               int            `validate:"min=1"`
}

var validate = validator.New()

func (c Config) Validate() error {
	if math.IsNaN(float64(c.SpeedLimit)) || math.IsNaN(float64(c.GroundAltitudeTolerance)) {
		return fmt.Errorf("trimmer thresholds must be numbers")
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("trimmer config: %w", err)
	}
	return nil
}

// RejectionError reports why a track was not cleaned. Kind is one of the
// Err* sentinels; Err holds the underlying cause for ErrTrimmingFailed.
type RejectionError struct {
	Kind      error
	TrackID   string
	Size      int
	Remaining int
	Rows      []string
	Err       error
}

func (e *RejectionError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrInsufficientPoints):
		return fmt.Sprintf("track %s: %v: %d of %d points left", e.TrackID, e.Kind, e.Remaining, e.Size)
	case e.Err != nil:
		return fmt.Sprintf("track %s (%d points): %v: %v", e.TrackID, e.Size, e.Kind, e.Err)
	default:
		return fmt.Sprintf("track %s (%d points): %v", e.TrackID, e.Size, e.Kind)
	}
}

func (e *RejectionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// RowFormatter renders one point for the diagnostic row dump.
type RowFormatter[T any] func(p models.Point[T]) string

// DefaultRow renders time,altitude_ft,speed_kt,payload.
func DefaultRow[T any](p models.Point[T]) string {
	speed := ""
	if s, ok := p.Speed(); ok {
		speed = fmt.Sprintf("%.1f", s.InKnots())
	}
	return fmt.Sprintf("%s,%.1f,%s,%+v", p.Time().UTC().Format(time.RFC3339Nano), p.Altitude().InFeet(), speed, p.Payload())
}

// Trimmer removes slow, near-ground points from both ends of a track.
// A Trimmer is safe for concurrent use once configured.
type Trimmer[T any] struct {
	cfg     Config
	errs    repository.ErrorCounter
	metrics repository.Metrics
	log     *applogger.Logger
	rows    RowFormatter[T]

	// isGround decides whether a boundary point is dropped, given the
	// altitude of the boundary it started from.
	isGround func(p models.Point[T], anchor units.Distance) bool
}

func NewTrimmer[T any](cfg Config, errs repository.ErrorCounter) (*Trimmer[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if errs == nil {
		return nil, fmt.Errorf("trimmer: error counter is required")
	}
	t := &Trimmer[T]{cfg: cfg, errs: errs, rows: DefaultRow[T]}
	t.isGround = t.slowAndLow
	return t, nil
}

// SetLogger sets an optional logger for diagnostics.
func (t *Trimmer[T]) SetLogger(l *applogger.Logger) { t.log = l }

// SetMetrics sets an optional recorder for rejection counts.
func (t *Trimmer[T]) SetMetrics(m repository.Metrics) { t.metrics = m }

// SetRowFormatter replaces the row dump format.
func (t *Trimmer[T]) SetRowFormatter(f RowFormatter[T]) {
	if f != nil {
		t.rows = f
	}
}

func (t *Trimmer[T]) Config() Config { return t.cfg }

// WithConfig returns a trimmer with other thresholds that shares this one's
// counter, logger, metrics and row format.
func (t *Trimmer[T]) WithConfig(cfg Config) (*Trimmer[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := *t
	c.cfg = cfg
	c.isGround = c.slowAndLow
	return &c, nil
}

// Clean returns a new track without its leading and trailing ground points.
// Failures are *RejectionError values matching one of the Err* sentinels.
func (t *Trimmer[T]) Clean(track models.Track[T]) (models.Track[T], error) {
	for i := 0; i < track.Len(); i++ {
		if !track.At(i).HasSpeed() {
			return models.Track[T]{}, t.fail(ErrMissingSpeedData, track, nil)
		}
	}

	cleaned, err := util.GuardValue(func() (models.Track[T], error) {
		return t.trim(track), nil
	})
	if err != nil {
		return models.Track[T]{}, t.fail(ErrTrimmingFailed, track, err)
	}

	if cleaned.Len() < t.cfg.MinPoints {
		rej := &RejectionError{
			Kind:      ErrInsufficientPoints,
			TrackID:   track.ID(),
			Size:      track.Len(),
			Remaining: cleaned.Len(),
		}
		t.record(rej)
		if t.log != nil {
			t.log.Debug("track too short after trimming",
				applogger.String("track_id", track.ID()),
				applogger.Int("size", track.Len()),
				applogger.Int("remaining", cleaned.Len()),
				applogger.Int("min_points", t.cfg.MinPoints),
			)
		}
		return models.Track[T]{}, rej
	}
	return cleaned, nil
}

// trim walks two cursors inward. Each anchor is the altitude of the original
// boundary point and is not moved as points are dropped.
func (t *Trimmer[T]) trim(track models.Track[T]) models.Track[T] {
	lo, hi := 0, track.Len()
	if hi == 0 {
		return track.Sub(0, 0)
	}

	front := track.At(0).Altitude()
	for lo < hi && t.isGround(track.At(lo), front) {
		lo++
	}
	if lo == hi {
		return track.Sub(lo, hi)
	}

	back := track.At(hi - 1).Altitude()
	for hi > lo && t.isGround(track.At(hi-1), back) {
		hi--
	}
	return track.Sub(lo, hi)
}

func (t *Trimmer[T]) slowAndLow(p models.Point[T], anchor units.Distance) bool {
	speed, _ := p.Speed()
	return speed.IsLessThan(t.cfg.SpeedLimit) &&
		p.Altitude().Minus(anchor).Abs().IsLessThan(t.cfg.GroundAltitudeTolerance)
}

func (t *Trimmer[T]) fail(kind error, track models.Track[T], cause error) *RejectionError {
	rej := &RejectionError{
		Kind:    kind,
		TrackID: track.ID(),
		Size:    track.Len(),
		Rows:    t.dump(track),
		Err:     cause,
	}
	t.errs.Increment()
	t.record(rej)
	if t.log != nil {
		t.log.Error("track rejected",
			applogger.String("track_id", rej.TrackID),
			applogger.Int("size", rej.Size),
			applogger.String("kind", kindLabel(kind)),
			applogger.Strings("rows", rej.Rows),
			applogger.Error(cause),
		)
	}
	return rej
}

func (t *Trimmer[T]) record(rej *RejectionError) {
	if t.metrics != nil {
		t.metrics.RecordRejection(kindLabel(rej.Kind))
	}
}

// dump never panics, even if the row formatter does.
func (t *Trimmer[T]) dump(track models.Track[T]) []string {
	rows := make([]string, 0, track.Len())
	for i := 0; i < track.Len(); i++ {
		p := track.At(i)
		row, err := util.GuardValue(func() (string, error) { return t.rows(p), nil })
		if err != nil {
			row = fmt.Sprintf("<unprintable row %d: %v>", i, err)
		}
		rows = append(rows, row)
	}
	return rows
}

func kindLabel(kind error) string {
	return strings.ReplaceAll(kind.Error(), " ", "_")
}

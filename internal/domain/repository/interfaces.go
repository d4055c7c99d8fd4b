package repository

import (
	"context"

	"AriaPull/internal/domain/models"
)

// EventSink receives detected events one at a time.
type EventSink interface {
	Accept(ctx context.Context, e models.AirborneEvent) error
}

// EventStore persists events and serves recent ones back to the API.
type EventStore interface {
	EventSink
	Init(ctx context.Context) error
	Recent(ctx context.Context, limit int) ([]models.AirborneEvent, error)
	Health(ctx context.Context) error
}

// ErrorCounter is the shared, monotonic count of failed per-item operations.
type ErrorCounter interface {
	Increment()
	Count() int64
}

type Metrics interface {
	RecordPairProcessed(outcome string)
	RecordEventDetected(category string)
	RecordError(kind string)
	RecordRejection(kind string)
	RecordLatency(op string, seconds float64)
}

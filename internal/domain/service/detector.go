package service

import (
	"context"

	"AriaPull/internal/domain/models"
)

// Detector finds airborne events in a track pair. Implementations may fail
// or panic; callers isolate each pair.
type Detector[T any] interface {
	Detect(ctx context.Context, pair models.TrackPair[T]) ([]models.AirborneEvent, error)
}

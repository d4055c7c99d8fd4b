package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"AriaPull/internal/domain/models"
	domrepo "AriaPull/internal/domain/repository"
	"AriaPull/pkg/cache"
	applogger "AriaPull/pkg/logger"
)

// recentWindow is how many events are cached; smaller limits are served
// from a prefix of it.
const recentWindow = 1000

var recentKey = cache.Key("events", "recent")

// CachedEventStore puts a short-lived cache in front of Recent so dashboards
// polling /api/events do not each hit ClickHouse. Storing an event drops the
// cached list.
type CachedEventStore struct {
	domrepo.EventStore
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

func NewCachedEventStore(store domrepo.EventStore, c cache.Service, ttl time.Duration) (*CachedEventStore, error) {
	if store == nil || c == nil {
		return nil, fmt.Errorf("cached event store: store and cache are required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cached event store: ttl must be positive, got %s", ttl)
	}
	return &CachedEventStore{EventStore: store, cache: c, ttl: ttl, l: applogger.Nop()}, nil
}

func (s *CachedEventStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CachedEventStore) Accept(ctx context.Context, e models.AirborneEvent) error {
	if err := s.EventStore.Accept(ctx, e); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, recentKey); err != nil {
		s.l.Warn("recent events cache not invalidated", applogger.Error(err))
	}
	return nil
}

func (s *CachedEventStore) Recent(ctx context.Context, limit int) ([]models.AirborneEvent, error) {
	if limit > recentWindow {
		return s.EventStore.Recent(ctx, limit)
	}

	var events []models.AirborneEvent
	err := s.cache.Get(ctx, recentKey, &events)
	if err == nil {
		return head(events, limit), nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.l.Warn("recent events cache read failed", applogger.Error(err))
	}

	events, err = s.EventStore.Recent(ctx, recentWindow)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, recentKey, events, s.ttl); err != nil {
		s.l.Warn("recent events cache write failed", applogger.Error(err))
	}
	return head(events, limit), nil
}

func head(events []models.AirborneEvent, n int) []models.AirborneEvent {
	if len(events) > n {
		return events[:n]
	}
	return events
}

var _ domrepo.EventStore = (*CachedEventStore)(nil)

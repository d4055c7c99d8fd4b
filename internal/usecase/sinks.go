package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"AriaPull/internal/domain/models"
	"AriaPull/internal/domain/repository"
	"AriaPull/pkg/cache"
	applogger "AriaPull/pkg/logger"
	"AriaPull/pkg/util"
)

type namedSink struct {
	name string
	sink repository.EventSink
}

// FanoutSink forwards every event to all of its sinks. A failing or
// panicking sink does not keep the event from the others.
type FanoutSink struct {
	sinks []namedSink
}

func NewFanoutSink() *FanoutSink { return &FanoutSink{} }

// Add appends a sink. Nil sinks are ignored.
func (f *FanoutSink) Add(name string, s repository.EventSink) *FanoutSink {
	if s != nil {
		f.sinks = append(f.sinks, namedSink{name: name, sink: s})
	}
	return f
}

// Names lists the configured sinks in order.
func (f *FanoutSink) Names() []string {
	out := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		out[i] = s.name
	}
	return out
}

func (f *FanoutSink) Accept(ctx context.Context, e models.AirborneEvent) error {
	var errs []error
	for _, s := range f.sinks {
		if err := util.Guard(func() error { return s.sink.Accept(ctx, e) }); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

// DedupSink drops events whose key was already forwarded within ttl, so a
// redelivered Kafka message does not alert twice. The claim is released
// again when forwarding fails. Cache errors let the event through.
type DedupSink struct {
	next    repository.EventSink
	cache   cache.Service
	ttl     time.Duration
	log     *applogger.Logger
	skipped atomic.Int64
}

func NewDedupSink(next repository.EventSink, c cache.Service, ttl time.Duration) (*DedupSink, error) {
	if next == nil || c == nil {
		return nil, fmt.Errorf("dedup sink: next sink and cache are required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("dedup sink: ttl must be positive, got %s", ttl)
	}
	return &DedupSink{next: next, cache: c, ttl: ttl, log: applogger.Nop()}, nil
}

func (d *DedupSink) SetLogger(l *applogger.Logger) {
	if l != nil {
		d.log = l
	}
}

// Skipped is the number of events dropped as duplicates.
func (d *DedupSink) Skipped() int64 { return d.skipped.Load() }

func (d *DedupSink) Accept(ctx context.Context, e models.AirborneEvent) error {
	key := cache.Key("dedup", e.Key())
	claimed, err := d.cache.TryLock(ctx, key, d.ttl)
	if err != nil {
		d.log.Warn("dedup cache unavailable, forwarding", applogger.String("key", key), applogger.Error(err))
		return d.next.Accept(ctx, e)
	}
	if !claimed {
		d.skipped.Add(1)
		d.log.Debug("duplicate event dropped", applogger.String("key", key), applogger.String("event_id", e.ID))
		return nil
	}

	if err := d.next.Accept(ctx, e); err != nil {
		if uerr := d.cache.Unlock(ctx, key); uerr != nil {
			d.log.Warn("dedup release failed", applogger.String("key", key), applogger.Error(uerr))
		}
		return err
	}
	return nil
}

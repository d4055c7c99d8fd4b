package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Publisher ships aggregated log batches, normally to a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush at least this often
	CountThreshold int           // flush early once this many distinct records are held
	Topic          string
	Publisher      Publisher
	PublishTimeout time.Duration
}

// AggregatedLogEntry is one distinct error record and how often it was seen
// inside the flush window.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector folds identical error records together and publishes them in
// batches, so a burst of the same bad track produces one record with a count.
type LogCollector struct {
	cfg    CollectionConfig
	stderr zerolog.Logger

	mu      sync.Mutex
	pending map[uint64]*AggregatedLogEntry

	kick chan struct{}
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}

	c := &LogCollector{
		cfg:     cfg,
		stderr:  zerolog.New(os.Stderr).With().Timestamp().Str("component", "log_collector").Logger(),
		pending: make(map[uint64]*AggregatedLogEntry),
		kick:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := recordKey(level, message, fields, caller)

	c.mu.Lock()
	e, ok := c.pending[key]
	if !ok {
		e = &AggregatedLogEntry{Level: level, Message: message, Fields: fields, Caller: caller, FirstSeen: now}
		c.pending[key] = e
	}
	e.Count++
	e.LastSeen = now
	full := len(c.pending) >= c.cfg.CountThreshold
	c.mu.Unlock()

	if full {
		select {
		case c.kick <- struct{}{}:
		default:
		}
	}
}

// Pending returns the number of distinct records waiting for the next flush.
func (c *LogCollector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close publishes what is pending and stops the flush loop. Safe to call
// more than once.
func (c *LogCollector) Close() {
	c.once.Do(func() { close(c.quit) })
	<-c.done
}

func (c *LogCollector) loop() {
	defer close(c.done)

	t := time.NewTicker(c.cfg.TimeInterval)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			c.flush()
		case <-c.kick:
			c.flush()
		case <-c.quit:
			c.flush()
			return
		}
	}
}

// take swaps out the pending set and returns it most frequent first.
func (c *LogCollector) take() []AggregatedLogEntry {
	c.mu.Lock()
	held := c.pending
	c.pending = make(map[uint64]*AggregatedLogEntry, len(held))
	c.mu.Unlock()

	batch := make([]AggregatedLogEntry, 0, len(held))
	for _, e := range held {
		batch = append(batch, *e)
	}
	sort.Slice(batch, func(i, j int) bool {
		if batch[i].Count != batch[j].Count {
			return batch[i].Count > batch[j].Count
		}
		return batch[i].FirstSeen.Before(batch[j].FirstSeen)
	})
	return batch
}

func (c *LogCollector) flush() {
	batch := c.take()
	if len(batch) == 0 || c.cfg.Publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.PublishTimeout)
	defer cancel()
	if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, batch); err != nil {
		c.stderr.Error().Err(err).Int("records", len(batch)).Str("topic", c.cfg.Topic).
			Msg("aggregated logs not published")
	}
}

// recordKey identifies a record by level, message, caller and its fields
// in key order.
func recordKey(level, message string, fields map[string]interface{}, caller string) uint64 {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%s", level, message, caller)
	for _, k := range keys {
		fmt.Fprintf(h, "\x00%s=%v", k, fields[k])
	}
	return h.Sum64()
}

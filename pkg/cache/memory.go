package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"
)

const defaultMemoryTTL = 7 * 24 * time.Hour

type memoryEntry struct {
	key      string
	raw      []byte
	expireAt time.Time
	lock     bool
}

func (e *memoryEntry) expired(now time.Time) bool { return now.After(e.expireAt) }

// MemoryCache implements Service in process with LRU eviction. It backs the
// dedup sink when Redis is disabled and serves as the cache in tests.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List // front is most recently used
	maxSize int

	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{MaxSize: 10000, CleanupInterval: 5 * time.Minute}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		items:   make(map[string]*list.Element),
		order:   list.New(),
		maxSize: cfg.MaxSize,
		ticker:  time.NewTicker(cfg.CleanupInterval),
		done:    make(chan struct{}),
	}
	go mc.sweep()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	raw, err := encode(value)
	if err != nil {
		return err
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.store(&memoryEntry{key: key, raw: raw}, expiration)
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	e := mc.lookup(key, time.Now())
	var raw []byte
	if e != nil {
		raw = e.raw
	}
	mc.mu.Unlock()

	if e == nil {
		return ErrCacheMiss
	}
	return decode(raw, dest)
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, k := range keys {
		if el, ok := mc.items[k]; ok {
			mc.remove(el)
		}
	}
	return nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.lookup(key, time.Now()) != nil {
		return false, nil
	}
	mc.store(&memoryEntry{key: key, lock: true}, ttl)
	return true, nil
}

// Unlock drops key if it still holds a claim. A plain value under the same
// key is left in place.
func (mc *MemoryCache) Unlock(_ context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if el, ok := mc.items[key]; ok && el.Value.(*memoryEntry).lock {
		mc.remove(el)
	}
	return nil
}

// Len returns the number of stored keys, expired or not.
func (mc *MemoryCache) Len() int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return len(mc.items)
}

// Close stops the sweeper.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() {
		mc.ticker.Stop()
		close(mc.done)
	})
	return nil
}

// lookup returns the live entry for key and marks it used. Must hold mu.
func (mc *MemoryCache) lookup(key string, now time.Time) *memoryEntry {
	el, ok := mc.items[key]
	if !ok {
		return nil
	}
	e := el.Value.(*memoryEntry)
	if e.expired(now) {
		mc.remove(el)
		return nil
	}
	mc.order.MoveToFront(el)
	return e
}

// store inserts or replaces e, evicting the least recently used entry when
// full. Must hold mu.
func (mc *MemoryCache) store(e *memoryEntry, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	e.expireAt = time.Now().Add(ttl)

	if el, ok := mc.items[e.key]; ok {
		el.Value = e
		mc.order.MoveToFront(el)
		return
	}
	if len(mc.items) >= mc.maxSize {
		if oldest := mc.order.Back(); oldest != nil {
			mc.remove(oldest)
		}
	}
	mc.items[e.key] = mc.order.PushFront(e)
}

func (mc *MemoryCache) remove(el *list.Element) {
	mc.order.Remove(el)
	delete(mc.items, el.Value.(*memoryEntry).key)
}

func (mc *MemoryCache) sweep() {
	for {
		select {
		case <-mc.ticker.C:
			now := time.Now()
			mc.mu.Lock()
			for el := mc.order.Back(); el != nil; {
				prev := el.Prev()
				if el.Value.(*memoryEntry).expired(now) {
					mc.remove(el)
				}
				el = prev
			}
			mc.mu.Unlock()
		case <-mc.done:
			return
		}
	}
}

func encode(value interface{}) ([]byte, error) {
	if s, ok := value.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(value)
}

func decode(raw []byte, dest interface{}) error {
	if s, ok := dest.(*string); ok {
		*s = string(raw)
		return nil
	}
	return json.Unmarshal(raw, dest)
}

var _ Service = (*MemoryCache)(nil)

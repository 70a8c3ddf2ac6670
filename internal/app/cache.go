package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Store is an in-memory key/value cache. Entries only record when they were
// written; the reader decides how old is too old by passing a TTL, so one
// Store serves every cache domain.
type Store struct {
	mu    sync.RWMutex
	items map[string]CachedEntry
	gen   uint64
	now   func() time.Time
	sf    singleflight.Group
}

// CachedEntry stores value and timestamp.
type CachedEntry struct {
	Value     any
	Timestamp time.Time
	gen       uint64
}

// CacheStats is a point-in-time view of the store.
type CacheStats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		items: make(map[string]CachedEntry),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value for key if it was written no more than ttl ago.
// An older entry is deleted and reported as a miss.
func (s *Store) Get(key string, ttl time.Duration) (any, bool) {
	s.mu.RLock()
	entry, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.now().Sub(entry.Timestamp) <= ttl {
		return entry.Value, true
	}

	s.mu.Lock()
	// a writer may have refreshed the key between the two locks
	if cur, ok := s.items[key]; ok && cur.gen == entry.gen {
		delete(s.items, key)
	}
	s.mu.Unlock()
	return nil, false
}

// Set inserts or updates key.
func (s *Store) Set(key string, value any) {
	now := s.now()
	s.mu.Lock()
	s.gen++
	s.items[key] = CachedEntry{Value: value, Timestamp: now, gen: s.gen}
	s.mu.Unlock()
}

// Invalidate removes key. Removing a missing key is a no-op.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = make(map[string]CachedEntry)
	s.mu.Unlock()
}

// Size returns current number of items.
func (s *Store) Size() int {
	s.mu.RLock()
	sz := len(s.items)
	s.mu.RUnlock()
	return sz
}

// Stats returns the entry count and the sorted keys.
func (s *Store) Stats() CacheStats {
	s.mu.RLock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return CacheStats{Size: len(keys), Keys: keys}
}

// Cleanup removes entries older than maxAge and returns how many went.
// Reads evict lazily anyway; this only bounds keys nobody asks for again.
func (s *Store) Cleanup(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, e := range s.items {
		if now.Sub(e.Timestamp) > maxAge {
			delete(s.items, k)
			removed++
		}
	}
	return removed
}

// Lookup is Get with a typed result. A value of another type is a miss.
func Lookup[T any](s *Store, key string, ttl time.Duration) (T, bool) {
	var zero T
	v, ok := s.Get(key, ttl)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// LoadFunc produces a value on a miss. cacheable=false hands the value to
// the caller without storing it.
type LoadFunc[T any] func(ctx context.Context) (value T, cacheable bool, err error)

// GetOrLoad is a read-through lookup. On a miss, concurrent callers for the
// same key share one call to load; its result is written only when load
// succeeds and reports it cacheable. cached reports whether the value came
// from the store.
func GetOrLoad[T any](ctx context.Context, s *Store, key string, ttl time.Duration, load LoadFunc[T]) (value T, cached bool, err error) {
	if v, ok := Lookup[T](s, key, ttl); ok {
		return v, true, nil
	}

	// the shared call outlives whichever request started it
	loadCtx := context.WithoutCancel(ctx)
	res, err, _ := s.sf.Do(key, func() (any, error) {
		v, cacheable, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if cacheable {
			s.Set(key, v)
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	v, ok := res.(T)
	if !ok {
		var zero T
		return zero, false, fmt.Errorf("cache key %q loaded %T", key, res)
	}
	return v, false, nil
}

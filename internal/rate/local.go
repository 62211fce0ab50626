package rate

import (
	"context"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
)

// DefaultShardCount is the shard count used by NewShardedStore when the
// requested count is not a power of two.
const DefaultShardCount = 32

// Window is one key's fixed-window state.
type Window struct {
	Count   int64
	ResetAt time.Time
}

// CounterStore holds the per-key windows of a [LocalCounter].
//
// Update must run fn atomically with respect to key: no other Update for the
// same key may interleave between fn's read and the store's write.
type CounterStore interface {
	Update(key string, fn func(current Window, found bool) (next Window, store bool))
	Sweep(now time.Time) int
	Len() int
}

// ShardedStore is the in-memory CounterStore. Keys are spread over shards by
// murmur3 so that unrelated keys rarely contend on the same mutex.
type ShardedStore struct {
	shards []*counterShard
	mask   uint64
}

type counterShard struct {
	mu      sync.Mutex
	windows map[string]Window
}

// NewShardedStore creates a store with shardCount shards. shardCount must be a
// power of two; other values fall back to DefaultShardCount.
func NewShardedStore(shardCount int) *ShardedStore {
	if shardCount <= 0 || shardCount&(shardCount-1) != 0 {
		shardCount = DefaultShardCount
	}
	s := &ShardedStore{
		shards: make([]*counterShard, shardCount),
		mask:   uint64(shardCount - 1),
	}
	for i := range s.shards {
		s.shards[i] = &counterShard{windows: make(map[string]Window)}
	}
	return s
}

func (s *ShardedStore) shard(key string) *counterShard {
	return s.shards[murmur3.Sum64([]byte(key))&s.mask]
}

// Update implements CounterStore.
func (s *ShardedStore) Update(key string, fn func(Window, bool) (Window, bool)) {
	sh := s.shard(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	current, found := sh.windows[key]
	next, store := fn(current, found)
	if store {
		sh.windows[key] = next
	}
}

// Sweep drops windows whose reset time has passed and returns how many were
// removed. An expired window would be replaced on its next observation anyway.
func (s *ShardedStore) Sweep(now time.Time) int {
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for k, w := range sh.windows {
			if !now.Before(w.ResetAt) {
				delete(sh.windows, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked keys.
func (s *ShardedStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.windows)
		sh.mu.Unlock()
	}
	return n
}

// LocalCounter is the process-local fixed-window limiter. It never fails.
type LocalCounter struct {
	store CounterStore
	now   func() time.Time
}

// LocalOption configures a LocalCounter.
type LocalOption func(*LocalCounter)

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) LocalOption {
	return func(c *LocalCounter) {
		if now != nil {
			c.now = now
		}
	}
}

// NewLocalCounter returns a counter over store. A nil store gets a fresh
// ShardedStore.
func NewLocalCounter(store CounterStore, opts ...LocalOption) *LocalCounter {
	if store == nil {
		store = NewShardedStore(DefaultShardCount)
	}
	c := &LocalCounter{store: store, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Allow implements Limiter. The error is always nil.
func (c *LocalCounter) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	return c.Take(key, limit, window), nil
}

// Take applies one observation of key against limit per window.
//
//   - no window, or now >= resetAt: start a new window with count 1 and allow
//   - count >= limit: deny, state untouched
//   - otherwise: increment and allow
func (c *LocalCounter) Take(key string, limit int, window time.Duration) Decision {
	limit = normalizeLimit(limit)
	if window <= 0 {
		window = time.Second
	}
	now := c.now()

	var d Decision
	c.store.Update(key, func(cur Window, found bool) (Window, bool) {
		if !found || !now.Before(cur.ResetAt) {
			next := Window{Count: 1, ResetAt: now.Add(window)}
			d = Decision{Allowed: true, Remaining: remaining(limit, 1), Limit: limit, ResetAt: next.ResetAt}
			return next, true
		}
		if cur.Count >= int64(limit) {
			d = Decision{Allowed: false, Remaining: 0, Limit: limit, ResetAt: cur.ResetAt}
			return cur, false
		}
		cur.Count++
		d = Decision{Allowed: true, Remaining: remaining(limit, cur.Count), Limit: limit, ResetAt: cur.ResetAt}
		return cur, true
	})
	return d
}

// Store exposes the underlying CounterStore.
func (c *LocalCounter) Store() CounterStore {
	return c.store
}

// StartJanitor sweeps expired windows every interval until ctx is done.
func (c *LocalCounter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.store.Sweep(c.now())
			}
		}
	}()
}

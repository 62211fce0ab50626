package rate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultCallTimeout   = 2 * time.Second
	defaultExpireTimeout = 2 * time.Second
)

// Backend is a shared counter store. Incr must be atomic at the store.
type Backend interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// DistributedOptions tunes a Distributed counter.
type DistributedOptions struct {
	// Prefix is prepended to every key.
	Prefix string
	// CallTimeout bounds each Incr.
	CallTimeout time.Duration
	// ExpireTimeout bounds the background Expire.
	ExpireTimeout time.Duration
	Logger        *slog.Logger
}

// Distributed is the cross-instance fixed-window limiter. It increments
// first and denies afterwards; denied increments are not rolled back.
type Distributed struct {
	backend       Backend
	prefix        string
	callTimeout   time.Duration
	expireTimeout time.Duration
	logger        *slog.Logger
	wg            sync.WaitGroup
}

// NewDistributed wraps backend.
func NewDistributed(backend Backend, opts DistributedOptions) *Distributed {
	d := &Distributed{
		backend:       backend,
		prefix:        opts.Prefix,
		callTimeout:   opts.CallTimeout,
		expireTimeout: opts.ExpireTimeout,
		logger:        opts.Logger,
	}
	if d.callTimeout <= 0 {
		d.callTimeout = defaultCallTimeout
	}
	if d.expireTimeout <= 0 {
		d.expireTimeout = defaultExpireTimeout
	}
	if d.logger == nil {
		d.logger = slog.New(slog.DiscardHandler)
	}
	return d
}

// Allow implements Limiter.
//
// The first increment of a window (value 1) schedules a background Expire.
// Its failure is logged at debug level and otherwise ignored, so a key may
// outlive its window if the store drops that call.
func (d *Distributed) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if d == nil || d.backend == nil {
		return Decision{}, fmt.Errorf("%w: no backend configured", ErrUpstreamUnavailable)
	}
	limit = normalizeLimit(limit)
	if window < time.Second {
		window = time.Second
	}
	fullKey := d.prefix + key

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	value, err := d.backend.Incr(callCtx, fullKey)
	cancel()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	now := time.Now()
	if value == 1 {
		d.expireAsync(fullKey, window)
	}

	return Decision{
		Allowed:   value <= int64(limit),
		Remaining: remaining(limit, value),
		Limit:     limit,
		// The store owns the real TTL; this is the upper bound as seen here.
		ResetAt: now.Add(window),
	}, nil
}

func (d *Distributed) expireAsync(key string, ttl time.Duration) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.expireTimeout)
		defer cancel()
		if err := d.backend.Expire(ctx, key, ttl); err != nil {
			d.logger.Debug("rate: expire failed", slog.String("key", key), slog.Any("error", err))
		}
	}()
}

// Drain blocks until every scheduled Expire has finished or ctx is done.
func (d *Distributed) Drain(ctx context.Context) error {
	if d == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

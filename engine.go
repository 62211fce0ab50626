package trustcore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/trustcore/internal/audit"
	"github.com/MrEthical07/trustcore/internal/limiters"
	"github.com/MrEthical07/trustcore/internal/rate"
	"github.com/MrEthical07/trustcore/token"
)

const defaultShutdownTimeout = 5 * time.Second

// Engine is the assembled trust core. Build one with [Builder].
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config Config
	codec  *token.Codec

	directory   Directory
	credentials CredentialStore
	jobs        JobStore
	notifier    Notifier
	verifier    TokenVerifier

	local       *rate.LocalCounter
	edge        *limiters.EdgeLimiter
	distributed *rate.Distributed
	resources   *limiters.ResourceLimiter
	stopJanitor context.CancelFunc

	audit   *internalaudit.Dispatcher
	metrics *Metrics
	logger  *slog.Logger
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Shutdown stops the janitor, then waits until ctx is done for pending
// counter expiries and the audit flush.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	if e.stopJanitor != nil {
		e.stopJanitor()
	}
	drainErr := e.distributed.Drain(ctx)
	return errors.Join(drainErr, e.audit.Shutdown(ctx))
}

// Close is Shutdown with a five second bound.
func (e *Engine) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	_ = e.Shutdown(ctx)
}

// AuditDropped returns how many audit events were discarded.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// DistributedEnabled reports whether a shared counter backend is configured.
func (e *Engine) DistributedEnabled() bool {
	return e != nil && e.distributed != nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

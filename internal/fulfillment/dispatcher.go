package fulfillment

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Job statuses understood by the dispatcher.
const (
	StatusPending = "pending"
	StatusFiled   = "filed"
)

const defaultTimeout = 5 * time.Second

// Outcome is the result class of one RunFulfill call.
type Outcome int

const (
	OutcomeDispatched Outcome = iota
	OutcomeNotFound
	OutcomeIneligible
	OutcomeNoDestination
	OutcomeLostRace
	OutcomeSendFailed
	OutcomeStoreFailed
	OutcomeDeferred
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDispatched:
		return "dispatched"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeIneligible:
		return "ineligible"
	case OutcomeNoDestination:
		return "no_destination"
	case OutcomeLostRace:
		return "lost_race"
	case OutcomeSendFailed:
		return "send_failed"
	case OutcomeStoreFailed:
		return "store_failed"
	case OutcomeDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}

// Snapshot is the part of a job the dispatcher decides on.
type Snapshot struct {
	ID                  string
	Status              string
	TargetAddress       string
	OrganizationAddress string
}

// Destination returns the first non-blank address in priority order.
func (s Snapshot) Destination() (string, bool) {
	for _, addr := range []string{s.TargetAddress, s.OrganizationAddress} {
		if a := strings.TrimSpace(addr); a != "" {
			return a, true
		}
	}
	return "", false
}

// Deps are the collaborators of RunFulfill.
type Deps struct {
	Load func(ctx context.Context, jobID string) (Snapshot, error)
	// Transition sets status to `to` only if it still equals `from`.
	Transition func(ctx context.Context, jobID, from, to string) (bool, error)
	// Admit, when set, blocks until one send may proceed. It runs before the
	// transition so a refusal leaves the job pending.
	Admit func(ctx context.Context) error
	// Send delivers the notification for the snapshot to destination.
	Send     func(ctx context.Context, job Snapshot, destination string) error
	NotFound error
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Result describes one RunFulfill call.
type Result struct {
	Outcome     Outcome
	Destination string
	Err         error
}

// RunFulfill performs the at-most-once dispatch for jobID.
func RunFulfill(ctx context.Context, jobID string, deps Deps) Result {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("job_id", jobID))
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	job, err := deps.Load(loadCtx, jobID)
	cancel()
	if err != nil {
		if deps.NotFound != nil && errors.Is(err, deps.NotFound) {
			logger.Debug("fulfillment: job not found")
			return Result{Outcome: OutcomeNotFound}
		}
		logger.Error("fulfillment: load failed", slog.Any("error", err))
		return Result{Outcome: OutcomeStoreFailed, Err: err}
	}

	if job.Status != StatusPending {
		logger.Debug("fulfillment: job not eligible", slog.String("status", job.Status))
		return Result{Outcome: OutcomeIneligible}
	}

	dest, ok := job.Destination()
	if !ok {
		logger.Warn("fulfillment: no destination address, leaving job pending")
		return Result{Outcome: OutcomeNoDestination}
	}

	if deps.Admit != nil {
		admitCtx, cancel := context.WithTimeout(ctx, timeout)
		err := deps.Admit(admitCtx)
		cancel()
		if err != nil {
			logger.Warn("fulfillment: delivery not admitted, leaving job pending", slog.Any("error", err))
			return Result{Outcome: OutcomeDeferred, Destination: dest, Err: err}
		}
	}

	txCtx, cancel := context.WithTimeout(ctx, timeout)
	changed, err := deps.Transition(txCtx, jobID, job.Status, StatusFiled)
	cancel()
	if err != nil {
		logger.Error("fulfillment: status update failed", slog.Any("error", err))
		return Result{Outcome: OutcomeStoreFailed, Destination: dest, Err: err}
	}
	if !changed {
		logger.Info("fulfillment: job already taken by another dispatcher")
		return Result{Outcome: OutcomeLostRace, Destination: dest}
	}

	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	err = deps.Send(sendCtx, job, dest)
	cancel()
	if err != nil {
		logger.Error("fulfillment: notification send failed; job stays filed", slog.Any("error", err))
		return Result{Outcome: OutcomeSendFailed, Destination: dest, Err: err}
	}

	logger.Info("fulfillment: notification dispatched")
	return Result{Outcome: OutcomeDispatched, Destination: dest}
}

package trustcore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/trustcore/internal/fulfillment"
)

// FulfillOutcome classifies one Fulfill call.
type FulfillOutcome = fulfillment.Outcome

const (
	OutcomeDispatched    = fulfillment.OutcomeDispatched
	OutcomeNotFound      = fulfillment.OutcomeNotFound
	OutcomeIneligible    = fulfillment.OutcomeIneligible
	OutcomeNoDestination = fulfillment.OutcomeNoDestination
	OutcomeLostRace      = fulfillment.OutcomeLostRace
	OutcomeSendFailed    = fulfillment.OutcomeSendFailed
	OutcomeStoreFailed   = fulfillment.OutcomeStoreFailed
	OutcomeDeferred      = fulfillment.OutcomeDeferred
)

// Fulfill dispatches the notification for a pending job at most once.
//
// The job is moved from pending to filed with a conditional update before
// anything is sent, so concurrent callers for the same job send once. Only
// store failures return an error (wrapping ErrUpstreamUnavailable). A lost
// race, a missing job, a job that is not pending and a failed send all
// return a nil error; the outcome tells them apart. A PacedNotifier is
// admitted before the update, so a notifier that cannot take another send
// yields OutcomeDeferred and the job stays pending for a later call.
func (e *Engine) Fulfill(ctx context.Context, jobID string) (FulfillOutcome, error) {
	if e == nil || e.jobs == nil || e.notifier == nil {
		return OutcomeStoreFailed, ErrEngineNotReady
	}
	start := time.Now()
	defer e.metricObserve(MetricFulfillLatency, start)

	var loaded Job
	deps := fulfillment.Deps{
		Load: func(ctx context.Context, id string) (fulfillment.Snapshot, error) {
			job, err := e.jobs.LoadJob(ctx, id)
			if err != nil {
				return fulfillment.Snapshot{}, err
			}
			loaded = job
			return fulfillment.Snapshot{
				ID:                  job.ID,
				Status:              string(job.Status),
				TargetAddress:       job.TargetAddress,
				OrganizationAddress: job.OrganizationAddress,
			}, nil
		},
		Transition: func(ctx context.Context, id, from, to string) (bool, error) {
			return e.jobs.TransitionJobStatus(ctx, id, JobStatus(from), JobStatus(to))
		},
		Send: func(ctx context.Context, _ fulfillment.Snapshot, destination string) error {
			return e.notifier.Send(ctx, e.composeNotification(loaded, destination))
		},
		NotFound: ErrJobNotFound,
		Timeout:  e.config.Fulfillment.Timeout,
		Logger:   e.logger,
	}
	if paced, ok := e.notifier.(PacedNotifier); ok {
		deps.Admit = paced.Admit
		deps.Send = func(ctx context.Context, _ fulfillment.Snapshot, destination string) error {
			return paced.SendAdmitted(ctx, e.composeNotification(loaded, destination))
		}
	}

	result := fulfillment.RunFulfill(ctx, jobID, deps)
	event := AuditEvent{JobID: jobID, Reason: result.Outcome.String()}

	switch result.Outcome {
	case OutcomeDispatched:
		e.metricInc(MetricFulfillmentDispatched)
		event.EventType = AuditFulfillmentFiled
		event.Success = true
		e.emitAudit(ctx, event, nil)
		return result.Outcome, nil

	case OutcomeNotFound, OutcomeIneligible:
		e.metricInc(MetricFulfillmentSkipped)
		event.EventType = AuditFulfillmentSkipped
		e.emitAudit(ctx, event, nil)
		return result.Outcome, nil

	case OutcomeNoDestination:
		e.metricInc(MetricFulfillmentNoDestination)
		event.EventType = AuditFulfillmentSkipped
		e.emitAudit(ctx, event, nil)
		return result.Outcome, nil

	case OutcomeDeferred:
		e.metricInc(MetricFulfillmentDeferred)
		event.EventType = AuditFulfillmentSkipped
		e.emitAudit(ctx, event, nil)
		return result.Outcome, nil

	case OutcomeLostRace:
		e.metricInc(MetricFulfillmentLostRace)
		e.logger.Debug("trustcore: fulfillment lost race", slog.String("job_id", jobID),
			slog.Any("error", ErrConflictAlreadyFulfilled))
		return result.Outcome, nil

	case OutcomeSendFailed:
		e.metricInc(MetricFulfillmentSendFailed)
		event.EventType = AuditNotificationFailed
		e.emitAudit(ctx, event, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, result.Err))
		return result.Outcome, nil

	default:
		e.metricInc(MetricFulfillmentStoreError)
		return result.Outcome, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, result.Err)
	}
}

// IdempotencyKey is the stable key handed to the notifier for jobID. It is
// a UUIDv5 under the configured namespace, so retries of the same job carry
// the same key.
func (e *Engine) IdempotencyKey(jobID string) string {
	ns := DefaultIdempotencyNamespace
	if e != nil && e.config.Fulfillment.IdempotencyNamespace != uuid.Nil {
		ns = e.config.Fulfillment.IdempotencyNamespace
	}
	return uuid.NewSHA1(ns, []byte(jobID+":filed")).String()
}

func (e *Engine) composeNotification(job Job, destination string) Notification {
	title := strings.TrimSpace(job.Title)
	if title == "" {
		title = "New complaint " + job.ID
	}

	var body strings.Builder
	body.WriteString(title)
	body.WriteString("\n\n")
	if d := strings.TrimSpace(job.Description); d != "" {
		body.WriteString(d)
		body.WriteString("\n\n")
	}
	if r := job.Reporter; r.Name != "" || r.Email != "" || r.Phone != "" {
		body.WriteString("Reported by:")
		for _, v := range []string{r.Name, r.Email, r.Phone} {
			if v = strings.TrimSpace(v); v != "" {
				body.WriteString("\n  ")
				body.WriteString(v)
			}
		}
		body.WriteString("\n")
	}
	body.WriteString("Reference: ")
	body.WriteString(job.ID)

	return Notification{
		JobID:          job.ID,
		To:             destination,
		ReplyTo:        strings.TrimSpace(job.Reporter.Email),
		Subject:        "Complaint filed: " + title,
		Body:           body.String(),
		IdempotencyKey: e.IdempotencyKey(job.ID),
	}
}

// Package notify holds trustcore.Notifier decorators: outbound pacing and
// a structured-log notifier for development.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/MrEthical07/trustcore"
)

// Paced forwards notifications to a wrapped Notifier no faster than a
// token bucket allows. It implements trustcore.PacedNotifier, so Fulfill
// takes the token before a job is marked filed.
type Paced struct {
	next    trustcore.Notifier
	limiter *rate.Limiter
}

// NewPaced allows perSecond sends on average with bursts of up to burst.
// perSecond <= 0 disables pacing.
func NewPaced(next trustcore.Notifier, perSecond float64, burst int) *Paced {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Paced{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Admit blocks until a token is available. It fails at once when ctx would
// end before the token arrives.
func (p *Paced) Admit(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notify: pacing: %w", err)
	}
	return nil
}

// SendAdmitted forwards n without taking a token.
func (p *Paced) SendAdmitted(ctx context.Context, n trustcore.Notification) error {
	return p.next.Send(ctx, n)
}

// Send implements trustcore.Notifier.
func (p *Paced) Send(ctx context.Context, n trustcore.Notification) error {
	if err := p.Admit(ctx); err != nil {
		return err
	}
	return p.SendAdmitted(ctx, n)
}

// Log is a Notifier that writes each notification to a logger instead of
// delivering it.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a Log notifier. A nil logger uses slog.Default.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Send implements trustcore.Notifier.
func (l *Log) Send(ctx context.Context, n trustcore.Notification) error {
	l.logger.InfoContext(ctx, "notification",
		slog.String("job_id", n.JobID),
		slog.String("to", n.To),
		slog.String("reply_to", n.ReplyTo),
		slog.String("subject", n.Subject),
		slog.String("idempotency_key", n.IdempotencyKey),
		slog.Int("body_bytes", len(n.Body)),
	)
	return nil
}

// Package poller drives repeated status probes until a terminal answer, a
// probe budget, or cancellation ends the run.
package poller

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"taskdesk/obs"
)

type Config struct {
	// Name labels metrics and spans.
	Name        string
	Interval    time.Duration
	MaxAttempts int
	Clock       Clock
}

// TaskConfig polls AI tasks every 5s, 60 times.
func TaskConfig() Config {
	return Config{Name: "task", Interval: 5 * time.Second, MaxAttempts: 60}
}

// PaymentConfig polls payments every 5s, 120 times.
func PaymentConfig() Config {
	return Config{Name: "payment", Interval: 5 * time.Second, MaxAttempts: 120}
}

type Status int

const (
	StatusTerminal Status = iota
	StatusTimedOut
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusTerminal:
		return "terminal"
	case StatusTimedOut:
		return "timeout"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type Outcome[T any] struct {
	Status   Status
	Value    T
	Attempts int
	// LastErr is the error of the last probe, nil if it succeeded.
	LastErr error
}

// Hooks are optional. OnDone always runs last, whatever ended the run.
type Hooks[T any] struct {
	OnProgress func(attempt, max int, value T)
	OnTerminal func(value T)
	OnTimeout  func(lastErr error)
	OnDone     func(out Outcome[T])
}

type Poller[T any] struct {
	cfg        Config
	fetch      func(ctx context.Context) (T, error)
	isTerminal func(T) bool
	hooks      Hooks[T]
}

func New[T any](cfg Config, fetch func(ctx context.Context) (T, error), isTerminal func(T) bool, hooks Hooks[T]) *Poller[T] {
	if cfg.Clock == nil {
		cfg.Clock = RealClock
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Name == "" {
		cfg.Name = "poll"
	}
	return &Poller[T]{cfg: cfg, fetch: fetch, isTerminal: isTerminal, hooks: hooks}
}

// Run waits one interval before every probe, so the first probe happens
// after one interval. Probes never overlap.
func (p *Poller[T]) Run(ctx context.Context) (out Outcome[T]) {
	start := p.cfg.Clock.Now()
	ctx, span := obs.Tracer("taskdesk/poller").Start(ctx, "poll."+p.cfg.Name)
	defer func() {
		span.SetAttributes(
			attribute.String("poll.outcome", out.Status.String()),
			attribute.Int("poll.attempts", out.Attempts),
		)
		if out.Status == StatusTimedOut {
			span.SetStatus(codes.Error, "poll timed out")
		}
		span.End()
		obs.RecordPollRun(p.cfg.Name, out.Status.String(), start)
		if p.hooks.OnDone != nil {
			p.hooks.OnDone(out)
		}
	}()

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			out.Status = StatusCancelled
			return out
		}
		select {
		case <-ctx.Done():
			out.Status = StatusCancelled
			return out
		case <-p.cfg.Clock.After(p.cfg.Interval):
		}

		v, err := p.fetch(ctx)
		out.Attempts = attempt
		out.LastErr = err
		if err != nil {
			obs.RecordPollProbe(p.cfg.Name, "error")
		} else {
			out.Value = v
			if p.isTerminal(v) {
				obs.RecordPollProbe(p.cfg.Name, "terminal")
				out.Status = StatusTerminal
				if p.hooks.OnTerminal != nil {
					p.hooks.OnTerminal(v)
				}
				return out
			}
			obs.RecordPollProbe(p.cfg.Name, "pending")
		}

		if attempt >= p.cfg.MaxAttempts {
			if ctx.Err() != nil {
				out.Status = StatusCancelled
				return out
			}
			out.Status = StatusTimedOut
			if p.hooks.OnTimeout != nil {
				p.hooks.OnTimeout(out.LastErr)
			}
			return out
		}
		if err == nil && p.hooks.OnProgress != nil {
			p.hooks.OnProgress(attempt, p.cfg.MaxAttempts, v)
		}
	}
}

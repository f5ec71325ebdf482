package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked once per interval. Ticks never overlap: the next wait
// starts only after the previous tick returns.
type TickFunc func(ctx context.Context, now time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	// Interval is the fixed cycle interval. Ignored when IntervalSource is set.
	Interval time.Duration
	// IntervalSource, when non-nil, is consulted before each wait, so a
	// reconfigured interval takes effect at the next cycle boundary.
	IntervalSource func() time.Duration
	StartupDelay   time.Duration
}

// Scheduler drives strictly sequential execution of scan cycles.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 && opts.IntervalSource == nil {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

func (s *Scheduler) interval() time.Duration {
	if s.opts.IntervalSource != nil {
		if d := s.opts.IntervalSource(); d > 0 {
			return d
		}
	}
	return s.opts.Interval
}

// Run blocks, invoking tick every interval until ctx is cancelled. The first
// tick fires immediately after the startup delay; a tick error is logged and
// the loop continues with the next interval.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	for {
		now := time.Now().UTC()
		s.logger.Debug().Time("cycle_start", now).Msg("executing scheduled tick")

		if err := tick(ctx, now); err != nil {
			s.logger.Error().Err(err).Time("cycle_start", now).Msg("tick execution failed")
		}

		delay := s.interval()
		timer := time.NewTimer(delay)
		s.logger.Debug().Dur("wait", delay).Msg("waiting for next cycle")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

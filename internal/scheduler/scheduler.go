package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Job is one unit of work run in every cycle.
type Job interface {
	Name() string
	Poll(ctx context.Context) error
}

// Cycle identifies a single polling round.
type Cycle struct {
	ID      string
	Started time.Time
}

// TickFunc is invoked once per cycle.
type TickFunc func(ctx context.Context, cycle Cycle) error

// Options tune scheduler behaviour.
type Options struct {
	// Interval is the pause between the end of one cycle and the start of the next.
	Interval     time.Duration
	StartupDelay time.Duration
}

// Scheduler drives polling cycles. Cycles never overlap: the next one is timed
// from the moment the previous one settled.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Logger(),
		now:    time.Now,
	}
}

// Run blocks, running a cycle immediately and then after every interval until
// ctx is cancelled. Tick errors are logged and never stop the loop.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cycle := Cycle{ID: uuid.NewString(), Started: s.now().UTC()}
		if err := s.safeTick(ctx, tick, cycle); err != nil {
			s.logger.Error().Err(err).Str("cycle_id", cycle.ID).Msg("cycle failed")
		}

		s.logger.Debug().Dur("interval", s.opts.Interval).Msg("waiting for next cycle")
		if err := sleep(ctx, s.opts.Interval); err != nil {
			return err
		}
	}
}

func (s *Scheduler) safeTick(ctx context.Context, tick TickFunc, cycle Cycle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panicked: %v", r)
		}
	}()
	return tick(ctx, cycle)
}

// Report summarises one fan-out.
type Report struct {
	Jobs   int
	Failed []string
	// Err is the first job error of the cycle, nil when every job succeeded.
	Err      error
	Duration time.Duration
}

// FanOut runs every job concurrently and waits for all of them to settle. A
// failing or panicking job is logged and does not cancel the others.
func (s *Scheduler) FanOut(ctx context.Context, cycle Cycle, jobs []Job) Report {
	start := s.now()
	logger := s.logger.With().Str("cycle_id", cycle.ID).Logger()

	var (
		mu     sync.Mutex
		failed []string
		g      errgroup.Group
	)
	for _, job := range jobs {
		g.Go(func() error {
			err := runJob(ctx, job)
			if err != nil {
				logger.Error().Err(err).Str("job", job.Name()).Msg("job failed")
				mu.Lock()
				failed = append(failed, job.Name())
				mu.Unlock()
				return fmt.Errorf("%s: %w", job.Name(), err)
			}
			return nil
		})
	}
	// The group has no shared context, so one error cancels nothing.
	err := g.Wait()

	report := Report{Jobs: len(jobs), Failed: failed, Err: err, Duration: s.now().Sub(start)}
	logger.Info().
		Int("jobs", report.Jobs).
		Int("failed", len(report.Failed)).
		Dur("duration", report.Duration).
		Msg("cycle complete")
	return report
}

func runJob(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job.Poll(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

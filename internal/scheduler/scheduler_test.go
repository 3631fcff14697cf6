package scheduler

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Name() string                   { return j.name }
func (j funcJob) Poll(ctx context.Context) error { return j.fn(ctx) }

func TestFanOutIsolatesFailures(t *testing.T) {
	s := New(Options{Interval: time.Second}, zerolog.Nop())

	var ran atomic.Int32
	jobs := []Job{
		funcJob{name: "ok", fn: func(context.Context) error { ran.Add(1); return nil }},
		funcJob{name: "err", fn: func(context.Context) error { ran.Add(1); return errors.New("api down") }},
		funcJob{name: "panic", fn: func(context.Context) error { ran.Add(1); panic("boom") }},
		funcJob{name: "slow", fn: func(context.Context) error {
			time.Sleep(20 * time.Millisecond)
			ran.Add(1)
			return nil
		}},
	}

	report := s.FanOut(context.Background(), Cycle{ID: "c1"}, jobs)
	if ran.Load() != 4 {
		t.Fatalf("all jobs should run, ran %d", ran.Load())
	}
	sort.Strings(report.Failed)
	if report.Jobs != 4 || len(report.Failed) != 2 || report.Failed[0] != "err" || report.Failed[1] != "panic" {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Err == nil {
		t.Fatal("report should carry the first job error")
	}
	if !strings.HasPrefix(report.Err.Error(), "err: ") && !strings.HasPrefix(report.Err.Error(), "panic: ") {
		t.Fatalf("job error should name the job, got %v", report.Err)
	}

	ok := s.FanOut(context.Background(), Cycle{ID: "c2"}, jobs[:1])
	if ok.Err != nil || len(ok.Failed) != 0 {
		t.Fatalf("clean cycle should report no error, got %+v", ok)
	}
}

func TestFanOutRunsConcurrently(t *testing.T) {
	s := New(Options{Interval: time.Second}, zerolog.Nop())

	var wg sync.WaitGroup
	wg.Add(3)
	release := make(chan struct{})
	job := func(context.Context) error {
		wg.Done()
		<-release
		return nil
	}
	jobs := []Job{funcJob{"a", job}, funcJob{"b", job}, funcJob{"c", job}}

	done := make(chan Report)
	go func() { done <- s.FanOut(context.Background(), Cycle{ID: "c"}, jobs) }()

	started := make(chan struct{})
	go func() { wg.Wait(); close(started) }()
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("jobs should start concurrently")
	}
	close(release)
	if r := <-done; len(r.Failed) != 0 {
		t.Fatalf("unexpected failures %v", r.Failed)
	}
}

func TestRunDoesNotOverlapCycles(t *testing.T) {
	s := New(Options{Interval: 5 * time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		active   atomic.Int32
		overlaps atomic.Int32
		cycles   atomic.Int32
		ids      sync.Map
	)
	err := s.Run(ctx, func(ctx context.Context, cycle Cycle) error {
		if active.Add(1) > 1 {
			overlaps.Add(1)
		}
		defer active.Add(-1)
		if _, dup := ids.LoadOrStore(cycle.ID, true); dup {
			t.Errorf("cycle id %s reused", cycle.ID)
		}
		time.Sleep(10 * time.Millisecond)
		if cycles.Add(1) == 3 {
			cancel()
		}
		return errors.New("tick errors are logged only")
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run should end with context cancellation, got %v", err)
	}
	if cycles.Load() != 3 {
		t.Fatalf("expected 3 cycles, got %d", cycles.Load())
	}
	if overlaps.Load() != 0 {
		t.Fatalf("cycles overlapped %d times", overlaps.Load())
	}
}

func TestRunSurvivesPanickingTick(t *testing.T) {
	s := New(Options{Interval: time.Millisecond}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	_ = s.Run(ctx, func(context.Context, Cycle) error {
		if calls.Add(1) == 2 {
			cancel()
			return nil
		}
		panic("unexpected")
	})
	if calls.Load() != 2 {
		t.Fatalf("scheduler should keep running after a panic, got %d calls", calls.Load())
	}
}

func TestRunStartupDelayHonoursCancel(t *testing.T) {
	s := New(Options{Interval: time.Second, StartupDelay: time.Hour}, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	called := false
	err := s.Run(ctx, func(context.Context, Cycle) error { called = true; return nil })
	if !errors.Is(err, context.DeadlineExceeded) || called {
		t.Fatalf("startup delay should block until cancellation, err=%v called=%v", err, called)
	}
}

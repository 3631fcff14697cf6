package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"nft-alerts/internal/config"
	"nft-alerts/internal/engine"
	"nft-alerts/internal/market"
	"nft-alerts/internal/scheduler"
	"nft-alerts/internal/storage"
	"nft-alerts/internal/stream"
)

// Service runs the enabled streams on the scheduler.
type Service struct {
	scheduler *scheduler.Scheduler
	jobs      []scheduler.Job
	locker    storage.AdvisoryLocker
	lockKey   int64
	logger    zerolog.Logger
}

// New constructs the polling service. locker may be nil.
func New(sched *scheduler.Scheduler, pollers []stream.Poller, locker storage.AdvisoryLocker, lockKey int64, logger zerolog.Logger) *Service {
	jobs := make([]scheduler.Job, 0, len(pollers))
	for _, p := range pollers {
		jobs = append(jobs, p)
	}
	return &Service{
		scheduler: sched,
		jobs:      jobs,
		locker:    locker,
		lockKey:   lockKey,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// BuildPollers creates a poller for every enabled stream.
func BuildPollers(cfg *config.Config, api stream.API, deps stream.Deps) []stream.Poller {
	gate := engine.NewGate(cfg.Alerting.PriceChangeOverride)
	value := func(s market.Stream) stream.ValueOptions {
		return stream.ValueOptions{
			Collection: cfg.Collections.AlertContract,
			Channel:    cfg.Streams.For(s).Channel,
			Gate:       gate,
			Cooldown:   cfg.Alerting.Cooldown,
		}
	}
	items := func(s market.Stream) stream.ItemOptions {
		return stream.ItemOptions{
			Contracts:  cfg.Collections.Tracked,
			Channel:    cfg.Streams.For(s).Channel,
			NotifyGaps: cfg.Alerting.NotifyGaps,
		}
	}

	var pollers []stream.Poller
	if cfg.Streams.Floor.Enabled && cfg.Collections.AlertContract != "" {
		pollers = append(pollers, stream.NewFloor(api, value(market.StreamFloor), deps))
	}
	if cfg.Streams.Bid.Enabled && cfg.Collections.AlertContract != "" {
		pollers = append(pollers, stream.NewBid(api, value(market.StreamBid), deps))
	}
	if cfg.Streams.Listings.Enabled && len(cfg.Collections.Tracked) > 0 {
		pollers = append(pollers, stream.NewListings(api, items(market.StreamListings), deps))
	}
	if cfg.Streams.Sales.Enabled && len(cfg.Collections.Tracked) > 0 {
		pollers = append(pollers, stream.NewSales(api, items(market.StreamSales), deps))
	}
	return pollers
}

// Run begins the polling loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	if len(s.jobs) == 0 {
		return fmt.Errorf("no streams enabled")
	}
	names := make([]string, 0, len(s.jobs))
	for _, j := range s.jobs {
		names = append(names, j.Name())
	}
	s.logger.Info().Strs("streams", names).Msg("starting stream polling")
	return s.scheduler.Run(ctx, s.ProcessCycle)
}

// ProcessCycle polls every stream once, unless another replica holds the lock.
func (s *Service) ProcessCycle(ctx context.Context, cycle scheduler.Cycle) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Str("cycle_id", cycle.ID).Msg("skip cycle because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	report := s.scheduler.FanOut(ctx, cycle, s.jobs)
	if len(report.Failed) == len(s.jobs) {
		return fmt.Errorf("all %d streams failed: %w", len(s.jobs), report.Err)
	}
	return nil
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// HistoryRecorder stores delivered alerts in the alert history table.
type HistoryRecorder struct {
	store storage.AlertStore
	chain string
}

// NewHistoryRecorder binds an alert store to a chain.
func NewHistoryRecorder(store storage.AlertStore, chain string) *HistoryRecorder {
	return &HistoryRecorder{store: store, chain: chain}
}

// RecordAlert implements stream.Recorder.
func (h *HistoryRecorder) RecordAlert(ctx context.Context, alert stream.SentAlert) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := h.store.InsertAlert(ctx, storage.AlertRecord{
		Chain:   h.chain,
		Stream:  alert.Stream.String(),
		EventID: alert.EventID,
		Price:   alert.Price,
		Channel: alert.Channel,
	})
	return err
}

var _ stream.Recorder = (*HistoryRecorder)(nil)

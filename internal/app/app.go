package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"nft-alerts/internal/alerting"
	"nft-alerts/internal/config"
	"nft-alerts/internal/reservoir"
	"nft-alerts/internal/scheduler"
	"nft-alerts/internal/service"
	"nft-alerts/internal/state"
	"nft-alerts/internal/storage"
	"nft-alerts/internal/stream"
	"nft-alerts/internal/version"
)

const notifierTimeout = 10 * time.Second

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newAPI() *reservoir.Client {
	cfg := a.Config.Reservoir
	return reservoir.New(reservoir.Options{
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Timeout:      cfg.RequestTimeout,
		UserAgent:    cfg.UserAgent,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, a.Logger)
}

func (a *App) newRenderer(api *reservoir.Client) *alerting.Renderer {
	cfg := a.Config.Reservoir
	return alerting.NewRenderer(alerting.Links{
		APIBaseURL:     api.BaseURL(),
		MarketplaceURL: cfg.MarketplaceURL,
		ExplorerURL:    cfg.ExplorerURL,
		IconURL:        cfg.IconURL,
	})
}

func (a *App) newNotifier() (alerting.Notifier, error) {
	var notifiers alerting.Multi
	if cfg := a.Config.Alerting.Discord; cfg.Enabled {
		notifiers = append(notifiers, alerting.NewDiscordNotifier(cfg.BotToken, cfg.APIBase, notifierTimeout, a.Logger))
	}
	if cfg := a.Config.Alerting.Telegram; cfg.Enabled {
		notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, notifierTimeout, a.Logger))
	}
	if len(notifiers) == 0 {
		return nil, errors.New("no alert channel enabled; enable discord or telegram")
	}
	if len(notifiers) == 1 {
		return notifiers[0], nil
	}
	return notifiers, nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// stateBackend is a state backend that can report readiness.
type stateBackend interface {
	state.Backend
	state.Pinger
}

// openState opens the backend selected by state.driver. The postgres driver
// shares the already opened store.
func (a *App) openState(db *storage.Store) (stateBackend, func(), error) {
	switch a.Config.State.Driver {
	case "memory":
		a.Logger.Warn().Msg("state.driver is memory; cursors are lost on restart")
		return state.NewMemoryBackend(), func() {}, nil
	case "redis":
		backend, err := state.NewRedisBackend(a.Config.State.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() { _ = backend.Close() }, nil
	case "postgres":
		if db == nil {
			return nil, nil, errors.New("state.driver postgres requires database.dsn")
		}
		return db, func() {}, nil
	}
	return nil, nil, fmt.Errorf("state.driver %q is not supported", a.Config.State.Driver)
}

// openStateStore opens the configured state backend wrapped in a typed store,
// waiting for it to accept connections.
func (a *App) openStateStore(ctx context.Context, db *storage.Store) (*state.Store, func(), error) {
	backend, closeBackend, err := a.openState(db)
	if err != nil {
		return nil, nil, err
	}
	if err := state.WaitReady(ctx, backend, a.Config.State.WaitAttempts, a.Config.State.WaitTimeout, a.Logger); err != nil {
		closeBackend()
		return nil, nil, err
	}
	return state.NewStore(backend, a.Config.Chain), closeBackend, nil
}

// Run executes the long-running alert bot.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, closeDB, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if db == nil {
		a.Logger.Warn().Msg("database.dsn not configured; alert history and replica locking disabled")
	}
	if closeDB != nil {
		defer closeDB()
	}

	states, closeState, err := a.openStateStore(ctx, db)
	if err != nil {
		return err
	}
	defer closeState()

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}

	api := a.newAPI()
	deps := stream.Deps{
		Store:    states,
		Notifier: notifier,
		Renderer: a.newRenderer(api),
		Logger:   a.Logger,
	}

	var locker storage.AdvisoryLocker
	if db != nil {
		deps.Recorder = service.NewHistoryRecorder(db, a.Config.Chain)
		locker = db
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	pollers := service.BuildPollers(a.Config, api, deps)
	svc := service.New(sched, pollers, locker, a.Config.Scheduler.AdvisoryLockKey, a.Logger)

	a.Logger.Info().
		Str("version", version.Version).
		Str("chain", a.Config.Chain).
		Str("state_driver", a.Config.State.Driver).
		Dur("interval", a.Config.Scheduler.Interval).
		Msg("starting alert bot")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("alert bot stopped")
	return nil
}

// ExportOptions hold parameters for exporting alert history.
type ExportOptions struct {
	Stream    string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Stream string
	Limit  int
}

// PruneOptions configure the prune command.
type PruneOptions struct {
	Before time.Time
}

var _ stream.API = (*reservoir.Client)(nil)

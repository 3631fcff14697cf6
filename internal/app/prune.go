package app

import (
	"context"
	"errors"
	"time"
)

// Prune deletes alert history older than opts.Before.
func (a *App) Prune(ctx context.Context, opts PruneOptions) error {
	if opts.Before.IsZero() {
		return errors.New("prune requires a cutoff time")
	}
	if opts.Before.After(time.Now()) {
		return errors.New("cutoff must not be in the future")
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; nothing to prune")
	}
	if closeStore != nil {
		defer closeStore()
	}

	deleted, err := store.DeleteAlertsBefore(ctx, opts.Before.UTC())
	if err != nil {
		return err
	}
	a.Logger.Info().Int64("deleted", deleted).Time("before", opts.Before.UTC()).Msg("alert history pruned")
	return nil
}

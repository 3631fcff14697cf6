package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"nft-alerts/internal/market"
	"nft-alerts/internal/state"
	"nft-alerts/internal/storage"
)

// Show prints recent alert history.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show alert history")
	}
	if closeStore != nil {
		defer closeStore()
	}

	var stream string
	if opts.Stream != "" {
		s, err := market.ParseStream(opts.Stream)
		if err != nil {
			return err
		}
		stream = s.String()
	}

	alerts, err := store.ListRecentAlerts(ctx, stream, opts.Limit)
	if err != nil {
		return err
	}
	return writeAlertTable(os.Stdout, alerts)
}

func writeAlertTable(out io.Writer, alerts []storage.AlertRecord) error {
	if len(alerts) == 0 {
		fmt.Fprintln(out, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tChain\tStream\tEvent\tPrice\tChannel")
	for _, alert := range alerts {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			alert.CreatedAt.UTC().Format(time.RFC3339),
			alert.Chain,
			alert.Stream,
			sanitizeInline(alert.EventID),
			alert.Price.String(),
			alert.Channel,
		)
	}
	return writer.Flush()
}

// Cursors prints the stored state of every stream. With the postgres driver
// the raw bot_state rows follow, expired ones included.
func (a *App) Cursors(ctx context.Context) error {
	states, db, closeStates, err := a.openInspectionState(ctx)
	if err != nil {
		return err
	}
	defer closeStates()

	if err := writeStateTable(ctx, os.Stdout, states); err != nil {
		return err
	}
	if a.Config.State.Driver != "postgres" {
		return nil
	}
	fmt.Fprintln(os.Stdout)
	return writeRawState(ctx, os.Stdout, db, state.KeyPrefix(states.Chain()), time.Now())
}

func writeStateTable(ctx context.Context, out io.Writer, states *state.Store) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Stream\tCursor\tCooldown\tLast value\t(chain %s)\n", states.Chain())
	for _, s := range market.Streams {
		snap, err := states.Snapshot(ctx, s)
		if err != nil {
			return err
		}
		cursor := "-"
		if snap.Cursor.Set {
			cursor = sanitizeInline(snap.Cursor.LastSeenID)
		}
		cooldown := "idle"
		if snap.CooldownActive {
			cooldown = "active"
		}
		value := "-"
		if snap.LastValue.Valid {
			value = snap.LastValue.Decimal.String()
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t\n", s, cursor, cooldown, value)
	}
	return writer.Flush()
}

type stateLister interface {
	ListState(ctx context.Context, prefix string) ([]storage.StateEntry, error)
}

var _ stateLister = (*storage.Store)(nil)

func writeRawState(ctx context.Context, out io.Writer, lister stateLister, prefix string, now time.Time) error {
	entries, err := lister.ListState(ctx, prefix)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "no state rows")
		return nil
	}

	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Key\tValue\tExpires (UTC)\t")
	for _, entry := range entries {
		expires := "never"
		if entry.ExpiresAt != nil {
			expires = entry.ExpiresAt.UTC().Format(time.RFC3339)
			if !entry.ExpiresAt.After(now) {
				expires += " (expired)"
			}
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t\n", entry.Key, sanitizeInline(entry.Value), expires)
	}
	return writer.Flush()
}

// Reset returns a stream to its first-run state.
func (a *App) Reset(ctx context.Context, name string) error {
	s, err := market.ParseStream(name)
	if err != nil {
		return err
	}
	states, _, closeStates, err := a.openInspectionState(ctx)
	if err != nil {
		return err
	}
	defer closeStates()

	if err := states.Reset(ctx, s); err != nil {
		return err
	}
	a.Logger.Info().Str("stream", s.String()).Msg("stream state reset")
	return nil
}

// openInspectionState opens the state store for one-shot commands.
// db is nil when no database is configured.
func (a *App) openInspectionState(ctx context.Context) (*state.Store, *storage.Store, func(), error) {
	if a.Config.State.Driver == "memory" {
		return nil, nil, nil, errors.New("state.driver memory keeps no state outside a running bot")
	}
	db, closeDB, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	states, closeState, err := a.openStateStore(ctx, db)
	if err != nil {
		if closeDB != nil {
			closeDB()
		}
		return nil, nil, nil, err
	}
	return states, db, func() {
		closeState()
		if closeDB != nil {
			closeDB()
		}
	}, nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}

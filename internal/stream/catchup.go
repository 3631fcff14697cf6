package stream

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"nft-alerts/internal/alerting"
	"nft-alerts/internal/engine"
	"nft-alerts/internal/market"
)

// CatchUp runs an item stream: every event newer than the cursor is alerted once,
// oldest first.
type CatchUp[E market.Event] struct {
	stream     market.Stream
	channel    string
	notifyGaps bool
	deps       Deps
	logger     zerolog.Logger

	fetch func(ctx context.Context) ([]E, error)
	// render enriches and renders one event. An error skips the event.
	render func(ctx context.Context, ev E) (alerting.Message, error)
	price  func(ev E) decimal.Decimal
}

// CatchUpOptions configure a CatchUp stream.
type CatchUpOptions[E market.Event] struct {
	Stream     market.Stream
	Channel    string
	NotifyGaps bool
	Fetch      func(ctx context.Context) ([]E, error)
	Render     func(ctx context.Context, ev E) (alerting.Message, error)
	Price      func(ev E) decimal.Decimal
}

// NewCatchUp builds an item stream.
func NewCatchUp[E market.Event](opts CatchUpOptions[E], deps Deps) *CatchUp[E] {
	return &CatchUp[E]{
		stream:     opts.Stream,
		channel:    opts.Channel,
		notifyGaps: opts.NotifyGaps,
		deps:       deps,
		logger:     deps.Logger.With().Str("component", "stream").Str("stream", opts.Stream.String()).Logger(),
		fetch:      opts.Fetch,
		render:     opts.Render,
		price:      opts.Price,
	}
}

// Name implements Poller.
func (c *CatchUp[E]) Name() string { return c.stream.String() }

// Poll fetches a snapshot and alerts every new event. A fetch or cursor read
// failure aborts the poll with the cursor untouched.
func (c *CatchUp[E]) Poll(ctx context.Context) error {
	snapshot, err := c.fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch %s snapshot: %w", c.stream, err)
	}

	cursor, err := c.deps.Store.Cursor(ctx, c.stream)
	if err != nil {
		return err
	}

	res := engine.Resolve(snapshot, cursor)
	switch res.Action {
	case engine.ActionNone:
		c.logger.Debug().Int("snapshot", len(snapshot)).Msg("no new events")
		return nil

	case engine.ActionInit:
		if err := c.deps.Store.SetCursor(ctx, c.stream, res.NewCursor); err != nil {
			return err
		}
		c.logger.Info().Str("cursor", res.NewCursor).Msg("stream initialised")
		c.notify(ctx, alerting.InitNotice(c.stream))
		return nil

	case engine.ActionGap:
		if err := c.deps.Store.ClearCursor(ctx, c.stream); err != nil {
			return err
		}
		c.logger.Warn().
			Str("cursor", cursor.LastSeenID).
			Int("missed_at_least", res.Missed).
			Msg("cursor not found in snapshot, resetting stream")
		if c.notifyGaps {
			c.notify(ctx, alerting.GapNotice(c.stream, res.Missed))
		}
		return nil
	}

	for _, ev := range res.Suppressed {
		c.logger.Info().Str("event_id", ev.EventID()).Str("group", ev.GroupKey()).Msg("skipping duplicate order from another marketplace")
	}

	sent := 0
	for _, ev := range res.Emit {
		msg, err := c.render(ctx, ev)
		if err != nil {
			c.logger.Error().Err(err).Str("event_id", ev.EventID()).Msg("skipping event, enrichment failed")
			continue
		}
		if err := c.deps.Notifier.Send(ctx, c.channel, msg); err != nil {
			c.logger.Error().Err(err).Str("event_id", ev.EventID()).Msg("send alert failed")
			continue
		}
		sent++
		c.deps.record(ctx, c.logger, SentAlert{
			Stream:  c.stream,
			EventID: ev.EventID(),
			Price:   c.price(ev),
			Channel: c.channel,
			SentAt:  c.deps.now().UTC(),
		})
	}

	if err := c.deps.Store.SetCursor(ctx, c.stream, res.NewCursor); err != nil {
		return err
	}
	c.logger.Info().
		Int("new", len(res.Emit)+len(res.Suppressed)).
		Int("sent", sent).
		Int("duplicates", len(res.Suppressed)).
		Str("cursor", res.NewCursor).
		Msg("stream advanced")
	return nil
}

func (c *CatchUp[E]) notify(ctx context.Context, msg alerting.Message) {
	if err := c.deps.Notifier.Send(ctx, c.channel, msg); err != nil {
		c.logger.Error().Err(err).Msg("send notice failed")
	}
}

var _ Poller = (*CatchUp[market.Sale])(nil)

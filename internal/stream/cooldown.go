package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"nft-alerts/internal/alerting"
	"nft-alerts/internal/engine"
	"nft-alerts/internal/market"
)

// Cooldown runs a value stream: the newest event alerts at most once per cooldown
// window unless the value swings past the gate's override threshold.
type Cooldown[E market.Event] struct {
	stream   market.Stream
	channel  string
	gate     engine.Gate
	ttl      time.Duration
	skipSame bool
	deps     Deps
	logger   zerolog.Logger

	fetch  func(ctx context.Context) ([]E, error)
	value  func(ev E) decimal.Decimal
	render func(ctx context.Context, ev E, d engine.Decision) (alerting.Message, error)
}

// CooldownOptions configure a Cooldown stream.
type CooldownOptions[E market.Event] struct {
	Stream   market.Stream
	Channel  string
	Gate     engine.Gate
	Cooldown time.Duration
	// SkipSameValue records, without alerting, a new event whose value equals the
	// last alerted one.
	SkipSameValue bool
	Fetch         func(ctx context.Context) ([]E, error)
	Value         func(ev E) decimal.Decimal
	Render        func(ctx context.Context, ev E, d engine.Decision) (alerting.Message, error)
}

// NewCooldown builds a value stream.
func NewCooldown[E market.Event](opts CooldownOptions[E], deps Deps) *Cooldown[E] {
	return &Cooldown[E]{
		stream:   opts.Stream,
		channel:  opts.Channel,
		gate:     opts.Gate,
		ttl:      opts.Cooldown,
		skipSame: opts.SkipSameValue,
		deps:     deps,
		logger:   deps.Logger.With().Str("component", "stream").Str("stream", opts.Stream.String()).Logger(),
		fetch:    opts.Fetch,
		value:    opts.Value,
		render:   opts.Render,
	}
}

// Name implements Poller.
func (c *Cooldown[E]) Name() string { return c.stream.String() }

// Poll evaluates the newest event. State is written only when the gate fires,
// and the alert is sent only after every write succeeded.
func (c *Cooldown[E]) Poll(ctx context.Context) error {
	events, err := c.fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch %s snapshot: %w", c.stream, err)
	}
	if len(events) == 0 {
		c.logger.Debug().Msg("no events")
		return nil
	}
	ev := events[0]
	value := c.value(ev)

	st, err := c.deps.Store.Snapshot(ctx, c.stream)
	if err != nil {
		return err
	}

	decision := c.gate.Evaluate(
		engine.Observation{EventID: ev.EventID(), Value: value},
		engine.GateState{LastSeenID: st.Cursor.LastSeenID, LastValue: st.LastValue, CooldownActive: st.CooldownActive},
	)

	switch decision.Verdict {
	case engine.VerdictUnchanged:
		return nil
	case engine.VerdictSuppressed:
		c.logger.Debug().Str("event_id", ev.EventID()).Str("value", value.String()).Msg("cooldown active, alert deferred")
		return nil
	}

	if c.skipSame && st.LastValue.Valid && st.LastValue.Decimal.Equal(value) {
		if err := c.deps.Store.SetCursor(ctx, c.stream, ev.EventID()); err != nil {
			return err
		}
		c.logger.Debug().Str("event_id", ev.EventID()).Msg("value unchanged, no alert")
		return nil
	}

	if err := c.persist(ctx, ev.EventID(), value); err != nil {
		return err
	}

	msg, err := c.render(ctx, ev, decision)
	if err != nil {
		return fmt.Errorf("enrich %s alert %s: %w", c.stream, ev.EventID(), err)
	}
	if err := c.deps.Notifier.Send(ctx, c.channel, msg); err != nil {
		c.logger.Error().Err(err).Str("event_id", ev.EventID()).Msg("send alert failed")
		return nil
	}

	c.deps.record(ctx, c.logger, SentAlert{
		Stream:  c.stream,
		EventID: ev.EventID(),
		Price:   value,
		Channel: c.channel,
		SentAt:  c.deps.now().UTC(),
	})
	c.logger.Info().
		Str("event_id", ev.EventID()).
		Str("value", value.String()).
		Bool("override", decision.Override).
		Msg("alert sent")
	return nil
}

func (c *Cooldown[E]) persist(ctx context.Context, id string, value decimal.Decimal) error {
	if err := c.deps.Store.SetCursor(ctx, c.stream, id); err != nil {
		return err
	}
	if err := c.deps.Store.ArmCooldown(ctx, c.stream, c.ttl); err != nil {
		return err
	}
	return c.deps.Store.SetLastValue(ctx, c.stream, value)
}

var _ Poller = (*Cooldown[market.FloorAsk])(nil)

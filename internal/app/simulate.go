package app

import (
	"context"
	"errors"
	"fmt"

	"nft-alerts/internal/alerting"
	"nft-alerts/internal/market"
)

// SimulateAlert sends a test notice to the channel configured for a stream.
func (a *App) SimulateAlert(ctx context.Context, name string) error {
	s, err := market.ParseStream(name)
	if err != nil {
		return err
	}

	channel := a.Config.Streams.For(s).Channel
	if channel == "" && !a.Config.Alerting.Telegram.Enabled {
		return fmt.Errorf("no channel configured for stream %s", s)
	}

	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if err := notifier.Send(ctx, channel, alerting.SimulatedNotice(s)); err != nil {
		if errors.Is(err, alerting.ErrNoChannel) {
			return fmt.Errorf("stream %s: %w", s, err)
		}
		return err
	}

	a.Logger.Info().Str("stream", s.String()).Str("channel", channel).Msg("test notice sent")
	return nil
}

package state

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Pinger is implemented by backends that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WaitReady pings the backend until it answers, giving up after attempts tries.
func WaitReady(ctx context.Context, p Pinger, attempts int, delay time.Duration, logger zerolog.Logger) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, delay)
		lastErr = p.Ping(pingCtx)
		cancel()
		if lastErr == nil {
			if i > 1 {
				logger.Info().Int("attempt", i).Msg("state backend reachable")
			}
			return nil
		}
		logger.Warn().Err(lastErr).Int("attempt", i).Int("max_attempts", attempts).Msg("state backend not ready")
		if i == attempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("state backend not ready after %d attempts: %w", attempts, lastErr)
}

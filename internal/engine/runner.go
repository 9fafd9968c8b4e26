package engine

import (
	"context"
	"errors"
	"time"

	"sigtrade/internal/tradeerr"
)

// Run ticks every symbol immediately and then once per interval until ctx is
// done. Transient failures are logged and retried on the next interval; any
// other failure stops the loop and is returned. Cancellation returns nil.
func (e *Engine) Run(ctx context.Context, symbols []string, interval time.Duration) error {
	if interval <= 0 {
		return tradeerr.Configf("tick interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, symbol := range symbols {
			if ctx.Err() != nil {
				return nil
			}
			err := e.RunTick(ctx, symbol)
			switch {
			case err == nil:
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, tradeerr.ErrTransientIO):
				e.log.Warn().Err(err).Str("symbol", symbol).Msg("transient failure, retrying next interval")
			default:
				e.log.Error().Err(err).Str("symbol", symbol).Str("kind", string(tradeerr.KindOf(err))).Msg("stopping driver")
				return err
			}
		}

		select {
		case <-ctx.Done():
			e.log.Info().Msg("driver stopped")
			return nil
		case <-ticker.C:
		}
	}
}

package engine

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sigtrade/internal/broker"
	"sigtrade/internal/state"
)

type Mismatch struct {
	Symbol string
	Stored float64
	Held   float64
}

// Reconcile compares each stored active position with what the broker
// holds and reports symbols where the broker holds less. It never writes.
func Reconcile(ctx context.Context, b broker.Broker, store state.Store, symbols []string, log zerolog.Logger) ([]Mismatch, error) {
	holdings, err := b.Holdings(ctx)
	if err != nil {
		return nil, classify("reconcile holdings", err)
	}
	held := make(map[string]decimal.Decimal, len(holdings))
	for _, h := range holdings {
		sym := broker.UsdSymbol(h.AssetCode)
		held[sym] = held[sym].Add(h.Quantity)
	}

	var mismatches []Mismatch
	for _, symbol := range symbols {
		position, found, err := store.Load(ctx, symbol)
		if err != nil {
			return mismatches, classify("reconcile load", err)
		}
		if !found || !position.Active() {
			continue
		}
		qty := held[symbol]
		if qty.LessThan(decimal.NewFromFloat(position.Size)) {
			m := Mismatch{Symbol: symbol, Stored: position.Size, Held: qty.InexactFloat64()}
			mismatches = append(mismatches, m)
			log.Warn().Str("symbol", symbol).Float64("stored_size", m.Stored).Float64("held", m.Held).
				Msg("broker holds less than the stored active position")
			continue
		}
		log.Info().Str("symbol", symbol).Float64("stored_size", position.Size).Msg("stored position matches broker")
	}
	return mismatches, nil
}

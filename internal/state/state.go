package state

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

type Position struct {
	Symbol          string    `json:"symbol"`
	EntryPrice      float64   `json:"entry_price"`
	Size            float64   `json:"size"`
	StopLossPrice   float64   `json:"stop_loss_price"`
	TakeProfitPrice float64   `json:"take_profit_price"`
	Status          Status    `json:"status"`
	OpenedAt        time.Time `json:"opened_at"`
	ClosedAt        time.Time `json:"closed_at"`
	ExitPrice       float64   `json:"exit_price,omitempty"`
	OpenOrderID     string    `json:"open_order_id,omitempty"`
	CloseOrderID    string    `json:"close_order_id,omitempty"`
	CloseReason     string    `json:"close_reason,omitempty"`
}

func (p Position) Active() bool {
	return p.Status == StatusActive
}

func (p Position) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("position symbol is empty")
	}
	if p.Status != StatusActive && p.Status != StatusClosed {
		return fmt.Errorf("invalid position status: %q", p.Status)
	}
	if p.Active() && (p.Size <= 0 || p.EntryPrice <= 0) {
		return fmt.Errorf("active position needs positive size and entry price")
	}
	return nil
}

// Store persists the latest position record per symbol. Save must be durable
// and atomic at the record level before it returns. Load reports found=false
// only when nothing was ever saved for the symbol.
type Store interface {
	Save(ctx context.Context, position Position) error
	Load(ctx context.Context, symbol string) (Position, bool, error)
	Close() error
}

// Key is the normalized record key for symbol. Every store and the engine's
// per-symbol locks use it, so casings of one symbol share a record.
func Key(symbol string) string {
	return strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_").Replace(strings.ToUpper(symbol))
}

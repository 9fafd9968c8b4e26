package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS positions (
	symbol            TEXT PRIMARY KEY,
	entry_price       REAL NOT NULL,
	size              REAL NOT NULL,
	stop_loss_price   REAL NOT NULL,
	take_profit_price REAL NOT NULL,
	status            TEXT NOT NULL,
	opened_at         TEXT NOT NULL,
	closed_at         TEXT NOT NULL DEFAULT '',
	exit_price        REAL NOT NULL DEFAULT 0,
	open_order_id     TEXT NOT NULL DEFAULT '',
	close_order_id    TEXT NOT NULL DEFAULT '',
	close_reason      TEXT NOT NULL DEFAULT '',
	updated_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS position_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol      TEXT NOT NULL,
	status      TEXT NOT NULL,
	entry_price REAL NOT NULL,
	size        REAL NOT NULL,
	exit_price  REAL NOT NULL DEFAULT 0,
	reason      TEXT NOT NULL DEFAULT '',
	recorded_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_position_history_symbol ON position_history(symbol);
`

// SQLiteStore keeps the latest record per symbol in positions and appends
// every save to position_history in the same transaction.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA synchronous=FULL"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, p Position) error {
	if err := p.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO positions (symbol, entry_price, size, stop_loss_price, take_profit_price, status,
	opened_at, closed_at, exit_price, open_order_id, close_order_id, close_reason, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(symbol) DO UPDATE SET
	entry_price = excluded.entry_price,
	size = excluded.size,
	stop_loss_price = excluded.stop_loss_price,
	take_profit_price = excluded.take_profit_price,
	status = excluded.status,
	opened_at = excluded.opened_at,
	closed_at = excluded.closed_at,
	exit_price = excluded.exit_price,
	open_order_id = excluded.open_order_id,
	close_order_id = excluded.close_order_id,
	close_reason = excluded.close_reason,
	updated_at = excluded.updated_at`,
		Key(p.Symbol), p.EntryPrice, p.Size, p.StopLossPrice, p.TakeProfitPrice, string(p.Status),
		formatTime(p.OpenedAt), formatTime(p.ClosedAt), p.ExitPrice, p.OpenOrderID, p.CloseOrderID, p.CloseReason, now)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO position_history (symbol, status, entry_price, size, exit_price, reason, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		Key(p.Symbol), string(p.Status), p.EntryPrice, p.Size, p.ExitPrice, p.CloseReason, now)
	if err != nil {
		return fmt.Errorf("append position history: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Load(ctx context.Context, symbol string) (Position, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT entry_price, size, stop_loss_price, take_profit_price, status,
	opened_at, closed_at, exit_price, open_order_id, close_order_id, close_reason
FROM positions WHERE symbol = ?`, Key(symbol))

	p := Position{Symbol: symbol}
	var status, openedAt, closedAt string
	err := row.Scan(&p.EntryPrice, &p.Size, &p.StopLossPrice, &p.TakeProfitPrice, &status,
		&openedAt, &closedAt, &p.ExitPrice, &p.OpenOrderID, &p.CloseOrderID, &p.CloseReason)
	if errors.Is(err, sql.ErrNoRows) {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, fmt.Errorf("load position for %s: %w", symbol, err)
	}
	p.Status = Status(status)
	if p.OpenedAt, err = parseTime(openedAt); err != nil {
		return Position{}, false, err
	}
	if p.ClosedAt, err = parseTime(closedAt); err != nil {
		return Position{}, false, err
	}
	return p, true, nil
}

// HistoryCount returns how many records were saved for symbol.
func (s *SQLiteStore) HistoryCount(ctx context.Context, symbol string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM position_history WHERE symbol = ?`, Key(symbol)).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", v, err)
	}
	return t, nil
}

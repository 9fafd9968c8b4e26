package engine

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sigtrade/internal/strategy"
)

// Decision is one NDJSON line per tick.
type Decision struct {
	RunID         string                     `json:"run_id"`
	Timestamp     time.Time                  `json:"timestamp"`
	Symbol        string                     `json:"symbol"`
	Price         float64                    `json:"price,omitempty"`
	Equity        float64                    `json:"equity,omitempty"`
	Bars          int                        `json:"bars,omitempty"`
	Signals       map[string]strategy.Action `json:"signals,omitempty"`
	Score         float64                    `json:"score"`
	Action        strategy.Action            `json:"action,omitempty"`
	ForcedReason  string                     `json:"forced_reason,omitempty"`
	Result        Result                     `json:"result"`
	RiskAmount    float64                    `json:"risk_amount,omitempty"`
	Size          float64                    `json:"size,omitempty"`
	OrderID       string                     `json:"order_id,omitempty"`
	ClientOrderID string                     `json:"client_order_id,omitempty"`
	Error         string                     `json:"error,omitempty"`
	ErrorKind     string                     `json:"error_kind,omitempty"`
}

type DecisionLogger struct {
	runID  string
	file   *os.File
	writer *bufio.Writer
	log    zerolog.Logger
	mu     sync.Mutex
}

func NewDecisionLogger(path string, runID string, log zerolog.Logger) (*DecisionLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &DecisionLogger{
		runID:  runID,
		file:   file,
		writer: bufio.NewWriter(file),
		log:    log,
	}, nil
}

func (d *DecisionLogger) RunID() string {
	if d == nil {
		return ""
	}
	return d.runID
}

// Append is a no-op on a nil logger.
func (d *DecisionLogger) Append(decision Decision) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	decision.RunID = d.runID
	payload, err := json.Marshal(decision)
	if err != nil {
		d.log.Error().Err(err).Msg("failed to marshal decision")
		return
	}
	if _, err := d.writer.Write(append(payload, '\n')); err != nil {
		d.log.Error().Err(err).Msg("failed to write decision")
		return
	}
	if err := d.writer.Flush(); err != nil {
		d.log.Error().Err(err).Msg("failed to flush decision log")
	}
}

func (d *DecisionLogger) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writer.Flush(); err != nil {
		_ = d.file.Close()
		return err
	}
	return d.file.Close()
}

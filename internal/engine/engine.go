package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"sigtrade/internal/broker"
	"sigtrade/internal/md"
	"sigtrade/internal/metrics"
	"sigtrade/internal/risk"
	"sigtrade/internal/state"
	"sigtrade/internal/strategy"
	"sigtrade/internal/tradeerr"
)

type Config struct {
	Timeframe   md.Timeframe
	Lookback    int
	TickTimeout time.Duration
}

type Deps struct {
	Provider   md.Provider
	Broker     broker.Broker
	Store      state.Store
	Indicators strategy.Engine
	Aggregator *strategy.Aggregator
	Monitor    risk.Monitor
	Sizer      risk.Sizer
	Decisions  *DecisionLogger
	Log        zerolog.Logger
}

// Engine is the per-tick orchestrator: risk monitor, indicators, aggregator,
// executor, in that order.
type Engine struct {
	cfg        Config
	provider   md.Provider
	broker     broker.Broker
	store      state.Store
	indicators strategy.Engine
	aggregator *strategy.Aggregator
	monitor    risk.Monitor
	executor   *Executor
	decisions  *DecisionLogger
	locks      *symbolLocks
	log        zerolog.Logger
	now        func() time.Time
}

func New(cfg Config, deps Deps) *Engine {
	return &Engine{
		cfg:        cfg,
		provider:   deps.Provider,
		broker:     deps.Broker,
		store:      deps.Store,
		indicators: deps.Indicators,
		aggregator: deps.Aggregator,
		monitor:    deps.Monitor,
		executor:   NewExecutor(deps.Broker, deps.Store, deps.Sizer, deps.Log),
		decisions:  deps.Decisions,
		locks:      newSymbolLocks(),
		log:        deps.Log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RunTick runs one full pass for symbol. Errors carry a tradeerr kind; a
// failed tick leaves the position store untouched unless an order was
// accepted.
func (e *Engine) RunTick(ctx context.Context, symbol string) error {
	unlock := e.locks.lock(symbol)
	defer unlock()

	if e.cfg.TickTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.TickTimeout)
		defer cancel()
	}

	decision := Decision{Timestamp: e.now(), Symbol: symbol}
	outcome, err := e.tick(ctx, symbol, &decision)

	decision.Result = outcome.Result
	decision.RiskAmount = outcome.RiskAmount
	decision.Size = outcome.Size
	decision.OrderID = outcome.OrderID
	decision.ClientOrderID = outcome.ClientOrderID
	log := e.log.With().Str("symbol", symbol).Str("signal", string(decision.Action)).Float64("score", decision.Score).Logger()
	if err != nil {
		kind := string(tradeerr.KindOf(err))
		decision.Result = ResultError
		decision.Error = err.Error()
		decision.ErrorKind = kind
		metrics.TickErrorsTotal.WithLabelValues(symbol, kind).Inc()
		log.Error().Err(err).Str("kind", kind).Msg("tick aborted")
	} else {
		log.Info().Str("result", string(outcome.Result)).Float64("price", decision.Price).Msg("tick complete")
	}
	e.decisions.Append(decision)
	metrics.TicksTotal.WithLabelValues(symbol, string(decision.Result)).Inc()
	switch outcome.Result {
	case ResultOpened:
		metrics.OrdersTotal.WithLabelValues(symbol, string(broker.SideBuy)).Inc()
		metrics.SetPositionActive(symbol, true)
	case ResultClosed:
		metrics.OrdersTotal.WithLabelValues(symbol, string(broker.SideSell)).Inc()
		metrics.SetPositionActive(symbol, false)
	}
	return err
}

func (e *Engine) tick(ctx context.Context, symbol string, decision *Decision) (Outcome, error) {
	current, found, err := e.store.Load(ctx, symbol)
	if err != nil {
		return Outcome{Result: ResultError}, tradeerr.Transient("load position", err)
	}
	active := found && current.Active()
	metrics.SetPositionActive(symbol, active)

	price, err := broker.BidPrice(ctx, e.broker, symbol)
	if err != nil {
		return Outcome{Result: ResultError}, classify("best bid", err)
	}
	decision.Price = price

	mkt := Market{Price: price}
	haveEquity := false
	equity := func() error {
		if haveEquity {
			return nil
		}
		v, err := broker.AccountValue(ctx, e.broker)
		if err != nil {
			return classify("account value", err)
		}
		mkt.Equity, decision.Equity, haveEquity = v, v, true
		return nil
	}

	if active {
		if err := equity(); err != nil {
			return Outcome{Result: ResultError}, err
		}
		if reason := e.monitor.Check(current, price, mkt.Equity); reason != risk.ReasonNone {
			e.log.Warn().Str("symbol", symbol).Str("reason", string(reason)).Float64("price", price).
				Float64("equity", mkt.Equity).Float64("stop_loss", current.StopLossPrice).
				Float64("take_profit", current.TakeProfitPrice).Msg("risk threshold tripped, closing position")
			decision.Action = strategy.Sell
			decision.ForcedReason = string(reason)
			return e.executor.ForceClose(ctx, symbol, current, found, price, reason)
		}
	}

	start := md.LookbackStart(e.now(), e.cfg.Timeframe, e.cfg.Lookback)
	bars, err := e.provider.FetchSeries(ctx, symbol, start, e.cfg.Timeframe, e.cfg.Lookback)
	if err != nil {
		return Outcome{Result: ResultError}, classify("fetch series", err)
	}
	decision.Bars = len(bars)

	signals := e.indicators.Evaluate(bars)
	agg := e.aggregator.Aggregate(signals)
	decision.Signals = signals
	decision.Score = agg.Score
	decision.Action = agg.Action
	metrics.AggregateScore.WithLabelValues(symbol).Set(agg.Score)
	e.log.Debug().Str("symbol", symbol).Interface("signals", signals).Float64("score", agg.Score).
		Str("signal", string(agg.Action)).Int("bars", len(bars)).Msg("signals aggregated")

	if agg.Action == strategy.Buy && !active {
		if err := equity(); err != nil {
			return Outcome{Result: ResultError}, err
		}
	}
	return e.executor.Execute(ctx, symbol, agg.Action, current, found, mkt)
}

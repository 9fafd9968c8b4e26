package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sigtrade/internal/broker"
	"sigtrade/internal/config"
	"sigtrade/internal/engine"
	"sigtrade/internal/md"
	"sigtrade/internal/metrics"
	"sigtrade/internal/risk"
	"sigtrade/internal/state"
	"sigtrade/internal/strategy"
	"sigtrade/internal/tradeerr"
	"sigtrade/internal/util"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}
	log := util.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Str("kind", string(tradeerr.KindOf(err))).Msg("bot stopped with error")
		if errors.Is(err, tradeerr.ErrConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	log.Info().Msg("bot shutdown complete")
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	runID := generateRunID()
	log = log.With().Str("run_id", runID).Logger()

	timeframe, err := md.ParseTimeframe(cfg.Timeframe)
	if err != nil {
		return tradeerr.Configf("%v", err)
	}
	aggregator, err := strategy.NewAggregator(cfg.Weights, cfg.BuyThreshold, cfg.SellThreshold)
	if err != nil {
		return err
	}
	ind := cfg.Indicators
	indicators := strategy.NewEngine(
		strategy.NewMACD(ind.MACDFast, ind.MACDSlow, ind.MACDSignal),
		strategy.NewMVCD(ind.MVCDFast, ind.MVCDSlow, ind.MVCDSignal),
		strategy.NewVWAP(ind.VWAPWindow),
		strategy.NewTEMA(ind.TEMAWindow),
	)
	if err := aggregator.Covers(indicators.Names()); err != nil {
		return err
	}

	provider := newProvider(cfg, log)
	brk, err := newBroker(cfg, provider, log)
	if err != nil {
		return err
	}
	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close position store")
		}
	}()

	decisions, err := engine.NewDecisionLogger(cfg.DecisionsPath, runID, log)
	if err != nil {
		return tradeerr.Configf("decision log %s: %v", cfg.DecisionsPath, err)
	}
	defer func() {
		if err := decisions.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close decision logger")
		}
	}()

	if cfg.MetricsAddr != "" {
		srv := metrics.Serve(cfg.MetricsAddr)
		defer srv.Close()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
	}

	eng := engine.New(engine.Config{
		Timeframe:   timeframe,
		Lookback:    cfg.Lookback,
		TickTimeout: cfg.TickTimeout,
	}, engine.Deps{
		Provider:   provider,
		Broker:     brk,
		Store:      store,
		Indicators: indicators,
		Aggregator: aggregator,
		Monitor:    risk.Monitor{EquityFloor: cfg.Risk.EquityFloor},
		Sizer: risk.Sizer{
			RiskFraction:  cfg.Risk.RiskFraction,
			Confidence:    cfg.Risk.Confidence,
			StopLossPct:   cfg.Risk.StopLossPct,
			TakeProfitPct: cfg.Risk.TakeProfitPct,
		},
		Decisions: decisions,
		Log:       log,
	})

	reconcileCtx, cancel := context.WithTimeout(ctx, cfg.TickTimeout)
	if _, err := engine.Reconcile(reconcileCtx, brk, store, cfg.Symbols, log); err != nil {
		log.Warn().Err(err).Msg("startup reconciliation failed")
	}
	cancel()

	log.Info().Str("config", cfg.String()).Msg("starting bot")
	if cfg.Once {
		for _, symbol := range cfg.Symbols {
			if err := eng.RunTick(ctx, symbol); err != nil {
				return err
			}
		}
		return nil
	}
	return eng.Run(ctx, cfg.Symbols, cfg.Interval)
}

func newProvider(cfg config.Config, log zerolog.Logger) md.Provider {
	mdLog := log.With().Str("component", "md").Logger()
	if cfg.MarketData.Kind == config.MarketDataAlpaca {
		return md.NewAlpacaProvider(cfg.Broker.AlpacaKey, cfg.Broker.AlpacaSecret, cfg.RequestTimeout, mdLog)
	}
	return md.NewBinanceProvider(cfg.MarketData.BinanceBaseURL, cfg.RequestTimeout, mdLog)
}

func newBroker(cfg config.Config, provider md.Provider, log zerolog.Logger) (broker.Broker, error) {
	brokerLog := log.With().Str("component", "broker").Str("broker", cfg.Broker.Kind).Logger()
	switch cfg.Broker.Kind {
	case config.BrokerAlpaca:
		return broker.NewAlpaca(cfg.Broker.AlpacaKey, cfg.Broker.AlpacaSecret, cfg.Broker.AlpacaBaseURL, cfg.RequestTimeout, brokerLog), nil
	case config.BrokerRobinhood:
		return broker.NewRobinhood(cfg.Broker.RobinhoodBaseURL, cfg.Broker.RobinhoodAPIKey, cfg.Broker.RobinhoodPrivateKey, cfg.RequestTimeout, brokerLog)
	default:
		minute, _ := md.ParseTimeframe("1m")
		price := func(ctx context.Context, symbol string) (float64, error) {
			return md.LastClose(ctx, provider, symbol, minute)
		}
		brokerLog.Info().Float64("cash", cfg.Broker.PaperCash).Msg("paper trading")
		return broker.NewPaper(cfg.Broker.PaperCash, price), nil
	}
}

func newStore(ctx context.Context, cfg config.Config) (state.Store, error) {
	switch cfg.Store.Kind {
	case config.StoreSQLite:
		return state.NewSQLiteStore(cfg.Store.SQLitePath)
	case config.StoreRedis:
		return state.NewRedisStore(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB, cfg.Store.RedisPrefix)
	default:
		return state.NewFileStore(cfg.Store.Dir)
	}
}

func generateRunID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	return timestamp + "-" + uuid.NewString()[:8]
}

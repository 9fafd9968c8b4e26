package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"sigtrade/internal/md"
	"sigtrade/internal/strategy"
	"sigtrade/internal/tradeerr"
)

const (
	BrokerPaper     = "paper"
	BrokerAlpaca    = "alpaca"
	BrokerRobinhood = "robinhood"

	MarketDataAlpaca  = "alpaca"
	MarketDataBinance = "binance"

	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

type Config struct {
	Symbols        []string           `yaml:"symbols" default:"[\"BTC-USD\"]" validate:"min=1,dive,required"`
	Interval       time.Duration      `yaml:"interval" default:"60s" validate:"gt=0"`
	TickTimeout    time.Duration      `yaml:"tick_timeout" default:"30s" validate:"gt=0"`
	RequestTimeout time.Duration      `yaml:"request_timeout" default:"10s" validate:"gt=0"`
	Timeframe      string             `yaml:"timeframe" default:"1d" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	Lookback       int                `yaml:"lookback" default:"365" validate:"gt=1"`
	Indicators     IndicatorConfig    `yaml:"indicators"`
	Weights        map[string]float64 `yaml:"weights"`
	BuyThreshold   float64            `yaml:"buy_threshold" default:"0.5"`
	SellThreshold  float64            `yaml:"sell_threshold" default:"-0.5"`
	Risk           RiskConfig         `yaml:"risk"`
	Broker         BrokerConfig       `yaml:"broker"`
	MarketData     MarketDataConfig   `yaml:"market_data"`
	Store          StoreConfig        `yaml:"store"`
	DecisionsPath  string             `yaml:"decisions_path" default:"decisions.ndjson"`
	MetricsAddr    string             `yaml:"metrics_addr"`
	LogLevel       string             `yaml:"log_level" default:"info"`
	LogFormat      string             `yaml:"log_format" default:"json" validate:"oneof=json console"`
	Once           bool               `yaml:"once"`
}

type IndicatorConfig struct {
	MACDFast   int `yaml:"macd_fast" default:"20" validate:"gt=0"`
	MACDSlow   int `yaml:"macd_slow" default:"30" validate:"gt=0"`
	MACDSignal int `yaml:"macd_signal" default:"10" validate:"gt=0"`
	MVCDFast   int `yaml:"mvcd_fast" default:"20" validate:"gt=0"`
	MVCDSlow   int `yaml:"mvcd_slow" default:"30" validate:"gt=0"`
	MVCDSignal int `yaml:"mvcd_signal" default:"10" validate:"gt=0"`
	VWAPWindow int `yaml:"vwap_window" default:"20" validate:"gt=0"`
	TEMAWindow int `yaml:"tema_window" default:"20" validate:"gt=0"`
}

type RiskConfig struct {
	RiskFraction  float64 `yaml:"risk_fraction" default:"0.01" validate:"gt=0,lte=1"`
	Confidence    float64 `yaml:"confidence" default:"0.3" validate:"gte=0,lte=1"`
	StopLossPct   float64 `yaml:"stop_loss_pct" default:"0.02" validate:"gt=0,lt=1"`
	TakeProfitPct float64 `yaml:"take_profit_pct" default:"0.05" validate:"gt=0"`
	EquityFloor   float64 `yaml:"equity_floor" default:"12500" validate:"gte=0"`
}

type BrokerConfig struct {
	Kind                string  `yaml:"kind" default:"paper" validate:"oneof=paper alpaca robinhood"`
	PaperCash           float64 `yaml:"paper_cash" default:"100000" validate:"gt=0"`
	AlpacaKey           string  `yaml:"alpaca_key"`
	AlpacaSecret        string  `yaml:"alpaca_secret"`
	AlpacaBaseURL       string  `yaml:"alpaca_base_url" default:"https://paper-api.alpaca.markets"`
	RobinhoodBaseURL    string  `yaml:"robinhood_base_url" default:"https://trading.robinhood.com"`
	RobinhoodAPIKey     string  `yaml:"robinhood_api_key"`
	RobinhoodPrivateKey string  `yaml:"robinhood_private_key"`
}

type MarketDataConfig struct {
	Kind           string `yaml:"kind" default:"binance" validate:"oneof=alpaca binance"`
	BinanceBaseURL string `yaml:"binance_base_url" default:"https://api.binance.com"`
}

type StoreConfig struct {
	Kind          string `yaml:"kind" default:"file" validate:"oneof=file sqlite redis"`
	Dir           string `yaml:"dir" default:"state"`
	SQLitePath    string `yaml:"sqlite_path" default:"state/positions.db"`
	RedisAddr     string `yaml:"redis_addr" default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" validate:"gte=0"`
	RedisPrefix   string `yaml:"redis_prefix" default:"sigtrade"`
}

func DefaultWeights() map[string]float64 {
	return map[string]float64{
		strategy.NameMACD: 0.25,
		strategy.NameMVCD: 0.25,
		strategy.NameVWAP: 0.25,
		strategy.NameTEMA: 0.25,
	}
}

// Load layers defaults, the YAML file named by --config, the environment
// (after .env is loaded) and finally the flags that were set explicitly.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("sigtrade", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("SIGTRADE_CONFIG"), "path to YAML config file")
	envFile := fs.String("env-file", ".env", "path to .env file")
	symbols := fs.String("symbols", "", "comma separated symbols, e.g. BTC-USD,ETH-USD")
	interval := fs.Duration("interval", 0, "time between ticks")
	timeframe := fs.String("timeframe", "", "bar timeframe: 1m 5m 15m 1h 4h 1d")
	lookback := fs.Int("lookback", 0, "number of bars to fetch")
	brokerKind := fs.String("broker", "", "broker: paper, alpaca or robinhood")
	marketData := fs.String("market-data", "", "market data: binance or alpaca")
	storeKind := fs.String("store", "", "position store: file, sqlite or redis")
	decisionsPath := fs.String("decisions-path", "", "path to decisions log")
	metricsAddr := fs.String("metrics-addr", "", "listen address for /metrics, empty disables")
	logLevel := fs.String("log-level", "", "log level")
	logFormat := fs.String("log-format", "", "log format: json or console")
	once := fs.Bool("once", false, "run a single tick per symbol and exit")
	if err := fs.Parse(args); err != nil {
		return Config{}, tradeerr.Configf("parse flags: %v", err)
	}

	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, tradeerr.Configf("apply defaults: %v", err)
	}
	if *configPath != "" {
		if err := loadFile(*configPath, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := loadDotEnvIfPresent(*envFile); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "symbols":
			cfg.Symbols = splitList(*symbols)
		case "interval":
			cfg.Interval = *interval
		case "timeframe":
			cfg.Timeframe = *timeframe
		case "lookback":
			cfg.Lookback = *lookback
		case "broker":
			cfg.Broker.Kind = *brokerKind
		case "market-data":
			cfg.MarketData.Kind = *marketData
		case "store":
			cfg.Store.Kind = *storeKind
		case "decisions-path":
			cfg.DecisionsPath = *decisionsPath
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "once":
			cfg.Once = *once
		}
	})

	cfg.Symbols = normalizeSymbols(cfg.Symbols)
	if len(cfg.Weights) == 0 {
		cfg.Weights = DefaultWeights()
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return tradeerr.Configf("read config %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return tradeerr.Configf("parse config %s: %v", path, err)
	}
	return nil
}

var validate = validator.New()

// Validate runs the struct tag rules and the cross-field checks.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return tradeerr.Configf("%v", err)
	}
	if _, err := md.ParseTimeframe(cfg.Timeframe); err != nil {
		return tradeerr.Configf("%v", err)
	}
	if err := strategy.ValidateThresholds(cfg.BuyThreshold, cfg.SellThreshold); err != nil {
		return err
	}
	agg, err := strategy.NewAggregator(cfg.Weights, cfg.BuyThreshold, cfg.SellThreshold)
	if err != nil {
		return err
	}
	if err := agg.Covers(strategy.Names()); err != nil {
		return err
	}
	for i, sym := range cfg.Symbols {
		if sym != strings.ToUpper(strings.TrimSpace(sym)) {
			return tradeerr.Configf("symbols[%d] %q is not normalized", i, sym)
		}
	}

	ind := cfg.Indicators
	if ind.MACDFast >= ind.MACDSlow {
		return tradeerr.Configf("macd_fast (%d) must be less than macd_slow (%d)", ind.MACDFast, ind.MACDSlow)
	}
	if ind.MVCDFast >= ind.MVCDSlow {
		return tradeerr.Configf("mvcd_fast (%d) must be less than mvcd_slow (%d)", ind.MVCDFast, ind.MVCDSlow)
	}

	switch cfg.Broker.Kind {
	case BrokerAlpaca:
		if cfg.Broker.AlpacaKey == "" || cfg.Broker.AlpacaSecret == "" {
			return tradeerr.Configf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required for the alpaca broker")
		}
	case BrokerRobinhood:
		if cfg.Broker.RobinhoodAPIKey == "" || cfg.Broker.RobinhoodPrivateKey == "" {
			return tradeerr.Configf("ROBINHOOD_API_KEY and ROBINHOOD_PRIVATE_KEY are required for the robinhood broker")
		}
	}
	if cfg.MarketData.Kind == MarketDataAlpaca && (cfg.Broker.AlpacaKey == "" || cfg.Broker.AlpacaSecret == "") {
		return tradeerr.Configf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required for alpaca market data")
	}
	return nil
}

func splitList(value string) []string {
	return normalizeSymbols(strings.Split(value, ","))
}

// normalizeSymbols trims, upper-cases and drops duplicate or empty entries.
func normalizeSymbols(in []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(in))
	for _, part := range in {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}

func (c Config) String() string {
	return fmt.Sprintf("symbols=%v broker=%s market_data=%s store=%s timeframe=%s interval=%s",
		c.Symbols, c.Broker.Kind, c.MarketData.Kind, c.Store.Kind, c.Timeframe, c.Interval)
}

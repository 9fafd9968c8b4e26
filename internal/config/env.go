package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"sigtrade/internal/tradeerr"
)

// loadDotEnv sets variables from path without overriding ones already set.
func loadDotEnv(path string) error {
	return godotenv.Load(path)
}

// loadDotEnvIfPresent skips a missing file but reports one that exists and
// cannot be read or parsed.
func loadDotEnvIfPresent(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := loadDotEnv(path); err != nil {
		return tradeerr.Configf("load env file %s: %v", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("SIGTRADE_SYMBOLS"); v != "" {
		cfg.Symbols = splitList(v)
	}
	if v := os.Getenv("SIGTRADE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return tradeerr.Configf("SIGTRADE_INTERVAL: %v", err)
		}
		cfg.Interval = d
	}
	if v := os.Getenv("SIGTRADE_LOOKBACK"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return tradeerr.Configf("SIGTRADE_LOOKBACK: %v", err)
		}
		cfg.Lookback = n
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return tradeerr.Configf("REDIS_DB: %v", err)
		}
		cfg.Store.RedisDB = n
	}

	str("SIGTRADE_TIMEFRAME", &cfg.Timeframe)
	str("SIGTRADE_BROKER", &cfg.Broker.Kind)
	str("SIGTRADE_MARKET_DATA", &cfg.MarketData.Kind)
	str("SIGTRADE_STORE", &cfg.Store.Kind)
	str("SIGTRADE_DECISIONS_PATH", &cfg.DecisionsPath)
	str("SIGTRADE_METRICS_ADDR", &cfg.MetricsAddr)
	str("SIGTRADE_LOG_LEVEL", &cfg.LogLevel)
	str("SIGTRADE_LOG_FORMAT", &cfg.LogFormat)
	str("APCA_API_KEY_ID", &cfg.Broker.AlpacaKey)
	str("APCA_API_SECRET_KEY", &cfg.Broker.AlpacaSecret)
	str("APCA_API_BASE_URL", &cfg.Broker.AlpacaBaseURL)
	str("ROBINHOOD_API_KEY", &cfg.Broker.RobinhoodAPIKey)
	str("ROBINHOOD_PRIVATE_KEY", &cfg.Broker.RobinhoodPrivateKey)
	str("REDIS_ADDR", &cfg.Store.RedisAddr)
	str("REDIS_PASSWORD", &cfg.Store.RedisPassword)
	return nil
}

package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/APARENCE/binance-options-visualizer-25/internal/adapters/logger"
	"github.com/APARENCE/binance-options-visualizer-25/internal/domain"
)

//go:embed assets.yaml
var defaultAssets []byte

// Config holds all application configuration.
type Config struct {
	// Session
	Symbol       string  // instrument shown on startup
	DemoBalance  float64 // balance seeded when switching to (or starting in) demo mode
	HistoryLimit int     // number of recent trades shown in the shell

	// Feed
	ReconnectDelay  time.Duration // delay before the single reconnect attempt
	BackfillCandles int           // bars fetched/generated before streaming
	RandSeed        int64         // 0 seeds from the clock

	// Shell
	ListenAddr string

	// Storage
	DBPath string // ":memory:" keeps the trade log session-local

	// Logging
	LogLevel logger.LogLevel

	// Instruments
	Catalog *domain.Catalog
}

// LoadConfig loads configuration from environment variables (.env file) and
// the instrument catalog (embedded, or ASSETS_PATH override).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.Symbol = getEnv("SYMBOL", "EURUSD")
	if cfg.Symbol == "" {
		errs = append(errs, "SYMBOL must be set")
	}

	cfg.DemoBalance, err = getEnvAsFloatRequired("DEMO_BALANCE", 10000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DEMO_BALANCE: %v", err))
	} else if cfg.DemoBalance <= 0 {
		errs = append(errs, "DEMO_BALANCE must be positive")
	}

	cfg.HistoryLimit = getEnvAsInt("HISTORY_LIMIT", 20)
	if cfg.HistoryLimit <= 0 {
		errs = append(errs, "HISTORY_LIMIT must be positive")
	}

	reconnectDelaySeconds := getEnvAsInt("RECONNECT_DELAY_SECONDS", 3)
	if reconnectDelaySeconds <= 0 {
		errs = append(errs, "RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.ReconnectDelay = time.Duration(reconnectDelaySeconds) * time.Second

	cfg.BackfillCandles = getEnvAsInt("BACKFILL_CANDLES", 100)
	if cfg.BackfillCandles <= 0 {
		errs = append(errs, "BACKFILL_CANDLES must be positive")
	}

	cfg.RandSeed = getEnvAsInt64("RAND_SEED", 0)

	cfg.ListenAddr = getEnv("LISTEN_ADDR", ":8080")

	cfg.DBPath = getEnv("DB_PATH", ":memory:")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr)

	catalog, err := loadCatalog(getEnv("ASSETS_PATH", ""))
	if err != nil {
		errs = append(errs, fmt.Sprintf("instrument catalog: %v", err))
	} else {
		cfg.Catalog = catalog
		if _, ok := catalog.Find(cfg.Symbol); !ok {
			errs = append(errs, fmt.Sprintf("SYMBOL %q is not in the instrument catalog", cfg.Symbol))
		}
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// loadCatalog parses the instrument catalog, from path when given, otherwise
// from the embedded default.
func loadCatalog(path string) (*domain.Catalog, error) {
	data := defaultAssets
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", path, err)
		}
		data = b
	}

	var catalog domain.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if len(catalog.Classes) == 0 {
		return nil, fmt.Errorf("catalog defines no asset classes")
	}
	for class, info := range catalog.Classes {
		if len(info.Instruments) == 0 {
			return nil, fmt.Errorf("asset class %q has no instruments", class)
		}
		if info.PayoutPercent <= 0 || info.PayoutPercent >= 100 {
			return nil, fmt.Errorf("asset class %q payout must be between 0 and 100", class)
		}
	}
	return &catalog, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

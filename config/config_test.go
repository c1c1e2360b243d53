package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/APARENCE/binance-options-visualizer-25/internal/adapters/logger"
	"github.com/APARENCE/binance-options-visualizer-25/internal/domain"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "EURUSD", cfg.Symbol)
	assert.Equal(t, 10000.0, cfg.DemoBalance)
	assert.Equal(t, 20, cfg.HistoryLimit)
	assert.Equal(t, 3*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 100, cfg.BackfillCandles)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	require.NotNil(t, cfg.Catalog)
}

func TestLoadConfig_EmbeddedCatalog(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	forex := cfg.Catalog.Classes[domain.ClassForex]
	assert.Equal(t, 85.0, forex.PayoutPercent)
	assert.NotEmpty(t, forex.Instruments)

	crypto := cfg.Catalog.Classes[domain.ClassCrypto]
	assert.Equal(t, 80.0, crypto.PayoutPercent)
	assert.NotEmpty(t, crypto.Instruments)

	inst, ok := cfg.Catalog.Find("EURUSD")
	require.True(t, ok)
	assert.Equal(t, domain.ClassForex, inst.Class)
	assert.Greater(t, inst.BasePrice, 0.0, "simulated instruments need a walk seed")

	inst, ok = cfg.Catalog.Find("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, domain.ClassCrypto, inst.Class)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SYMBOL", "BTCUSDT")
	t.Setenv("DEMO_BALANCE", "2500")
	t.Setenv("HISTORY_LIMIT", "5")
	t.Setenv("RECONNECT_DELAY_SECONDS", "7")
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("RAND_SEED", "1234")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "BTCUSDT", cfg.Symbol)
	assert.Equal(t, 2500.0, cfg.DemoBalance)
	assert.Equal(t, 5, cfg.HistoryLimit)
	assert.Equal(t, 7*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
	assert.Equal(t, int64(1234), cfg.RandSeed)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"negative demo balance", "DEMO_BALANCE", "-100"},
		{"unparseable demo balance", "DEMO_BALANCE", "lots"},
		{"non-positive history limit", "HISTORY_LIMIT", "0"},
		{"symbol outside the catalog", "SYMBOL", "XAUUSD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalog_Rejections(t *testing.T) {
	_, err := loadCatalog("does/not/exist.yaml")
	assert.Error(t, err)
}

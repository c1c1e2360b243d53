package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/APARENCE/binance-options-visualizer-25/internal/domain"
	"github.com/APARENCE/binance-options-visualizer-25/internal/ports"
)

// maxCandleCache bounds the in-memory candle series kept for client snapshots.
const maxCandleCache = 500

// ManagerConfig holds the manager's collaborators.
type ManagerConfig struct {
	Logger   ports.Logger
	Chart    ports.ChartSurface
	Notifier ports.Notifier
	// Sources maps each asset class to the feed source that serves it.
	Sources map[domain.AssetClass]ports.FeedSource
}

// Manager owns the single active feed subscription and normalizes its
// output onto the chart surface. Switching instruments tears the previous
// source down and clears the chart before the new source emits; a
// generation check drops anything a stale source still produces, so two
// sources can never write into the same display surface concurrently.
type Manager struct {
	logger   ports.Logger
	chart    ports.ChartSurface
	notifier ports.Notifier
	sources  map[domain.AssetClass]ports.FeedSource

	mu        sync.Mutex
	gen       uint64
	stop      func()
	started   bool
	inst      domain.Instrument
	candles   []domain.Candle
	price     float64
	change    float64
	connected bool
}

// NewManager creates a feed manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Logger == nil || cfg.Chart == nil || cfg.Notifier == nil || len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("missing required dependencies for feed manager")
	}
	return &Manager{
		logger:   cfg.Logger,
		chart:    cfg.Chart,
		notifier: cfg.Notifier,
		sources:  cfg.Sources,
	}, nil
}

// Switch selects the instrument to observe. The active source (if any) is
// stopped and the chart cleared before the new source starts.
func (m *Manager) Switch(ctx context.Context, inst domain.Instrument) error {
	src, ok := m.sources[inst.Class]
	if !ok {
		return fmt.Errorf("no feed source for asset class %q", inst.Class)
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	prevStop := m.stop
	m.stop = nil
	m.inst = inst
	m.candles = nil
	m.price = 0
	m.change = 0
	m.connected = false
	m.mu.Unlock()

	// Tear down outside the lock; the old source's callbacks may be
	// blocked on it right now, and the generation bump already silences them.
	if prevStop != nil {
		prevStop()
	}
	m.chart.SetData(nil)

	m.logger.Info(ctx, "Switching feed", map[string]interface{}{
		"symbol": inst.Symbol,
		"class":  inst.Class,
	})

	stop, err := src.Stream(ctx, inst, &managedSink{m: m, gen: gen})
	if err != nil {
		return fmt.Errorf("failed to start feed for %s: %w", inst.Symbol, err)
	}

	m.mu.Lock()
	if gen != m.gen {
		// Another switch raced us; this stream lost.
		m.mu.Unlock()
		stop()
		return nil
	}
	m.stop = stop
	m.started = true
	m.mu.Unlock()
	return nil
}

// Close stops the active subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	m.gen++
	stop := m.stop
	m.stop = nil
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// CurrentPrice returns the last observed price, 0 before warm-up.
func (m *Manager) CurrentPrice() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.price
}

// Initialized reports whether a feed has ever been started.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Instrument returns the instrument currently observed.
func (m *Manager) Instrument() domain.Instrument {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inst
}

// Candles returns a copy of the cached candle series, oldest first.
func (m *Manager) Candles() []domain.Candle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Candle, len(m.candles))
	copy(out, m.candles)
	return out
}

// Connected reports the current transport state.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// managedSink forwards one source's output into the manager for as long as
// that source is the current generation.
type managedSink struct {
	m   *Manager
	gen uint64
}

func (s *managedSink) Backfill(candles []domain.Candle) {
	m := s.m
	m.mu.Lock()
	if s.gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.candles = append(m.candles[:0], candles...)
	if len(m.candles) > maxCandleCache {
		m.candles = m.candles[len(m.candles)-maxCandleCache:]
	}
	if len(candles) > 0 {
		m.price = candles[len(candles)-1].Close
		m.change = 0
	}
	inst := m.inst
	price := m.price
	m.mu.Unlock()

	m.chart.SetData(candles)
	m.chart.FitContent()
	if price > 0 {
		m.chart.ShowPrice(price, 0, inst.Class.PriceDecimals())
	}
}

func (s *managedSink) Update(c domain.Candle) {
	m := s.m
	m.mu.Lock()
	if s.gen != m.gen {
		m.mu.Unlock()
		return
	}
	if n := len(m.candles); n > 0 && m.candles[n-1].Time == c.Time {
		m.candles[n-1] = c
	} else {
		m.candles = append(m.candles, c)
		if len(m.candles) > maxCandleCache {
			m.candles = m.candles[len(m.candles)-maxCandleCache:]
		}
	}
	change := c.Close - m.price
	if m.price == 0 {
		change = 0
	}
	m.price = c.Close
	m.change = change
	inst := m.inst
	m.mu.Unlock()

	m.chart.UpdateCandle(c)
	m.chart.ShowPrice(c.Close, change, inst.Class.PriceDecimals())
}

func (s *managedSink) Status(connected bool) {
	m := s.m
	m.mu.Lock()
	if s.gen != m.gen {
		m.mu.Unlock()
		return
	}
	was := m.connected
	m.connected = connected
	inst := m.inst
	m.mu.Unlock()

	m.logger.Info(context.Background(), "Feed connection state changed", map[string]interface{}{
		"symbol":    inst.Symbol,
		"connected": connected,
	})
	if connected && !was {
		m.notifier.Success(fmt.Sprintf("Conectado ao stream da %s", inst.Symbol))
	} else if !connected && was {
		m.notifier.Failure("Conexão perdida. Tentando reconectar...")
	}
}

func (s *managedSink) FeedError(err error) {
	m := s.m
	m.mu.Lock()
	if s.gen != m.gen {
		m.mu.Unlock()
		return
	}
	inst := m.inst
	m.mu.Unlock()

	m.logger.Error(context.Background(), err, "Feed source error", map[string]interface{}{"symbol": inst.Symbol})
	if errors.Is(err, ports.ErrHistoryFetch) {
		m.notifier.Failure("Erro ao conectar com a API da Binance")
	} else {
		m.notifier.Failure("Erro na conexão de dados")
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/APARENCE/binance-options-visualizer-25/config"
	"github.com/APARENCE/binance-options-visualizer-25/internal/domain"
	"github.com/APARENCE/binance-options-visualizer-25/internal/ports"
)

// settlementJitter bounds the random perturbation applied to the live price
// at expiry: uniform in ±1% of the current price. Settlement deliberately
// does not look the historical price up; it perturbs whatever the feed
// shows when the timer fires. Centralized here so a real lookup could
// replace it.
const settlementJitter = 0.02

// FeedManager is the slice of the feed manager the lifecycle service needs.
type FeedManager interface {
	Switch(ctx context.Context, inst domain.Instrument) error
	CurrentPrice() float64
	Initialized() bool
	Instrument() domain.Instrument
	Candles() []domain.Candle
}

// TradingService owns the binary-option trade lifecycle and the session
// account: placement validation, the pessimistic stake debit, one
// resolution timer per trade, and mode switching.
type TradingService struct {
	cfg      *config.Config
	logger   ports.Logger
	feed     FeedManager
	repo     ports.TradeRepository
	chart    ports.ChartSurface
	notifier ports.Notifier
	state    ports.StatePublisher
	rng      ports.RandSource

	// mu protects the fields below and serializes every mutation.
	mu      sync.Mutex
	account domain.Account
	active  map[string]*domain.Trade
	timers  map[string]*time.Timer
	closed  bool
}

// NewTradingService creates the lifecycle service. The session starts in
// demo mode with the configured seed balance.
func NewTradingService(
	cfg *config.Config,
	logger ports.Logger,
	feed FeedManager,
	repo ports.TradeRepository,
	chart ports.ChartSurface,
	notifier ports.Notifier,
	state ports.StatePublisher,
	rng ports.RandSource,
) (*TradingService, error) {

	if cfg == nil || logger == nil || feed == nil || repo == nil || chart == nil || notifier == nil || state == nil || rng == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	if cfg.DemoBalance <= 0 {
		return nil, fmt.Errorf("configuration DemoBalance must be positive")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("configuration Catalog is required")
	}

	s := &TradingService{
		cfg:      cfg,
		logger:   logger,
		feed:     feed,
		repo:     repo,
		chart:    chart,
		notifier: notifier,
		state:    state,
		rng:      rng,
		active:   make(map[string]*domain.Trade),
		timers:   make(map[string]*time.Timer),
	}
	s.account.Reset(domain.ModeDemo, cfg.DemoBalance)
	return s, nil
}

// Start brings the default instrument's feed up.
func (s *TradingService) Start(ctx context.Context) error {
	inst, ok := s.cfg.Catalog.Find(s.cfg.Symbol)
	if !ok {
		return fmt.Errorf("startup symbol %q: %w", s.cfg.Symbol, ports.ErrUnknownSymbol)
	}
	if err := s.feed.Switch(ctx, inst); err != nil {
		return fmt.Errorf("failed to start feed: %w", err)
	}
	s.publishState(ctx)
	return nil
}

// Place opens a binary option. Preconditions are checked in order and each
// failure rejects with a distinct notice and no state mutation.
func (s *TradingService) Place(ctx context.Context, direction domain.Direction, stake float64, expiry time.Duration) (*domain.Trade, error) {
	op := "Place"

	s.mu.Lock()
	balance := s.account.Balance
	s.mu.Unlock()

	if stake > balance {
		s.notifier.Failure("Saldo insuficiente")
		return nil, ports.ErrInsufficientBalance
	}
	if stake <= 0 {
		s.notifier.Failure("Valor do trade deve ser maior que zero")
		return nil, ports.ErrInvalidAmount
	}
	if !s.feed.Initialized() {
		s.notifier.Failure("Gráfico não carregado")
		return nil, ports.ErrFeedNotReady
	}
	entryPrice := s.feed.CurrentPrice()
	if entryPrice <= 0 {
		s.notifier.Failure("Aguarde o preço ser carregado")
		return nil, ports.ErrFeedNotReady
	}
	if !domain.IsValidExpiry(expiry) {
		s.notifier.Failure("Tempo de expiração inválido")
		return nil, ports.ErrInvalidExpiry
	}

	inst := s.feed.Instrument()
	trade := &domain.Trade{
		ID:            uuid.NewString(),
		Symbol:        inst.Symbol,
		Class:         inst.Class,
		Direction:     direction,
		EntryPrice:    entryPrice,
		Stake:         stake,
		PayoutPercent: s.cfg.Catalog.PayoutFor(inst.Class),
		OpenedAt:      time.Now().UTC(),
		Expiry:        expiry,
		Status:        domain.StatusActive,
	}

	s.mu.Lock()
	// The ordered checks above read the balance without holding it; a
	// concurrent placement may have spent it since. The debit only happens
	// if the stake still fits inside this critical section.
	if stake > s.account.Balance {
		s.mu.Unlock()
		s.notifier.Failure("Saldo insuficiente")
		return nil, ports.ErrInsufficientBalance
	}
	// The stake leaves the balance immediately and only the resolution path
	// can bring it back.
	s.account.Balance -= stake
	s.mu.Unlock()

	if err := s.repo.Create(ctx, trade); err != nil {
		s.mu.Lock()
		s.account.Balance += stake
		s.mu.Unlock()
		s.logger.Error(ctx, err, op+": Failed to record trade")
		s.notifier.Failure("Erro ao registrar a opção")
		return nil, err
	}

	s.mu.Lock()
	s.active[trade.ID] = trade
	s.timers[trade.ID] = time.AfterFunc(expiry, func() { s.resolve(trade.ID) })
	s.mu.Unlock()

	s.chart.AddLine(trade.ID, entryPrice, direction)
	s.notifier.Success(fmt.Sprintf("Opção %s de $%.2f aberta! Payout: %.0f%%", direction, stake, trade.PayoutPercent))
	s.logger.Info(ctx, op+": Trade placed", map[string]interface{}{
		"tradeID":    trade.ID,
		"symbol":     trade.Symbol,
		"direction":  direction,
		"stake":      stake,
		"entryPrice": entryPrice,
		"expiry":     expiry.String(),
	})

	s.publishState(ctx)
	return trade, nil
}

// resolve fires once per trade, expiry after placement. It is a no-op if
// the trade already resolved or the service has been torn down.
func (s *TradingService) resolve(id string) {
	ctx := context.Background()
	op := "resolve"

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	trade, ok := s.active[id]
	if !ok || !trade.IsActive() {
		s.mu.Unlock()
		return
	}

	// Settlement reads whatever price is live right now; only the entry
	// price was snapshotted at placement. A feed that is mid-switch or not
	// yet warmed up reports no price; such trades settle at their entry,
	// which the no-push rule scores as a loss for either direction.
	finalPrice := trade.EntryPrice
	if currentPrice := s.feed.CurrentPrice(); currentPrice > 0 {
		finalPrice = s.settlementPrice(currentPrice)
	}
	won := trade.WinsAt(finalPrice)

	trade.ExitPrice = finalPrice
	if won {
		trade.Status = domain.StatusWon
		s.account.Balance += trade.Payout()
	} else {
		trade.Status = domain.StatusLost
	}
	delete(s.active, id)
	delete(s.timers, id)
	s.mu.Unlock()

	if err := s.repo.Resolve(ctx, id, trade.Status, finalPrice); err != nil && !errors.Is(err, ports.ErrTradeFinal) {
		s.logger.Error(ctx, err, op+": Failed to record resolution", map[string]interface{}{"tradeID": id})
	}

	s.chart.RemoveLine(id)
	if won {
		profit := trade.Stake * trade.PayoutPercent / 100
		s.notifier.Result(true, fmt.Sprintf("🎉 GANHOU! +$%.2f (%.0f%%)", profit, trade.PayoutPercent))
	} else {
		s.notifier.Result(false, fmt.Sprintf("❌ PERDEU! -$%.2f", trade.Stake))
	}

	s.logger.Info(ctx, op+": Trade resolved", map[string]interface{}{
		"tradeID":    id,
		"entryPrice": trade.EntryPrice,
		"finalPrice": finalPrice,
		"status":     trade.Status,
	})
	s.publishState(ctx)
}

// settlementPrice perturbs the live price by a bounded random percentage.
func (s *TradingService) settlementPrice(currentPrice float64) float64 {
	return currentPrice + (s.rng.Float64()-0.5)*(currentPrice*settlementJitter)
}

// SwitchInstrument changes the observed symbol. Active trades keep their
// timers; their settlement samples whatever the feed shows at expiry.
func (s *TradingService) SwitchInstrument(ctx context.Context, symbol string) error {
	inst, ok := s.cfg.Catalog.Find(symbol)
	if !ok {
		s.notifier.Failure("Ativo não disponível")
		return fmt.Errorf("symbol %q: %w", symbol, ports.ErrUnknownSymbol)
	}
	if err := s.feed.Switch(ctx, inst); err != nil {
		s.notifier.Failure("Erro ao trocar de ativo")
		return err
	}
	s.publishState(ctx)
	return nil
}

// SwitchMode replaces the balance wholly: demo seed or zero. The previous
// balance is discarded.
func (s *TradingService) SwitchMode(ctx context.Context, mode domain.AccountMode) {
	s.mu.Lock()
	s.account.Reset(mode, s.cfg.DemoBalance)
	s.mu.Unlock()

	if mode == domain.ModeDemo {
		s.notifier.Success("Mudou para conta demo")
	} else {
		s.notifier.Success("Mudou para conta real")
	}
	s.logger.Info(ctx, "Account mode switched", map[string]interface{}{"mode": mode})
	s.publishState(ctx)
}

// Deposit credits the real account. In demo mode the action is rejected
// with a notice to switch modes first.
func (s *TradingService) Deposit(ctx context.Context, amount float64) error {
	s.mu.Lock()
	mode := s.account.Mode
	s.mu.Unlock()

	if mode == domain.ModeDemo {
		s.notifier.Failure("Para depósitos reais, mude para conta real")
		return ports.ErrDepositRequiresReal
	}
	if amount <= 0 {
		s.notifier.Failure("Valor de depósito inválido")
		return ports.ErrInvalidDeposit
	}

	s.mu.Lock()
	s.account.Balance += amount
	s.mu.Unlock()

	s.notifier.Success(fmt.Sprintf("Depósito de $%.2f realizado", amount))
	s.logger.Info(ctx, "Deposit credited", map[string]interface{}{"amount": amount})
	s.publishState(ctx)
	return nil
}

// Snapshot assembles the session view-model for the shell.
func (s *TradingService) Snapshot(ctx context.Context) domain.SessionState {
	s.mu.Lock()
	account := s.account
	s.mu.Unlock()

	inst := s.feed.Instrument()
	st := domain.SessionState{
		Account:    account,
		Instrument: inst,
		Payout:     s.cfg.Catalog.PayoutFor(inst.Class),
	}

	trades, err := s.repo.Recent(ctx, s.cfg.HistoryLimit)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load recent trades for snapshot")
	} else {
		st.Trades = trades
	}
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load trade stats for snapshot")
	} else {
		st.Stats = stats
	}
	return st
}

// Candles exposes the cached series for new shell clients.
func (s *TradingService) Candles() []domain.Candle {
	return s.feed.Candles()
}

// Catalog exposes the instrument catalog for the shell's selectors.
func (s *TradingService) Catalog() *domain.Catalog {
	return s.cfg.Catalog
}

// Shutdown stops pending resolution timers and turns any late resolution
// into a no-op.
func (s *TradingService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.logger.Info(ctx, "Trading service stopped")
}

func (s *TradingService) publishState(ctx context.Context) {
	s.state.PublishState(s.Snapshot(ctx))
}

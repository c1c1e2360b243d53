package binancefeed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"

	"github.com/APARENCE/binance-options-visualizer-25/internal/domain"
	"github.com/APARENCE/binance-options-visualizer-25/internal/ports"
)

// barInterval is the only bar size the shell charts.
const barInterval = "1m"

// REST klines are public but still rate limited; a couple of requests per
// second is plenty for symbol switching.
const (
	historyRatePerSec = 2
	historyBurst      = 2
)

// Config holds configuration specific to the Binance feed adapter.
type Config struct {
	Logger          ports.Logger
	ReconnectDelay  time.Duration // delay before the single reconnect attempt
	BackfillCandles int           // default 100
}

// Source streams candles for exchange-listed instruments: one REST backfill
// request, then one kline websocket subscription. Only public endpoints are
// used; no credentials are configured anywhere.
type Source struct {
	client          *binance.Client
	logger          ports.Logger
	limiter         *rate.Limiter
	reconnectDelay  time.Duration
	backfillCandles int
}

// New creates a new Binance feed source.
func New(cfg Config) (*Source, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance feed source")
	}
	reconnectDelay := cfg.ReconnectDelay
	if reconnectDelay <= 0 {
		reconnectDelay = 3 * time.Second
	}
	backfill := cfg.BackfillCandles
	if backfill <= 0 {
		backfill = 100
	}
	return &Source{
		client:          binance.NewClient("", ""),
		logger:          cfg.Logger,
		limiter:         rate.NewLimiter(historyRatePerSec, historyBurst),
		reconnectDelay:  reconnectDelay,
		backfillCandles: backfill,
	}, nil
}

// Stream fetches the historical backfill and opens the push subscription.
// A history failure is reported through the sink but does not abort the
// stream; the chart keeps whatever data it had.
func (s *Source) Stream(ctx context.Context, inst domain.Instrument, sink ports.FeedSink) (func(), error) {
	st := &stream{src: s, symbol: inst.Symbol, sink: sink}
	st.ctx, st.cancel = context.WithCancel(ctx)

	candles, err := s.history(st.ctx, inst.Symbol)
	if err != nil {
		s.logger.Error(ctx, err, "Historical backfill failed", map[string]interface{}{"symbol": inst.Symbol})
		sink.FeedError(fmt.Errorf("%w: %w", ports.ErrHistoryFetch, err))
	} else {
		sink.Backfill(candles)
	}

	st.connect()
	return st.stop, nil
}

// history fetches the most recent backfill window of 1m bars. Only the
// first five kline fields are consumed.
func (s *Source) history(ctx context.Context, symbol string) ([]domain.Candle, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrContextCanceled, err)
	}

	klines, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(barInterval).
		Limit(s.backfillCandles).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := translateKline(k)
		if err != nil {
			return nil, fmt.Errorf("failed to translate historical kline: %w", err)
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// stream is one live subscription lifecycle. Every (re)connection gets a
// generation number; a reconnect timer only fires for the generation that
// scheduled it, so a stale timer cannot resurrect an abandoned connection.
type stream struct {
	src    *Source
	symbol string
	sink   ports.FeedSink
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	gen     uint64
	wsStopC chan struct{}
	wsDoneC chan struct{}
	stopped bool
}

func (st *stream) connect() {
	st.mu.Lock()
	if st.stopped {
		st.mu.Unlock()
		return
	}
	st.gen++
	gen := st.gen
	st.mu.Unlock()

	st.src.logger.Info(st.ctx, "Connecting kline stream", map[string]interface{}{
		"symbol":   st.symbol,
		"interval": barInterval,
	})

	doneC, stopC, err := binance.WsKlineServe(st.symbol, barInterval, st.handleKlineEvent, st.handleTransportError)
	if err != nil {
		st.src.logger.Error(st.ctx, err, "Kline stream connection failed", map[string]interface{}{"symbol": st.symbol})
		st.sink.FeedError(fmt.Errorf("%w: %w", ports.ErrConnectionFailed, err))
		st.sink.Status(false)
		st.scheduleReconnect(gen)
		return
	}

	st.mu.Lock()
	st.wsStopC = stopC
	st.wsDoneC = doneC
	st.mu.Unlock()

	st.sink.Status(true)

	go func() {
		select {
		case <-doneC:
			st.onClosed(gen)
		case <-st.ctx.Done():
			// stop() already signalled the websocket.
		}
	}()
}

// onClosed handles an unexpected connection close: mark disconnected and
// schedule exactly one reconnect attempt.
func (st *stream) onClosed(gen uint64) {
	st.mu.Lock()
	stale := st.stopped || gen != st.gen
	st.mu.Unlock()
	if stale {
		return
	}

	st.src.logger.Warn(st.ctx, "Kline stream closed", map[string]interface{}{"symbol": st.symbol})
	st.sink.Status(false)
	st.scheduleReconnect(gen)
}

func (st *stream) scheduleReconnect(gen uint64) {
	time.AfterFunc(st.src.reconnectDelay, func() {
		st.mu.Lock()
		stale := st.stopped || gen != st.gen
		st.mu.Unlock()
		if stale {
			// A newer connection superseded this timer.
			return
		}
		st.connect()
	})
}

// handleKlineEvent translates a websocket bar update and forwards it.
func (st *stream) handleKlineEvent(event *binance.WsKlineEvent) {
	candle, err := translateWsKline(event)
	if err != nil {
		st.src.logger.Error(st.ctx, err, "Failed to translate websocket kline event", map[string]interface{}{"symbol": st.symbol})
		return
	}
	st.sink.Update(candle)
}

// handleTransportError marks the feed disconnected. Reconnecting is the
// close handler's job; the transport error itself schedules nothing.
func (st *stream) handleTransportError(err error) {
	st.mu.Lock()
	stopped := st.stopped
	st.mu.Unlock()
	if stopped {
		return
	}
	st.src.logger.Error(st.ctx, err, "Kline stream transport error", map[string]interface{}{"symbol": st.symbol})
	st.sink.Status(false)
}

// stop tears the subscription down and supersedes any pending reconnect.
// The stop signal is delivered unconditionally; the serve goroutine either
// consumes it or has already closed doneC.
func (st *stream) stop() {
	st.mu.Lock()
	if st.stopped {
		st.mu.Unlock()
		return
	}
	st.stopped = true
	stopC := st.wsStopC
	doneC := st.wsDoneC
	st.mu.Unlock()

	st.cancel()
	if stopC != nil {
		select {
		case stopC <- struct{}{}:
		case <-doneC:
		}
	}
}

// --- Translation Helpers ---

func translateWsKline(event *binance.WsKlineEvent) (domain.Candle, error) {
	if event == nil {
		return domain.Candle{}, errors.New("received nil kline event")
	}
	k := event.Kline
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing open price '%s': %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing high price '%s': %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing low price '%s': %w", k.Low, err)
	}
	cls, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing close price '%s': %w", k.Close, err)
	}

	return domain.Candle{
		Time:  k.StartTime / 1000,
		Open:  open,
		High:  high,
		Low:   low,
		Close: cls,
	}, nil
}

func translateKline(k *binance.Kline) (domain.Candle, error) {
	if k == nil {
		return domain.Candle{}, errors.New("received nil historical kline")
	}
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing open price '%s': %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing high price '%s': %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing low price '%s': %w", k.Low, err)
	}
	cls, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parsing close price '%s': %w", k.Close, err)
	}

	return domain.Candle{
		Time:  k.OpenTime / 1000,
		Open:  open,
		High:  high,
		Low:   low,
		Close: cls,
	}, nil
}

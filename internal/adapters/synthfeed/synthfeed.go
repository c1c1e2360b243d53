package synthfeed

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/APARENCE/binance-options-visualizer-25/internal/domain"
	"github.com/APARENCE/binance-options-visualizer-25/internal/ports"
)

// Noise bounds as fractions of the running price. The candle body moves by
// a uniform value in ±body, wicks are padded by up to the wick fraction.
const (
	backfillBodyNoise = 0.0005
	backfillWickNoise = 0.0005
	tickBodyNoise     = 0.0004
	tickWickNoise     = 0.0002
)

// Config holds configuration for the synthetic feed source.
type Config struct {
	Logger          ports.Logger
	Rand            ports.RandSource // seeded from the clock when nil
	BackfillCandles int              // default 100
	CandleInterval  time.Duration    // backfill bar spacing, default 1m
	TickInterval    time.Duration    // live bar cadence, default 1s
}

// Source generates a random-walk candle stream seeded from the instrument's
// base price. It never fails and never disconnects.
type Source struct {
	logger          ports.Logger
	rng             ports.RandSource
	backfillCandles int
	candleInterval  time.Duration
	tickInterval    time.Duration
}

// New creates a synthetic feed source.
func New(cfg Config) (*Source, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for synthetic feed source")
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	backfill := cfg.BackfillCandles
	if backfill <= 0 {
		backfill = 100
	}
	candleInterval := cfg.CandleInterval
	if candleInterval <= 0 {
		candleInterval = time.Minute
	}
	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	return &Source{
		logger:          cfg.Logger,
		rng:             rng,
		backfillCandles: backfill,
		candleInterval:  candleInterval,
		tickInterval:    tickInterval,
	}, nil
}

// Stream generates the backfill series, reports the source as connected and
// then emits one new candle per tick until stop is called or ctx ends.
func (s *Source) Stream(ctx context.Context, inst domain.Instrument, sink ports.FeedSink) (func(), error) {
	basePrice := inst.BasePrice
	if basePrice <= 0 {
		basePrice = 1.0
	}

	streamCtx, cancel := context.WithCancel(ctx)

	candles, lastClose := s.backfill(basePrice)
	sink.Backfill(candles)
	sink.Status(true)
	s.logger.Debug(ctx, "Synthetic feed started", map[string]interface{}{
		"symbol":    inst.Symbol,
		"basePrice": basePrice,
		"backfill":  len(candles),
	})

	go func() {
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()

		price := lastClose
		for {
			select {
			case <-streamCtx.Done():
				return
			case <-ticker.C:
				candle, next := s.tick(price)
				sink.Update(candle)
				price = next
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

// backfill walks the price back from the base, producing fixed-interval
// candles that end at "now". Each bar opens at the previous close.
func (s *Source) backfill(basePrice float64) ([]domain.Candle, float64) {
	now := time.Now().Unix()
	interval := int64(s.candleInterval / time.Second)

	candles := make([]domain.Candle, 0, s.backfillCandles)
	price := basePrice
	for i := s.backfillCandles - 1; i >= 0; i-- {
		open := price
		close := open + (s.rng.Float64()*2-1)*backfillBodyNoise*open
		high := maxOf(open, close) + s.rng.Float64()*backfillWickNoise*open
		low := minOf(open, close) - s.rng.Float64()*backfillWickNoise*open

		candles = append(candles, domain.Candle{
			Time:  now - int64(i)*interval,
			Open:  open,
			High:  high,
			Low:   low,
			Close: close,
		})
		price = close
	}
	return candles, price
}

// tick derives one live candle from the running price.
func (s *Source) tick(price float64) (domain.Candle, float64) {
	next := price + (s.rng.Float64()*2-1)*tickBodyNoise*price
	return domain.Candle{
		Time:  time.Now().Unix(),
		Open:  price,
		High:  maxOf(price, next) + s.rng.Float64()*tickWickNoise*price,
		Low:   minOf(price, next) - s.rng.Float64()*tickWickNoise*price,
		Close: next,
	}, next
}

func maxOf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minOf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

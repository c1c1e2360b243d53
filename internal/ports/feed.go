package ports

import (
	"context"

	"github.com/APARENCE/binance-options-visualizer-25/internal/domain"
)

// FeedSink consumes the normalized output of a feed source. Implementations
// must tolerate callbacks arriving from source-owned goroutines.
type FeedSink interface {
	// Backfill delivers the initial candle series, oldest first.
	Backfill(candles []domain.Candle)
	// Update amends the in-progress bar, or appends a new one when the bar
	// start time advances.
	Update(c domain.Candle)
	// Status reports connection state changes.
	Status(connected bool)
	// FeedError reports a non-fatal source failure (history fetch, transport).
	FeedError(err error)
}

// FeedSource produces a continuous candle stream for one instrument.
// Exactly one Stream per source instance may be active at a time; the
// returned stop function tears the stream down and supersedes any pending
// reconnect, after which the source emits nothing further.
type FeedSource interface {
	Stream(ctx context.Context, inst domain.Instrument, sink FeedSink) (stop func(), err error)
}

// RandSource supplies the uniform randomness used by the synthetic walk and
// by settlement sampling. *math/rand.Rand satisfies it; tests inject fixed
// sequences to pin outcomes.
type RandSource interface {
	Float64() float64
}

package ports

import "github.com/APARENCE/binance-options-visualizer-25/internal/domain"

// ChartSurface is the opaque charting collaborator. The core only issues
// these operations and never inspects rendering state; implementations must
// degrade every call to a no-op once the display surface is gone, so that
// late resolution timers cannot fail.
type ChartSurface interface {
	// SetData replaces the whole candle series (empty slice clears the chart).
	SetData(candles []domain.Candle)
	// UpdateCandle amends or appends the most recent bar.
	UpdateCandle(c domain.Candle)
	// AddLine draws a horizontal entry marker. The id is an opaque handle the
	// caller passes back to RemoveLine; the surface owns everything else.
	AddLine(id string, price float64, direction domain.Direction)
	// RemoveLine removes a marker; unknown ids are ignored.
	RemoveLine(id string)
	// FitContent fits the visible range to the data.
	FitContent()
	// ShowPrice updates the scalar price readout.
	ShowPrice(price, change float64, decimals int)
}

// Notifier emits transient user-facing notices (toasts and the trade
// result banner). Implementations must be safe to call after teardown.
type Notifier interface {
	Success(msg string)
	Failure(msg string)
	// Result shows the win/loss banner; the shell clears it after a fixed
	// display duration regardless of subsequent trades.
	Result(won bool, msg string)
}

// StatePublisher pushes a fresh session snapshot to the shell after any
// balance, trade or instrument mutation.
type StatePublisher interface {
	PublishState(st domain.SessionState)
}

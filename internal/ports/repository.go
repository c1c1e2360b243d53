package ports

import (
	"context"

	"github.com/APARENCE/binance-options-visualizer-25/internal/domain"
)

// TradeRepository is the session trade log: append-only except for the
// single terminal update a resolution applies. State is session-local and
// lost when the process exits.
type TradeRepository interface {
	// Create appends a newly placed trade.
	Create(ctx context.Context, t *domain.Trade) error
	// Resolve applies the terminal status and exit price to an active trade.
	// Returns ErrTradeFinal if the trade already resolved and ErrNotFound if
	// the id is unknown; a repeated resolution must not change anything.
	Resolve(ctx context.Context, id string, status domain.TradeStatus, exitPrice float64) error
	// Recent returns the most recent trades, newest first, up to limit.
	Recent(ctx context.Context, limit int) ([]*domain.Trade, error)
	// Stats aggregates win/loss counts over the whole session.
	Stats(ctx context.Context) (domain.Stats, error)
}

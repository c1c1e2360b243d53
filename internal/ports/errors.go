package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these sentinels.
var (
	// General
	ErrUnknown         = errors.New("unknown error occurred")
	ErrNotFound        = errors.New("resource not found")
	ErrContextCanceled = errors.New("operation canceled via context")

	// Trade placement validation. Checked in order at placement; each maps
	// to a distinct user-visible rejection with no state mutation.
	ErrInsufficientBalance = errors.New("stake exceeds available balance")
	ErrInvalidAmount       = errors.New("stake must be greater than zero")
	ErrFeedNotReady        = errors.New("price feed is not ready")
	ErrInvalidExpiry       = errors.New("expiry is not one of the offered durations")

	// Account
	ErrDepositRequiresReal = errors.New("deposits require the real account mode")
	ErrInvalidDeposit      = errors.New("deposit amount must be greater than zero")

	// Feed / transport
	ErrConnectionFailed = errors.New("failed to connect to the market data stream")
	ErrHistoryFetch     = errors.New("failed to fetch historical candles")
	ErrUnknownSymbol    = errors.New("symbol is not in the instrument catalog")

	// Storage
	ErrTradeFinal  = errors.New("trade already resolved")
	ErrQueryFailed = errors.New("database query failed")
)

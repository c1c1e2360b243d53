package domain

import (
	"strconv"
	"time"
)

// Direction is the side of a binary option (price up or price down).
type Direction string

const (
	Call Direction = "CALL"
	Put  Direction = "PUT"
)

// TradeStatus represents the lifecycle state of a binary option trade.
// The only transitions are Active -> Won and Active -> Lost; both are terminal.
type TradeStatus string

const (
	StatusActive TradeStatus = "active"
	StatusWon    TradeStatus = "won"
	StatusLost   TradeStatus = "lost"
)

// AccountMode selects which account the session trades against.
type AccountMode string

const (
	ModeDemo AccountMode = "demo"
	ModeReal AccountMode = "real"
)

// AssetClass groups instruments by market. Forex instruments are simulated
// locally; everything else streams from the exchange.
type AssetClass string

const (
	ClassForex  AssetClass = "forex"
	ClassCrypto AssetClass = "crypto"
)

// PriceDecimals returns the display precision for the class. Forex quotes
// are shown with 5 decimal places, everything else with 2. Stored prices
// keep full float64 precision.
func (c AssetClass) PriceDecimals() int {
	if c == ClassForex {
		return 5
	}
	return 2
}

// FormatPrice renders a price with the display precision of the class.
func (c AssetClass) FormatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', c.PriceDecimals(), 64)
}

// ExpiryOptions is the fixed set of expiry durations a trade may be placed with.
var ExpiryOptions = []time.Duration{
	15 * time.Second,
	30 * time.Second,
	60 * time.Second,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
}

// IsValidExpiry reports whether d is one of the offered expiry durations.
func IsValidExpiry(d time.Duration) bool {
	for _, opt := range ExpiryOptions {
		if d == opt {
			return true
		}
	}
	return false
}

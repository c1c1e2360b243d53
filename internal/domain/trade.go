package domain

import "time"

// Trade is one binary option position. It is created at placement, owned by
// the lifecycle service while active, and mutated exactly once at resolution
// (Status and ExitPrice); after that it is immutable history.
type Trade struct {
	ID            string        `json:"id"`
	Symbol        string        `json:"symbol"`
	Class         AssetClass    `json:"class"`
	Direction     Direction     `json:"direction"`
	EntryPrice    float64       `json:"entryPrice"`
	ExitPrice     float64       `json:"exitPrice,omitempty"` // zero while active
	Stake         float64       `json:"stake"`
	PayoutPercent float64       `json:"payoutPercent"`
	OpenedAt      time.Time     `json:"openedAt"`
	Expiry        time.Duration `json:"expirySeconds"`
	Status        TradeStatus   `json:"status"`
}

// IsActive reports whether the trade has not yet resolved.
func (t *Trade) IsActive() bool {
	return t.Status == StatusActive
}

// Payout is the amount credited back on a win: the stake plus the
// configured percentage of it. A lost trade pays nothing (the stake was
// debited at placement).
func (t *Trade) Payout() float64 {
	return t.Stake + t.Stake*t.PayoutPercent/100
}

// WinsAt applies the settlement rule: CALL wins iff the final price is
// strictly above the entry, PUT iff strictly below. Equality loses for
// both directions; there is no push.
func (t *Trade) WinsAt(finalPrice float64) bool {
	switch t.Direction {
	case Call:
		return finalPrice > t.EntryPrice
	case Put:
		return finalPrice < t.EntryPrice
	default:
		return false
	}
}

// Stats summarizes the session's trade history.
type Stats struct {
	Total   int     `json:"total"`
	Won     int     `json:"won"`
	Lost    int     `json:"lost"`
	Active  int     `json:"active"`
	WinRate float64 `json:"winRate"` // percent of all trades won, 0 when empty
}

package domain

// Candle is a single OHLC bar, normalized from either feed source.
// Time is the bar start in unix seconds; bars are ordered by Time and the
// most recent bar may be amended in place before the next one is appended.
type Candle struct {
	Time  int64   `json:"time"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// IsValid checks the OHLC invariant: Low bounds the body from below and
// High from above.
func (c Candle) IsValid() bool {
	lo, hi := c.Open, c.Close
	if lo > hi {
		lo, hi = hi, lo
	}
	return c.Low <= lo && c.High >= hi
}

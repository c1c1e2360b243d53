package domain

// Instrument is one tradable symbol from the catalog.
type Instrument struct {
	Symbol    string     `json:"symbol" yaml:"symbol"`
	Label     string     `json:"label" yaml:"label"`
	Class     AssetClass `json:"class" yaml:"-"`
	BasePrice float64    `json:"-" yaml:"base_price"` // seed for the synthetic walk
}

// ClassInfo describes one asset class of the catalog.
type ClassInfo struct {
	Name          string       `json:"name" yaml:"name"`
	PayoutPercent float64      `json:"payout" yaml:"payout"`
	Instruments   []Instrument `json:"instruments" yaml:"instruments"`
}

// Catalog holds every instrument the shell can offer, grouped by class.
type Catalog struct {
	Classes map[AssetClass]ClassInfo `json:"classes" yaml:"classes"`
}

// Find looks an instrument up by symbol across all classes.
func (c *Catalog) Find(symbol string) (Instrument, bool) {
	for class, info := range c.Classes {
		for _, inst := range info.Instruments {
			if inst.Symbol == symbol {
				inst.Class = class
				return inst, true
			}
		}
	}
	return Instrument{}, false
}

// PayoutFor returns the payout percentage configured for the class.
func (c *Catalog) PayoutFor(class AssetClass) float64 {
	return c.Classes[class].PayoutPercent
}

// SessionState is the view-model snapshot the presentation shell renders:
// account, active instrument and the recent trade history with aggregates.
type SessionState struct {
	Account    Account    `json:"account"`
	Instrument Instrument `json:"instrument"`
	Payout     float64    `json:"payout"`
	Trades     []*Trade   `json:"trades"`
	Stats      Stats      `json:"stats"`
}

package domain

// Account is a simple running balance tagged with the mode it belongs to.
// No invariant ties the balance to the sum of trade outcomes; debits and
// credits are applied by the lifecycle service as trades open and resolve.
type Account struct {
	Balance float64     `json:"balance"`
	Mode    AccountMode `json:"mode"`
}

// Reset replaces the balance wholly for the given mode: the demo seed for
// demo, zero for real. The previous balance is discarded, not stashed;
// switching away and back does not restore it.
func (a *Account) Reset(mode AccountMode, demoSeed float64) {
	a.Mode = mode
	if mode == ModeDemo {
		a.Balance = demoSeed
	} else {
		a.Balance = 0
	}
}

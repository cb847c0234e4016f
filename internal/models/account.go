package models

import "github.com/openyield/yieldbridge/internal/fixedpoint"

// Account is the per-holder state of one ledger instance. Principal is the
// settled balance as of LastSettled; interest accrued since then exists only
// derived, never stored.
type Account struct {
	ID          string          `json:"id"`
	Principal   uint64          `json:"principal"`
	Rate        fixedpoint.Rate `json:"rate"`
	LastSettled int64           `json:"last_settled"` // unix seconds
}

// GlobalConfig is the single mutable configuration record of a ledger
// instance. CeilingRate bounds the rate assignable to new mints and may only
// ever decrease.
type GlobalConfig struct {
	CeilingRate fixedpoint.Rate `json:"ceiling_rate"`
}

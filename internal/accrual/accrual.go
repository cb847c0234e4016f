// Package accrual is the interest-growth engine: pure functions over an
// account's stored state and a point in time. It never talks to storage and
// never mutates anything except the *Account handed to Settle.
package accrual

import (
	"time"

	"github.com/openyield/yieldbridge/internal/fixedpoint"
	"github.com/openyield/yieldbridge/internal/models"
)

// elapsed returns the whole seconds between the account's last settlement and
// now. A clock reading behind LastSettled accrues nothing; time never runs
// backwards for an account.
func elapsed(acct models.Account, now time.Time) int64 {
	dt := now.Unix() - acct.LastSettled
	if dt < 0 {
		return 0
	}
	return dt
}

// SettledBalance returns the balance the account would hold if settled at
// now: principal plus linear interest, floor-rounded. Read-only.
func SettledBalance(acct models.Account, now time.Time) (uint64, error) {
	return fixedpoint.Grow(acct.Principal, acct.Rate, elapsed(acct, now))
}

// Settle folds the interest accrued up to now into Principal and advances
// LastSettled. Calling it twice at the same now is a no-op on Principal.
// Every operation that changes Principal or Rate must settle first, so no
// accrued interest is lost and a new rate only applies prospectively.
func Settle(acct *models.Account, now time.Time) error {
	grown, err := fixedpoint.Grow(acct.Principal, acct.Rate, elapsed(*acct, now))
	if err != nil {
		return err
	}
	acct.Principal = grown
	if ts := now.Unix(); ts > acct.LastSettled {
		acct.LastSettled = ts
	}
	return nil
}

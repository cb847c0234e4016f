package ledger

import "errors"

var (
	// ErrInsufficientBalance is returned when a burn or transfer exceeds
	// the account's settled principal.
	ErrInsufficientBalance = errors.New("insufficient settled balance")
	// ErrInvalidAmount is returned for zero amounts and self-transfers.
	ErrInvalidAmount = errors.New("invalid amount")
)

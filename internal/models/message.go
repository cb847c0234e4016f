package models

import (
	"time"

	"github.com/openyield/yieldbridge/internal/fixedpoint"
)

// OutboundMessage carries value and its accrual terms between two ledger
// instances. Rate travels inside the message so the destination mints with
// the exact rate the holder locked on the source side, never a recomputed one.
// ID is the deduplication key consumed exactly once by the receiving bridge.
type OutboundMessage struct {
	ID                 string          `json:"id"`
	SourceInstance     string          `json:"source_instance"`
	DestinationAccount string          `json:"destination_account"`
	Amount             uint64          `json:"amount"`
	Rate               fixedpoint.Rate `json:"rate"`
	SentAt             time.Time       `json:"sent_at"`
}

// Package events defines the domain events emitted onto the event stream
// after ledger operations commit. They are observational only; no ledger
// state depends on them.
package events

import (
	"time"

	"github.com/openyield/yieldbridge/internal/fixedpoint"
)

type BalanceMinted struct {
	EventID    string          `json:"event_id"`
	Account    string          `json:"account"`
	Amount     uint64          `json:"amount"`
	Rate       fixedpoint.Rate `json:"rate"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type BalanceBurned struct {
	EventID    string    `json:"event_id"`
	Account    string    `json:"account"`
	Amount     uint64    `json:"amount"`
	OccurredAt time.Time `json:"occurred_at"`
}

type TransferCompleted struct {
	EventID     string    `json:"event_id"`
	FromAccount string    `json:"from_account"`
	ToAccount   string    `json:"to_account"`
	Amount      uint64    `json:"amount"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type BridgeTransferInitiated struct {
	EventID            string          `json:"event_id"`
	MessageID          string          `json:"message_id"`
	Holder             string          `json:"holder"`
	DestinationAccount string          `json:"destination_account"`
	Amount             uint64          `json:"amount"`
	Rate               fixedpoint.Rate `json:"rate"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

type BridgeTransferCompleted struct {
	EventID        string          `json:"event_id"`
	MessageID      string          `json:"message_id"`
	SourceInstance string          `json:"source_instance"`
	Account        string          `json:"account"`
	Amount         uint64          `json:"amount"`
	Rate           fixedpoint.Rate `json:"rate"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

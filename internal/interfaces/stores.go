package interfaces

import (
	"context"

	"github.com/openyield/yieldbridge/internal/models"
)

// AccountStore persists per-account ledger state. Save applies all given
// accounts atomically: after a failure none of them may be visible in their
// new state.
type AccountStore interface {
	// Get returns the account and whether it exists. A missing account is
	// not an error; the ledger creates accounts implicitly on first mint.
	Get(ctx context.Context, id string) (models.Account, bool, error)
	Save(ctx context.Context, accounts ...models.Account) error
}

// ConfigStore persists the instance's GlobalConfig.
type ConfigStore interface {
	// LoadConfig returns the stored config and whether one has been
	// written yet.
	LoadConfig(ctx context.Context) (models.GlobalConfig, bool, error)
	SaveConfig(ctx context.Context, cfg models.GlobalConfig) error
}

// ReplayStore records consumed bridge message IDs. MarkConsumed returns true
// exactly once per ID; the check and the write are a single atomic step.
type ReplayStore interface {
	MarkConsumed(ctx context.Context, messageID string) (bool, error)
}

// Package ledger owns per-account balance state. Every mutating operation
// settles accrued interest first and applies settlement plus mutation as one
// atomic step per account: state is loaded, transformed in memory and written
// back in a single save while the account's lock is held.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openyield/yieldbridge/internal/accrual"
	"github.com/openyield/yieldbridge/internal/auth"
	"github.com/openyield/yieldbridge/internal/fixedpoint"
	"github.com/openyield/yieldbridge/internal/interfaces"
	"github.com/openyield/yieldbridge/internal/metrics"
	"github.com/openyield/yieldbridge/internal/models"
	"github.com/openyield/yieldbridge/internal/models/events"
)

// EntireBalance is the sentinel burn amount meaning "the full settled
// balance".
const EntireBalance = ^uint64(0)

// Clock supplies the instance-local time. Injected so tests can drive
// settlement deterministically.
type Clock func() time.Time

type Ledger struct {
	store   interfaces.AccountStore
	auth    interfaces.Authorizer
	events  interfaces.EventPublisher
	metrics *metrics.Collector
	clock   Clock
	log     zerolog.Logger

	muMap map[string]*sync.Mutex // one lock per account id
	mapMu sync.Mutex             // protects muMap itself
}

type Option func(*Ledger)

func WithClock(c Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

func WithEventPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.events = p }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(l *Ledger) { l.metrics = m }
}

func NewLedger(store interfaces.AccountStore, authorizer interfaces.Authorizer, log zerolog.Logger, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		auth:  authorizer,
		clock: time.Now,
		log:   log.With().Str("component", "ledger").Logger(),
		muMap: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) lockFor(accountID string) *sync.Mutex {
	l.mapMu.Lock()
	defer l.mapMu.Unlock()

	mu, ok := l.muMap[accountID]
	if !ok {
		mu = &sync.Mutex{}
		l.muMap[accountID] = mu
	}
	return mu
}

// load returns the stored account, or a fresh zero-state account when none
// exists yet. Accounts come into being implicitly on their first mint.
func (l *Ledger) load(ctx context.Context, id string) (models.Account, error) {
	acct, ok, err := l.store.Get(ctx, id)
	if err != nil {
		return models.Account{}, fmt.Errorf("load account %s: %w", id, err)
	}
	if !ok {
		return models.Account{ID: id}, nil
	}
	return acct, nil
}

// Mint settles the account, overwrites its rate with the supplied one and
// adds amount to the principal. The rate is trusted to already be bounded by
// the ceiling: the custody path passes the current ceiling and the bridge
// path passes a rate that originated from a prior bounded mint.
func (l *Ledger) Mint(ctx context.Context, caller, accountID string, amount uint64, rate fixedpoint.Rate) error {
	if !l.auth.Allows(caller, auth.CapMintBurn) {
		l.fail("mint")
		return fmt.Errorf("mint by %q: %w", caller, auth.ErrUnauthorized)
	}

	mu := l.lockFor(accountID)
	mu.Lock()
	defer mu.Unlock()

	now := l.clock()
	start := time.Now()

	acct, err := l.load(ctx, accountID)
	if err != nil {
		l.fail("mint")
		return err
	}
	if err := accrual.Settle(&acct, now); err != nil {
		l.fail("mint")
		return fmt.Errorf("settle %s: %w", accountID, err)
	}
	acct.Rate = rate
	acct.Principal, err = fixedpoint.AddChecked(acct.Principal, amount)
	if err != nil {
		l.fail("mint")
		return fmt.Errorf("mint %d to %s: %w", amount, accountID, err)
	}
	if err := l.store.Save(ctx, acct); err != nil {
		l.fail("mint")
		return fmt.Errorf("save account %s: %w", accountID, err)
	}

	l.observeSettle(start)
	if l.metrics != nil {
		l.metrics.MintCompleted()
	}
	l.log.Info().
		Str("account", accountID).
		Uint64("amount", amount).
		Str("rate", rate.String()).
		Msg("minted")
	l.publish(ctx, events.BalanceMinted{
		EventID:    uuid.NewString(),
		Account:    accountID,
		Amount:     amount,
		Rate:       rate,
		OccurredAt: now,
	})
	return nil
}

// Burn settles the account and subtracts amount from the principal. Passing
// EntireBalance burns everything the settlement produced. Returns the amount
// actually burned.
func (l *Ledger) Burn(ctx context.Context, caller, accountID string, amount uint64) (uint64, error) {
	if !l.auth.Allows(caller, auth.CapMintBurn) {
		l.fail("burn")
		return 0, fmt.Errorf("burn by %q: %w", caller, auth.ErrUnauthorized)
	}

	mu := l.lockFor(accountID)
	mu.Lock()
	defer mu.Unlock()

	now := l.clock()
	start := time.Now()

	acct, err := l.load(ctx, accountID)
	if err != nil {
		l.fail("burn")
		return 0, err
	}
	if err := accrual.Settle(&acct, now); err != nil {
		l.fail("burn")
		return 0, fmt.Errorf("settle %s: %w", accountID, err)
	}
	if amount == EntireBalance {
		amount = acct.Principal
	}
	if amount > acct.Principal {
		l.fail("burn")
		return 0, fmt.Errorf("burn %d from %s holding %d: %w", amount, accountID, acct.Principal, ErrInsufficientBalance)
	}
	acct.Principal -= amount
	if err := l.store.Save(ctx, acct); err != nil {
		l.fail("burn")
		return 0, fmt.Errorf("save account %s: %w", accountID, err)
	}

	l.observeSettle(start)
	if l.metrics != nil {
		l.metrics.BurnCompleted()
	}
	l.log.Info().
		Str("account", accountID).
		Uint64("amount", amount).
		Msg("burned")
	l.publish(ctx, events.BalanceBurned{
		EventID:    uuid.NewString(),
		Account:    accountID,
		Amount:     amount,
		OccurredAt: now,
	})
	return amount, nil
}

// Transfer moves amount between two holders on this instance. Both sides are
// settled at the same instant. A recipient whose settled principal is zero is
// treated as a first receipt and inherits the sender's rate; a funded
// recipient keeps its own. Holder-initiated, so no capability is required.
func (l *Ledger) Transfer(ctx context.Context, from, to string, amount uint64) error {
	if amount == 0 || from == to {
		l.fail("transfer")
		return fmt.Errorf("transfer %d from %s to %s: %w", amount, from, to, ErrInvalidAmount)
	}

	fromMu := l.lockFor(from)
	toMu := l.lockFor(to)

	// Fixed acquisition order so concurrent opposite-direction transfers
	// cannot deadlock.
	if from < to {
		fromMu.Lock()
		toMu.Lock()
	} else {
		toMu.Lock()
		fromMu.Lock()
	}
	defer fromMu.Unlock()
	defer toMu.Unlock()

	now := l.clock()
	start := time.Now()

	sender, err := l.load(ctx, from)
	if err != nil {
		l.fail("transfer")
		return err
	}
	recipient, err := l.load(ctx, to)
	if err != nil {
		l.fail("transfer")
		return err
	}
	if err := accrual.Settle(&sender, now); err != nil {
		l.fail("transfer")
		return fmt.Errorf("settle %s: %w", from, err)
	}
	if err := accrual.Settle(&recipient, now); err != nil {
		l.fail("transfer")
		return fmt.Errorf("settle %s: %w", to, err)
	}
	if amount > sender.Principal {
		l.fail("transfer")
		return fmt.Errorf("transfer %d from %s holding %d: %w", amount, from, sender.Principal, ErrInsufficientBalance)
	}
	if recipient.Principal == 0 {
		recipient.Rate = sender.Rate
	}
	sender.Principal -= amount
	recipient.Principal, err = fixedpoint.AddChecked(recipient.Principal, amount)
	if err != nil {
		l.fail("transfer")
		return fmt.Errorf("credit %s: %w", to, err)
	}
	if err := l.store.Save(ctx, sender, recipient); err != nil {
		l.fail("transfer")
		return fmt.Errorf("save accounts %s, %s: %w", from, to, err)
	}

	l.observeSettle(start)
	if l.metrics != nil {
		l.metrics.TransferCompleted()
	}
	l.log.Info().
		Str("from", from).
		Str("to", to).
		Uint64("amount", amount).
		Msg("transferred")
	l.publish(ctx, events.TransferCompleted{
		EventID:     uuid.NewString(),
		FromAccount: from,
		ToAccount:   to,
		Amount:      amount,
		OccurredAt:  now,
	})
	return nil
}

// Settle folds accrued interest into the account's principal at the current
// time, persists it and returns the settled state.
func (l *Ledger) Settle(ctx context.Context, accountID string) (models.Account, error) {
	mu := l.lockFor(accountID)
	mu.Lock()
	defer mu.Unlock()

	acct, err := l.load(ctx, accountID)
	if err != nil {
		return models.Account{}, err
	}
	if err := accrual.Settle(&acct, l.clock()); err != nil {
		return models.Account{}, fmt.Errorf("settle %s: %w", accountID, err)
	}
	if err := l.store.Save(ctx, acct); err != nil {
		return models.Account{}, fmt.Errorf("save account %s: %w", accountID, err)
	}
	return acct, nil
}

// PrincipalBalance returns the stored principal without settling, reflecting
// state as of the account's last settlement.
func (l *Ledger) PrincipalBalance(ctx context.Context, accountID string) (uint64, error) {
	acct, err := l.load(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return acct.Principal, nil
}

// CurrentBalance returns the balance the account would settle to at now,
// without mutating anything.
func (l *Ledger) CurrentBalance(ctx context.Context, accountID string, now time.Time) (uint64, error) {
	acct, err := l.load(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return accrual.SettledBalance(acct, now)
}

// AccountState returns a copy of the stored account and whether it exists.
func (l *Ledger) AccountState(ctx context.Context, accountID string) (models.Account, bool, error) {
	return l.store.Get(ctx, accountID)
}

// Now exposes the ledger's clock so collaborators observe the same time
// source.
func (l *Ledger) Now() time.Time {
	return l.clock()
}

func (l *Ledger) publish(ctx context.Context, event any) {
	if l.events == nil {
		return
	}
	if err := l.events.Publish(ctx, event); err != nil {
		l.log.Warn().Err(err).Type("event", event).Msg("event publish failed")
	}
}

func (l *Ledger) fail(op string) {
	if l.metrics != nil {
		l.metrics.OperationFailed(op)
	}
}

func (l *Ledger) observeSettle(start time.Time) {
	if l.metrics != nil {
		l.metrics.ObserveSettle(time.Since(start).Seconds())
	}
}

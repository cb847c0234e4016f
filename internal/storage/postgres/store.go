// Package postgres is the durable storage backend. Balances and rates are
// stored as NUMERIC(20,0) text so the full uint64 range survives the
// round-trip.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/lib/pq"

	"github.com/openyield/yieldbridge/internal/fixedpoint"
	"github.com/openyield/yieldbridge/internal/interfaces"
	"github.com/openyield/yieldbridge/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id           TEXT PRIMARY KEY,
	principal    NUMERIC(20,0) NOT NULL,
	rate         NUMERIC(20,0) NOT NULL,
	last_settled BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS ledger_config (
	id           INT PRIMARY KEY,
	ceiling_rate NUMERIC(20,0) NOT NULL
);
CREATE TABLE IF NOT EXISTS consumed_messages (
	id          TEXT PRIMARY KEY,
	consumed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables this store needs if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (models.Account, bool, error) {
	const query = `SELECT id, principal, rate, last_settled FROM accounts WHERE id = $1`

	var (
		acct      models.Account
		principal string
		rate      string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&acct.ID, &principal, &rate, &acct.LastSettled)
	if err == sql.ErrNoRows {
		return models.Account{}, false, nil
	}
	if err != nil {
		return models.Account{}, false, err
	}

	acct.Principal, err = strconv.ParseUint(principal, 10, 64)
	if err != nil {
		return models.Account{}, false, fmt.Errorf("account %s principal: %w", id, err)
	}
	r, err := strconv.ParseUint(rate, 10, 64)
	if err != nil {
		return models.Account{}, false, fmt.Errorf("account %s rate: %w", id, err)
	}
	acct.Rate = fixedpoint.Rate(r)
	return acct, true, nil
}

// Save upserts all accounts inside one transaction.
func (s *Store) Save(ctx context.Context, accounts ...models.Account) error {
	const query = `INSERT INTO accounts (id, principal, rate, last_settled)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE
	SET principal = EXCLUDED.principal, rate = EXCLUDED.rate, last_settled = EXCLUDED.last_settled`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, acct := range accounts {
		_, err = tx.ExecContext(ctx, query,
			acct.ID,
			strconv.FormatUint(acct.Principal, 10),
			strconv.FormatUint(uint64(acct.Rate), 10),
			acct.LastSettled,
		)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

func (s *Store) LoadConfig(ctx context.Context) (models.GlobalConfig, bool, error) {
	const query = `SELECT ceiling_rate FROM ledger_config WHERE id = 1`

	var ceiling string
	err := s.db.QueryRowContext(ctx, query).Scan(&ceiling)
	if err == sql.ErrNoRows {
		return models.GlobalConfig{}, false, nil
	}
	if err != nil {
		return models.GlobalConfig{}, false, err
	}

	r, err := strconv.ParseUint(ceiling, 10, 64)
	if err != nil {
		return models.GlobalConfig{}, false, fmt.Errorf("ceiling rate: %w", err)
	}
	return models.GlobalConfig{CeilingRate: fixedpoint.Rate(r)}, true, nil
}

func (s *Store) SaveConfig(ctx context.Context, cfg models.GlobalConfig) error {
	const query = `INSERT INTO ledger_config (id, ceiling_rate) VALUES (1, $1)
	ON CONFLICT (id) DO UPDATE SET ceiling_rate = EXCLUDED.ceiling_rate`

	_, err := s.db.ExecContext(ctx, query, strconv.FormatUint(uint64(cfg.CeilingRate), 10))
	return err
}

// MarkConsumed inserts the message ID; the conflict target makes the
// check-and-set a single atomic statement.
func (s *Store) MarkConsumed(ctx context.Context, messageID string) (bool, error) {
	const query = `INSERT INTO consumed_messages (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`

	res, err := s.db.ExecContext(ctx, query, messageID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

var (
	_ interfaces.AccountStore = (*Store)(nil)
	_ interfaces.ConfigStore  = (*Store)(nil)
	_ interfaces.ReplayStore  = (*Store)(nil)
)

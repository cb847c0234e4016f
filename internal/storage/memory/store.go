// Package memory is the in-process storage backend, used by tests and
// single-node runs.
package memory

import (
	"context"
	"sync"

	"github.com/openyield/yieldbridge/internal/interfaces"
	"github.com/openyield/yieldbridge/internal/models"
)

type Store struct {
	mu        sync.RWMutex
	accounts  map[string]models.Account
	config    models.GlobalConfig
	hasConfig bool
	consumed  map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]models.Account),
		consumed: make(map[string]struct{}),
	}
}

func (s *Store) Get(ctx context.Context, id string) (models.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	return acct, ok, nil
}

// Save stores all accounts under one lock acquisition, so a multi-account
// write is observed either entirely or not at all.
func (s *Store) Save(ctx context.Context, accounts ...models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acct := range accounts {
		s.accounts[acct.ID] = acct
	}
	return nil
}

func (s *Store) LoadConfig(ctx context.Context) (models.GlobalConfig, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.config, s.hasConfig, nil
}

func (s *Store) SaveConfig(ctx context.Context, cfg models.GlobalConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = cfg
	s.hasConfig = true
	return nil
}

func (s *Store) MarkConsumed(ctx context.Context, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seen := s.consumed[messageID]; seen {
		return false, nil
	}
	s.consumed[messageID] = struct{}{}
	return true, nil
}

var (
	_ interfaces.AccountStore = (*Store)(nil)
	_ interfaces.ConfigStore  = (*Store)(nil)
	_ interfaces.ReplayStore  = (*Store)(nil)
)

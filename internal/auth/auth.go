// Package auth models privileged ledger access as an explicit capability set:
// callers are granted named capabilities and every privileged operation checks
// the grant table it was injected with. There are no roles and no inheritance.
package auth

import (
	"errors"
	"sync"
)

type Capability string

const (
	// CapMintBurn allows creating and destroying ledger balances. Held by
	// the custody component and by bridge endpoints.
	CapMintBurn Capability = "mint_burn"
	// CapSetRate allows ratcheting the global ceiling rate down.
	CapSetRate Capability = "set_rate"
)

// ErrUnauthorized is returned by any privileged operation whose caller lacks
// the required capability.
var ErrUnauthorized = errors.New("caller lacks required capability")

// CapabilitySet is a thread-safe caller -> capabilities grant table.
type CapabilitySet struct {
	mu     sync.RWMutex
	grants map[string]map[Capability]struct{}
}

func NewCapabilitySet() *CapabilitySet {
	return &CapabilitySet{grants: make(map[string]map[Capability]struct{})}
}

func (s *CapabilitySet) Grant(caller string, caps ...Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.grants[caller]
	if !ok {
		set = make(map[Capability]struct{})
		s.grants[caller] = set
	}
	for _, c := range caps {
		set[c] = struct{}{}
	}
}

func (s *CapabilitySet) Revoke(caller string, caps ...Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range caps {
		delete(s.grants[caller], c)
	}
}

func (s *CapabilitySet) Allows(caller string, c Capability) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.grants[caller][c]
	return ok
}

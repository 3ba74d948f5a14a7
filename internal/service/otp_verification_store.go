package service

import (
	"context"
	"sync"
	"time"
)

// ResetGrantStore remembers accounts that proved control of their email with
// a reset_password OTP. A grant is single use and expires after ttl.
type ResetGrantStore struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	grants map[string]time.Time // account id -> expires at
}

func NewResetGrantStore(ttl time.Duration) *ResetGrantStore {
	return &ResetGrantStore{
		ttl:    ttl,
		now:    time.Now,
		grants: make(map[string]time.Time),
	}
}

// Grant marks the account as cleared for a password reset.
func (s *ResetGrantStore) Grant(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[accountID] = s.now().Add(s.ttl)
}

// Active reports whether the account holds a live grant without using it.
func (s *ResetGrantStore) Active(accountID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.grants[accountID]
	return ok && s.now().Before(expiresAt)
}

// Consume reports whether a live grant existed and removes it.
func (s *ResetGrantStore) Consume(accountID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.grants[accountID]
	if !ok {
		return false
	}
	delete(s.grants, accountID)
	return s.now().Before(expiresAt)
}

// Run drops expired grants every interval until ctx is done.
func (s *ResetGrantStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupExpired()
		}
	}
}

func (s *ResetGrantStore) cleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, expiresAt := range s.grants {
		if !now.Before(expiresAt) {
			delete(s.grants, id)
		}
	}
}

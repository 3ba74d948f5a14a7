package repository

import (
	"context"
	"sync"
	"time"

	"auth-service/internal/domain"
)

// MemoryStore keeps accounts and OTP records in process memory. Nothing
// survives a restart. Both tables are ordered slices scanned linearly.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts []*domain.Account
	otps     []*domain.OTPRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Accounts exposes the store as an AccountRepository.
func (s *MemoryStore) Accounts() AccountRepository { return memoryAccounts{s} }

// OTPs exposes the store as an OTPRepository.
func (s *MemoryStore) OTPs() OTPRepository { return memoryOTPs{s} }

type memoryAccounts struct{ s *MemoryStore }

func (r memoryAccounts) Create(_ context.Context, a *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.accounts {
		if existing.Email == a.Email {
			return domain.ErrAlreadyExists
		}
	}
	cp := *a
	r.s.accounts = append(r.s.accounts, &cp)
	return nil
}

func (r memoryAccounts) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memoryAccounts) FindByID(_ context.Context, id string) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.accounts {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memoryAccounts) Update(_ context.Context, a *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i, existing := range r.s.accounts {
		if existing.ID == a.ID {
			cp := *a
			r.s.accounts[i] = &cp
			return nil
		}
	}
	return domain.ErrNotFound
}

type memoryOTPs struct{ s *MemoryStore }

func (r memoryOTPs) Create(_ context.Context, o *domain.OTPRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *o
	r.s.otps = append(r.s.otps, &cp)
	return nil
}

func (r memoryOTPs) FindByOwner(_ context.Context, entityID string, entityType domain.EntityType, purpose domain.Purpose) ([]*domain.OTPRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*domain.OTPRecord
	for _, o := range r.s.otps {
		if o.EntityID == entityID && o.EntityType == entityType && o.Purpose == purpose {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memoryOTPs) Update(_ context.Context, o *domain.OTPRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i, existing := range r.s.otps {
		if existing.ID == o.ID {
			cp := *o
			r.s.otps[i] = &cp
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r memoryOTPs) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i, o := range r.s.otps {
		if o.ID == id {
			r.s.otps = append(r.s.otps[:i], r.s.otps[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r memoryOTPs) DeleteByOwner(_ context.Context, entityID string, entityType domain.EntityType, purpose domain.Purpose) (int64, error) {
	return r.s.deleteWhere(func(o *domain.OTPRecord) bool {
		return o.EntityID == entityID && o.EntityType == entityType && o.Purpose == purpose
	}), nil
}

func (r memoryOTPs) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return r.s.deleteWhere(func(o *domain.OTPRecord) bool {
		return o.Expired(now)
	}), nil
}

func (s *MemoryStore) deleteWhere(match func(*domain.OTPRecord) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.otps[:0]
	var removed int64
	for _, o := range s.otps {
		if match(o) {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	// drop dangling pointers past the new length
	for i := len(kept); i < len(s.otps); i++ {
		s.otps[i] = nil
	}
	s.otps = kept
	return removed
}

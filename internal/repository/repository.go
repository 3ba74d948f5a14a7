package repository

import (
	"context"
	"time"

	"auth-service/internal/domain"
)

// AccountRepository stores accounts. Lookups return domain.ErrNotFound when
// nothing matches and Create returns domain.ErrAlreadyExists on a duplicate email.
type AccountRepository interface {
	Create(ctx context.Context, a *domain.Account) error
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id string) (*domain.Account, error)
	Update(ctx context.Context, a *domain.Account) error
}

// OTPRepository stores issued OTP records. FindByOwner returns records in
// the order they were created.
type OTPRepository interface {
	Create(ctx context.Context, o *domain.OTPRecord) error
	FindByOwner(ctx context.Context, entityID string, entityType domain.EntityType, purpose domain.Purpose) ([]*domain.OTPRecord, error)
	Update(ctx context.Context, o *domain.OTPRecord) error
	Delete(ctx context.Context, id string) error
	DeleteByOwner(ctx context.Context, entityID string, entityType domain.EntityType, purpose domain.Purpose) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

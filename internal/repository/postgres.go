package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auth-service/internal/domain"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists accounts and OTP records in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Accounts() AccountRepository { return pgAccounts{s.db} }

func (s *PostgresStore) OTPs() OTPRepository { return pgOTPs{s.db} }

type pgAccounts struct{ db *pgxpool.Pool }

func (r pgAccounts) Create(ctx context.Context, a *domain.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (id, full_name, email, password_hash, is_verified, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, a.ID, a.FullName, a.Email, a.PasswordHash, a.IsVerified, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r pgAccounts) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, `WHERE email=$1`, email)
}

func (r pgAccounts) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.findOne(ctx, `WHERE id=$1`, id)
}

func (r pgAccounts) findOne(ctx context.Context, where string, arg any) (*domain.Account, error) {
	var a domain.Account
	err := r.db.QueryRow(ctx, `
		SELECT id, full_name, email, password_hash, is_verified, created_at, updated_at
		FROM accounts `+where, arg).
		Scan(&a.ID, &a.FullName, &a.Email, &a.PasswordHash, &a.IsVerified, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select account: %w", err)
	}
	return &a, nil
}

func (r pgAccounts) Update(ctx context.Context, a *domain.Account) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET full_name=$2, email=$3, password_hash=$4, is_verified=$5, updated_at=$6
		WHERE id=$1
	`, a.ID, a.FullName, a.Email, a.PasswordHash, a.IsVerified, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type pgOTPs struct{ db *pgxpool.Pool }

func (r pgOTPs) Create(ctx context.Context, o *domain.OTPRecord) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO otp_records (id, entity_id, entity_type, code, purpose, expires_at, attempts, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, o.ID, o.EntityID, string(o.EntityType), o.Code, string(o.Purpose), o.ExpiresAt, o.Attempts, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert otp: %w", err)
	}
	return nil
}

func (r pgOTPs) FindByOwner(ctx context.Context, entityID string, entityType domain.EntityType, purpose domain.Purpose) ([]*domain.OTPRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, entity_id, entity_type, code, purpose, expires_at, attempts, created_at
		FROM otp_records
		WHERE entity_id=$1 AND entity_type=$2 AND purpose=$3
		ORDER BY seq ASC
	`, entityID, string(entityType), string(purpose))
	if err != nil {
		return nil, fmt.Errorf("select otps: %w", err)
	}
	defer rows.Close()

	var out []*domain.OTPRecord
	for rows.Next() {
		var (
			o           domain.OTPRecord
			eType, purp string
		)
		if err := rows.Scan(&o.ID, &o.EntityID, &eType, &o.Code, &purp, &o.ExpiresAt, &o.Attempts, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan otp: %w", err)
		}
		o.EntityType = domain.EntityType(eType)
		o.Purpose = domain.Purpose(purp)
		out = append(out, &o)
	}
	return out, rows.Err()
}

func (r pgOTPs) Update(ctx context.Context, o *domain.OTPRecord) error {
	tag, err := r.db.Exec(ctx, `UPDATE otp_records SET attempts=$2, expires_at=$3 WHERE id=$1`,
		o.ID, o.Attempts, o.ExpiresAt)
	if err != nil {
		return fmt.Errorf("update otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r pgOTPs) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM otp_records WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r pgOTPs) DeleteByOwner(ctx context.Context, entityID string, entityType domain.EntityType, purpose domain.Purpose) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM otp_records WHERE entity_id=$1 AND entity_type=$2 AND purpose=$3
	`, entityID, string(entityType), string(purpose))
	if err != nil {
		return 0, fmt.Errorf("delete otps: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r pgOTPs) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM otp_records WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired otps: %w", err)
	}
	return tag.RowsAffected(), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

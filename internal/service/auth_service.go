package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
	"time"

	"auth-service/internal/domain"
	"auth-service/internal/rate"
	"auth-service/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultOTPTTL      = 10 * time.Minute
	DefaultMaxAttempts = 5
)

// LoginResult - credentials accepted, login OTP issued
type LoginResult struct {
	AccountID string
	Email     string
}

// RegisterResult - account created unverified, register OTP issued
type RegisterResult struct {
	AccountID string
}

// VerifyResult - OTP consumed, session token minted
type VerifyResult struct {
	AccountID string
	Purpose   domain.Purpose
	Token     string
	ExpiresAt time.Time
}

// ForgotPasswordResult - reset OTP issued
type ForgotPasswordResult struct {
	AccountID string
}

// ResetPasswordResult - password replaced
type ResetPasswordResult struct {
	Success bool
}

// AuthService runs the account and OTP flows against injected repositories.
// Every operation waits for the configured latency, then performs its
// read-modify-write under a single lock.
type AuthService struct {
	mu       sync.Mutex
	accounts repository.AccountRepository
	otps     repository.OTPRepository
	tokens   TokenIssuer
	logger   *zap.Logger

	codes     CodeGenerator
	hasher    PasswordHasher
	notifier  Notifier
	limiter   rate.Limiter
	mirror    IdentityMirror
	now       func() time.Time
	ttl       time.Duration
	attempts  int
	latency   time.Duration
	supersede bool
}

// Option configures an AuthService.
type Option func(*AuthService)

func WithCodeGenerator(g CodeGenerator) Option { return func(s *AuthService) { s.codes = g } }
func WithPasswordHasher(h PasswordHasher) Option { return func(s *AuthService) { s.hasher = h } }
func WithNotifier(n Notifier) Option { return func(s *AuthService) { s.notifier = n } }
func WithLimiter(l rate.Limiter) Option { return func(s *AuthService) { s.limiter = l } }
func WithIdentityMirror(m IdentityMirror) Option { return func(s *AuthService) { s.mirror = m } }
func WithClock(now func() time.Time) Option { return func(s *AuthService) { s.now = now } }
func WithOTPTTL(ttl time.Duration) Option { return func(s *AuthService) { s.ttl = ttl } }
func WithMaxAttempts(n int) Option { return func(s *AuthService) { s.attempts = n } }
func WithLatency(d time.Duration) Option { return func(s *AuthService) { s.latency = d } }

// WithSupersedeOnReissue makes every newly issued OTP invalidate the
// account's earlier records for the same purpose.
func WithSupersedeOnReissue(on bool) Option { return func(s *AuthService) { s.supersede = on } }

func NewAuthService(
	accounts repository.AccountRepository,
	otps repository.OTPRepository,
	tokens TokenIssuer,
	logger *zap.Logger,
	opts ...Option,
) *AuthService {
	s := &AuthService{
		accounts: accounts,
		otps:     otps,
		tokens:   tokens,
		logger:   logger,
		codes:    RandomCode{Length: 6},
		hasher:   BcryptHasher{},
		now:      time.Now,
		ttl:      DefaultOTPTTL,
		attempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = NewLogNotifier(logger)
	}
	return s
}

// Login checks credentials and sends a login OTP.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		s.mu.Unlock()
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("find account: %w", err)
	}

	ok, err := s.hasher.Compare(account.PasswordHash, password)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrInvalidCredentials
	}
	if !account.IsVerified {
		s.mu.Unlock()
		return nil, domain.ErrNotVerified
	}

	otp, err := s.issueOTP(ctx, account.ID, domain.PurposeLogin)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, account, otp)
	return &LoginResult{AccountID: account.ID, Email: account.Email}, nil
}

// Register creates an unverified account and sends a register OTP.
func (s *AuthService) Register(ctx context.Context, fullName, email, password string) (*RegisterResult, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, err = s.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		s.mu.Unlock()
		return nil, domain.ErrAlreadyExists
	case !errors.Is(err, domain.ErrNotFound):
		s.mu.Unlock()
		return nil, fmt.Errorf("find account: %w", err)
	}

	now := s.now()
	account := &domain.Account{
		ID:           uuid.NewString(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		s.mu.Unlock()
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	otp, err := s.issueOTP(ctx, account.ID, domain.PurposeRegister)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.logger.Info("account registered", zap.String("account_id", account.ID))
	s.deliver(ctx, account, otp)
	return &RegisterResult{AccountID: account.ID}, nil
}

// VerifyOTP consumes a code issued to the account for purpose and returns a
// session token. A wrong code still counts against the most recent record,
// so repeated guessing ends in ErrTooManyAttempts.
func (s *AuthService) VerifyOTP(ctx context.Context, accountID, code string, purpose domain.Purpose) (*VerifyResult, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	account, err := s.verifyLocked(ctx, accountID, code, purpose)
	s.mu.Unlock()
	if err != nil {
		s.logger.Info("OTP verification failed",
			zap.String("account_id", accountID),
			zap.String("purpose", string(purpose)),
			zap.Error(err))
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(account.ID, purpose)
	if err != nil {
		return nil, err
	}

	if purpose == domain.PurposeRegister && s.mirror != nil {
		if err := s.mirror.Provision(ctx, account); err != nil {
			s.logger.Warn("identity mirror failed", zap.String("account_id", account.ID), zap.Error(err))
		}
	}

	s.logger.Info("OTP verified", zap.String("account_id", account.ID), zap.String("purpose", string(purpose)))
	return &VerifyResult{AccountID: account.ID, Purpose: purpose, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) verifyLocked(ctx context.Context, accountID, code string, purpose domain.Purpose) (*domain.Account, error) {
	records, err := s.otps.FindByOwner(ctx, accountID, domain.EntityAccount, purpose)
	if err != nil {
		return nil, fmt.Errorf("find otp: %w", err)
	}
	if len(records) == 0 {
		return nil, domain.ErrInvalidOTP
	}

	target, matched := records[len(records)-1], false
	for _, rec := range records {
		if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) == 1 {
			target, matched = rec, true
			break
		}
	}

	if target.Expired(s.now()) {
		// a wrong code must not reveal that an expired record exists
		if !matched {
			return nil, domain.ErrInvalidOTP
		}
		return nil, domain.ErrOTPExpired
	}

	target.Attempts++
	if err := s.otps.Update(ctx, target); err != nil {
		return nil, fmt.Errorf("update otp: %w", err)
	}
	if target.Attempts > s.attempts {
		return nil, domain.ErrTooManyAttempts
	}
	if !matched {
		return nil, domain.ErrInvalidOTP
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	if purpose == domain.PurposeRegister && !account.IsVerified {
		account.IsVerified = true
		account.UpdatedAt = s.now()
		if err := s.accounts.Update(ctx, account); err != nil {
			return nil, fmt.Errorf("update account: %w", err)
		}
	}

	if err := s.otps.Delete(ctx, target.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("delete otp: %w", err)
	}
	return account, nil
}

// ForgotPassword sends a reset_password OTP to the account with email.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*ForgotPasswordResult, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		s.mu.Unlock()
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("find account: %w", err)
	}

	otp, err := s.issueOTP(ctx, account.ID, domain.PurposeResetPassword)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, account, otp)
	return &ForgotPasswordResult{AccountID: account.ID}, nil
}

// ResetPassword replaces the password and drops every reset_password record
// of the account, consumed or not.
func (s *AuthService) ResetPassword(ctx context.Context, accountID, newPassword string) (*ResetPasswordResult, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, err := s.accounts.FindByID(ctx, accountID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	account.PasswordHash = hash
	account.UpdatedAt = s.now()
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	removed, err := s.otps.DeleteByOwner(ctx, account.ID, domain.EntityAccount, domain.PurposeResetPassword)
	if err != nil {
		return nil, fmt.Errorf("delete reset otps: %w", err)
	}

	s.logger.Info("password reset", zap.String("account_id", account.ID), zap.Int64("otps_removed", removed))
	return &ResetPasswordResult{Success: true}, nil
}

// ResendOTP issues a fresh code for a flow in progress, subject to the
// rate limiter.
func (s *AuthService) ResendOTP(ctx context.Context, accountID string, purpose domain.Purpose) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	if !purpose.Valid() {
		return domain.ErrInvalidPurpose
	}

	account, err := s.Account(ctx, accountID)
	if err != nil {
		return err
	}

	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, account.ID, string(purpose)); err != nil {
			return err
		}
	}

	s.mu.Lock()
	otp, err := s.issueOTP(ctx, account.ID, purpose)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.deliver(ctx, account, otp)
	return nil
}

// Account looks up an account by id.
func (s *AuthService) Account(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	return account, nil
}

// Authenticate resolves a session token to its account.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Account, *Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, nil, err
	}
	account, err := s.Account(ctx, claims.Subject)
	if err != nil {
		return nil, nil, err
	}
	return account, claims, nil
}

// PurgeExpiredOTPs removes records past their expiry.
func (s *AuthService) PurgeExpiredOTPs(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.otps.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge expired otps: %w", err)
	}
	return n, nil
}

// issueOTP must be called with s.mu held.
func (s *AuthService) issueOTP(ctx context.Context, accountID string, purpose domain.Purpose) (*domain.OTPRecord, error) {
	if s.supersede {
		if _, err := s.otps.DeleteByOwner(ctx, accountID, domain.EntityAccount, purpose); err != nil {
			return nil, fmt.Errorf("supersede otps: %w", err)
		}
	}

	code, err := s.codes.Generate()
	if err != nil {
		return nil, err
	}

	now := s.now()
	otp := &domain.OTPRecord{
		ID:         uuid.NewString(),
		EntityID:   accountID,
		EntityType: domain.EntityAccount,
		Code:       code,
		Purpose:    purpose,
		ExpiresAt:  now.Add(s.ttl),
		CreatedAt:  now,
	}
	if err := s.otps.Create(ctx, otp); err != nil {
		return nil, fmt.Errorf("create otp: %w", err)
	}
	return otp, nil
}

// deliver sends the code out of band. Failures are logged only: the OTP is
// already stored and the caller can request a resend.
func (s *AuthService) deliver(ctx context.Context, account *domain.Account, otp *domain.OTPRecord) {
	err := s.notifier.SendOTP(ctx, Delivery{
		AccountID: account.ID,
		Email:     account.Email,
		FullName:  account.FullName,
		Purpose:   otp.Purpose,
		Code:      otp.Code,
		ExpiresAt: otp.ExpiresAt,
	})
	if err != nil {
		s.logger.Warn("OTP delivery failed",
			zap.String("account_id", account.ID),
			zap.String("purpose", string(otp.Purpose)),
			zap.Error(err))
	}
}

// wait simulates the round trip to a remote API.
func (s *AuthService) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

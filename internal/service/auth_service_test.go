package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auth-service/internal/domain"
	"auth-service/internal/rate"
	"auth-service/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testCode = "123456"

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu         sync.Mutex
	deliveries []Delivery
	err        error
}

func (n *recordingNotifier) SendOTP(_ context.Context, d Delivery) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveries = append(n.deliveries, d)
	return n.err
}

func (n *recordingNotifier) last() Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.deliveries[len(n.deliveries)-1]
}

type fakeMirror struct {
	provisioned []string
	err         error
}

func (m *fakeMirror) Provision(_ context.Context, a *domain.Account) error {
	m.provisioned = append(m.provisioned, a.ID)
	return m.err
}

type fixture struct {
	svc      *AuthService
	store    *repository.MemoryStore
	clock    *clock
	notifier *recordingNotifier
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    repository.NewMemoryStore(),
		clock:    &clock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
	}
	tokens := NewJWTIssuer("test-secret", "auth-service", time.Hour)
	tokens.now = f.clock.now

	base := []Option{
		WithCodeGenerator(StaticCode(testCode)),
		WithPasswordHasher(BcryptHasher{Cost: bcrypt.MinCost}),
		WithNotifier(f.notifier),
		WithClock(f.clock.now),
	}
	f.svc = NewAuthService(f.store.Accounts(), f.store.OTPs(), tokens, zap.NewNop(), append(base, opts...)...)
	return f
}

func (f *fixture) registerVerified(t *testing.T, name, email, password string) string {
	t.Helper()
	ctx := context.Background()
	reg, err := f.svc.Register(ctx, name, email, password)
	require.NoError(t, err)
	_, err = f.svc.VerifyOTP(ctx, reg.AccountID, testCode, domain.PurposeRegister)
	require.NoError(t, err)
	return reg.AccountID
}

func (f *fixture) otpCount(t *testing.T, accountID string, purpose domain.Purpose) int {
	t.Helper()
	recs, err := f.store.OTPs().FindByOwner(context.Background(), accountID, domain.EntityAccount, purpose)
	require.NoError(t, err)
	return len(recs)
}

func TestRegisterThenVerify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reg, err := f.svc.Register(ctx, "Ada", "ada@x.com", "pw123456")
	require.NoError(t, err)
	require.NotEmpty(t, reg.AccountID)

	acc, err := f.svc.Account(ctx, reg.AccountID)
	require.NoError(t, err)
	assert.False(t, acc.IsVerified)
	assert.NotEqual(t, "pw123456", acc.PasswordHash)

	d := f.notifier.last()
	assert.Equal(t, domain.PurposeRegister, d.Purpose)
	assert.Equal(t, testCode, d.Code)
	assert.Equal(t, "ada@x.com", d.Email)
	assert.Equal(t, f.clock.now().Add(DefaultOTPTTL), d.ExpiresAt)

	res, err := f.svc.VerifyOTP(ctx, reg.AccountID, testCode, domain.PurposeRegister)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	acc, err = f.svc.Account(ctx, reg.AccountID)
	require.NoError(t, err)
	assert.True(t, acc.IsVerified)
	assert.Zero(t, f.otpCount(t, reg.AccountID, domain.PurposeRegister), "consumed record must be deleted")

	// the token resolves back to the account
	authed, claims, err := f.svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.AccountID, authed.ID)
	assert.Equal(t, domain.PurposeRegister, claims.Purpose)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Register(ctx, "Ada", "ada@x.com", "pw123456")
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "Ada Again", "ada@x.com", "other-password")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestLoginFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reg, err := f.svc.Register(ctx, "Ada", "ada@x.com", "pw123456")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "ada@x.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "nobody@x.com", "pw123456")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "ada@x.com", "pw123456")
	assert.ErrorIs(t, err, domain.ErrNotVerified)

	_, err = f.svc.VerifyOTP(ctx, reg.AccountID, testCode, domain.PurposeRegister)
	require.NoError(t, err)

	login, err := f.svc.Login(ctx, "ada@x.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, reg.AccountID, login.AccountID)
	assert.Equal(t, "ada@x.com", login.Email)
	assert.Equal(t, 1, f.otpCount(t, reg.AccountID, domain.PurposeLogin))
	assert.Equal(t, domain.PurposeLogin, f.notifier.last().Purpose)

	res, err := f.svc.VerifyOTP(ctx, reg.AccountID, testCode, domain.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, domain.PurposeLogin, res.Purpose)
}

func TestVerifyOTPUnknownCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reg, err := f.svc.Register(ctx, "Ada", "ada@x.com", "pw123456")
	require.NoError(t, err)

	_, err = f.svc.VerifyOTP(ctx, reg.AccountID, "000000", domain.PurposeRegister)
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)

	// no record at all for this purpose
	_, err = f.svc.VerifyOTP(ctx, reg.AccountID, testCode, domain.PurposeLogin)
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)

	_, err = f.svc.VerifyOTP(ctx, "missing", testCode, domain.PurposeRegister)
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
}

func TestVerifyOTPTooManyAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reg, err := f.svc.Register(ctx, "Ada", "ada@x.com", "pw123456")
	require.NoError(t, err)

	for i := 1; i <= DefaultMaxAttempts; i++ {
		_, err = f.svc.VerifyOTP(ctx, reg.AccountID, "999999", domain.PurposeRegister)
		require.ErrorIs(t, err, domain.ErrInvalidOTP, "attempt %d", i)
	}

	_, err = f.svc.VerifyOTP(ctx, reg.AccountID, "999999", domain.PurposeRegister)
	assert.ErrorIs(t, err, domain.ErrTooManyAttempts)

	// the counter never resets, even for the right code
	_, err = f.svc.VerifyOTP(ctx, reg.AccountID, testCode, domain.PurposeRegister)
	assert.ErrorIs(t, err, domain.ErrTooManyAttempts)
}

func TestVerifyOTPExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reg, err := f.svc.Register(ctx, "Ada", "ada@x.com", "pw123456")
	require.NoError(t, err)

	f.clock.advance(DefaultOTPTTL + time.Second)

	_, err = f.svc.VerifyOTP(ctx, reg.AccountID, testCode, domain.PurposeRegister)
	assert.ErrorIs(t, err, domain.ErrOTPExpired)

	recs, err := f.store.OTPs().FindByOwner(ctx, reg.AccountID, domain.EntityAccount, domain.PurposeRegister)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Zero(t, recs[0].Attempts, "expiry is checked before attempts are counted")
}

func TestVerifyOTPWrongCodeAgainstExpiredRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reg, err := f.svc.Register(ctx, "Ada", "ada@x.com", "pw123456")
	require.NoError(t, err)

	f.clock.advance(DefaultOTPTTL + time.Second)

	_, err = f.svc.VerifyOTP(ctx, reg.AccountID, "000000", domain.PurposeRegister)
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
	assert.NotErrorIs(t, err, domain.ErrOTPExpired)

	// the right code still reports expiry
	_, err = f.svc.VerifyOTP(ctx, reg.AccountID, testCode, domain.PurposeRegister)
	assert.ErrorIs(t, err, domain.ErrOTPExpired)
}

func TestVerifyOTPAccountMissing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.store.OTPs().Create(ctx, &domain.OTPRecord{
		ID: "orphan", EntityID: "ghost", EntityType: domain.EntityAccount,
		Code: testCode, Purpose: domain.PurposeLogin, ExpiresAt: f.clock.now().Add(time.Minute),
	}))

	_, err := f.svc.VerifyOTP(ctx, "ghost", testCode, domain.PurposeLogin)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestReissueKeepsEarlierCodesByDefault(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithCodeGenerator(&sequenceCodes{codes: []string{"111111", "222222"}}))

	reg, err := f.svc.Register(ctx, "Ada", "ada@x.com", "pw123456")
	require.NoError(t, err)
	require.NoError(t, f.svc.ResendOTP(ctx, reg.AccountID, domain.PurposeRegister))
	assert.Equal(t, 2, f.otpCount(t, reg.AccountID, domain.PurposeRegister))

	_, err = f.svc.VerifyOTP(ctx, reg.AccountID, "111111", domain.PurposeRegister)
	assert.NoError(t, err)
	assert.Equal(t, 1, f.otpCount(t, reg.AccountID, domain.PurposeRegister))
}

func TestReissueSupersedes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		WithCodeGenerator(&sequenceCodes{codes: []string{"111111", "222222"}}),
		WithSupersedeOnReissue(true),
	)

	reg, err := f.svc.Register(ctx, "Ada", "ada@x.com", "pw123456")
	require.NoError(t, err)
	require.NoError(t, f.svc.ResendOTP(ctx, reg.AccountID, domain.PurposeRegister))
	assert.Equal(t, 1, f.otpCount(t, reg.AccountID, domain.PurposeRegister))

	_, err = f.svc.VerifyOTP(ctx, reg.AccountID, "111111", domain.PurposeRegister)
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
	_, err = f.svc.VerifyOTP(ctx, reg.AccountID, "222222", domain.PurposeRegister)
	assert.NoError(t, err)
}

func TestForgotAndResetPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.registerVerified(t, "Ada", "ada@x.com", "pw123456")

	_, err := f.svc.ForgotPassword(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	forgot, err := f.svc.ForgotPassword(ctx, "ada@x.com")
	require.NoError(t, err)
	assert.Equal(t, id, forgot.AccountID)
	_, err = f.svc.ForgotPassword(ctx, "ada@x.com")
	require.NoError(t, err)
	assert.Equal(t, 2, f.otpCount(t, id, domain.PurposeResetPassword))

	res, err := f.svc.ResetPassword(ctx, id, "new-password")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, f.otpCount(t, id, domain.PurposeResetPassword))

	_, err = f.svc.VerifyOTP(ctx, id, testCode, domain.PurposeResetPassword)
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)

	_, err = f.svc.Login(ctx, "ada@x.com", "pw123456")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "ada@x.com", "new-password")
	assert.NoError(t, err)

	_, err = f.svc.ResetPassword(ctx, "missing", "whatever1")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestResetPasswordKeepsOtherPurposes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.registerVerified(t, "Ada", "ada@x.com", "pw123456")

	_, err := f.svc.Login(ctx, "ada@x.com", "pw123456")
	require.NoError(t, err)
	_, err = f.svc.ForgotPassword(ctx, "ada@x.com")
	require.NoError(t, err)

	_, err = f.svc.ResetPassword(ctx, id, "new-password")
	require.NoError(t, err)
	assert.Equal(t, 1, f.otpCount(t, id, domain.PurposeLogin))
}

func TestResendOTP(t *testing.T) {
	ctx := context.Background()
	limiter := rate.NewMemoryLimiter(rate.Policy{Window: time.Minute, MaxInWindow: 5, Cooldown: 30 * time.Second}, nil)
	f := newFixture(t, WithLimiter(limiter))

	reg, err := f.svc.Register(ctx, "Ada", "ada@x.com", "pw123456")
	require.NoError(t, err)

	require.NoError(t, f.svc.ResendOTP(ctx, reg.AccountID, domain.PurposeRegister))
	assert.ErrorIs(t, f.svc.ResendOTP(ctx, reg.AccountID, domain.PurposeRegister), rate.ErrTooSoon)

	assert.ErrorIs(t, f.svc.ResendOTP(ctx, "missing", domain.PurposeRegister), domain.ErrAccountNotFound)
	assert.ErrorIs(t, f.svc.ResendOTP(ctx, reg.AccountID, "signup"), domain.ErrInvalidPurpose)
}

func TestDeliveryFailureDoesNotFailOperation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")

	reg, err := f.svc.Register(ctx, "Ada", "ada@x.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, 1, f.otpCount(t, reg.AccountID, domain.PurposeRegister))
}

func TestIdentityMirrorOnRegisterVerification(t *testing.T) {
	ctx := context.Background()
	mirror := &fakeMirror{err: errors.New("zitadel unavailable")}
	f := newFixture(t, WithIdentityMirror(mirror))

	id := f.registerVerified(t, "Ada", "ada@x.com", "pw123456")
	assert.Equal(t, []string{id}, mirror.provisioned)

	_, err := f.svc.Login(ctx, "ada@x.com", "pw123456")
	require.NoError(t, err)
	_, err = f.svc.VerifyOTP(ctx, id, testCode, domain.PurposeLogin)
	require.NoError(t, err)
	assert.Len(t, mirror.provisioned, 1, "only register verification provisions")
}

func TestPurgeExpiredOTPs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	reg, err := f.svc.Register(ctx, "Ada", "ada@x.com", "pw123456")
	require.NoError(t, err)

	n, err := f.svc.PurgeExpiredOTPs(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.advance(DefaultOTPTTL + time.Second)
	n, err = f.svc.PurgeExpiredOTPs(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = f.svc.VerifyOTP(ctx, reg.AccountID, testCode, domain.PurposeRegister)
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
}

func TestLatencyHonoursContext(t *testing.T) {
	f := newFixture(t, WithLatency(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.svc.Register(ctx, "Ada", "ada@x.com", "pw123456")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = f.svc.Account(context.Background(), "anything")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestLatencyDelaysOperations(t *testing.T) {
	f := newFixture(t, WithLatency(30*time.Millisecond))

	start := time.Now()
	_, err := f.svc.ForgotPassword(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

type sequenceCodes struct {
	mu    sync.Mutex
	codes []string
	next  int
}

func (s *sequenceCodes) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := s.codes[s.next%len(s.codes)]
	s.next++
	return code, nil
}

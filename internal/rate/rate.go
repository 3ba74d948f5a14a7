package rate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrTooSoon = errors.New("please wait before requesting another OTP")
	ErrBlocked = errors.New("too many OTP requests; try again later")
)

// Limiter decides whether another OTP may be sent for an account and purpose.
type Limiter interface {
	Allow(ctx context.Context, accountID, purpose string) error
}

// Policy: at most MaxInWindow sends per Window, at least Cooldown apart.
// Exceeding the window blocks the pair for three windows.
type Policy struct {
	Window      time.Duration
	MaxInWindow int
	Cooldown    time.Duration
}

func (p Policy) blockFor() time.Duration {
	return p.Window * 3
}

func tooSoon(wait time.Duration) error {
	return fmt.Errorf("%w: retry in %d seconds", ErrTooSoon, int(wait.Seconds()))
}

func blocked(wait time.Duration) error {
	return fmt.Errorf("%w: retry in %d seconds", ErrBlocked, int(wait.Seconds()))
}

func keys(accountID, purpose string) (block, last, count string) {
	return fmt.Sprintf("otp_rate:block:%s:%s", accountID, purpose),
		fmt.Sprintf("otp_rate:last:%s:%s", accountID, purpose),
		fmt.Sprintf("otp_rate:count:%s:%s", accountID, purpose)
}

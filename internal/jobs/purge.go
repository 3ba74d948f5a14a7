package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const purgeTimeout = 30 * time.Second

// OTPPurger deletes OTP records that are past their expiry.
type OTPPurger interface {
	PurgeExpiredOTPs(ctx context.Context) (int64, error)
}

// PurgeExpiredOTPsJob keeps the OTP table from growing with codes nobody
// will ever verify.
func PurgeExpiredOTPsJob(purger OTPPurger, logger *zap.Logger) Job {
	return NewJob("purge_expired_otps", func(ctx context.Context) error {
		n, err := purger.PurgeExpiredOTPs(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("expired OTP records purged", zap.Int64("count", n))
		}
		return nil
	}, purgeTimeout)
}

package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares limiter state between instances through redis.
type RedisLimiter struct {
	client redis.UniversalClient
	policy Policy
}

func NewRedisLimiter(client redis.UniversalClient, policy Policy) *RedisLimiter {
	return &RedisLimiter{client: client, policy: policy}
}

func (l *RedisLimiter) Allow(ctx context.Context, accountID, purpose string) error {
	blockKey, lastKey, countKey := keys(accountID, purpose)

	pipe := l.client.Pipeline()
	blockTTL := pipe.TTL(ctx, blockKey)
	lastTTL := pipe.TTL(ctx, lastKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("read otp rate state: %w", err)
	}
	if ttl := blockTTL.Val(); ttl > 0 {
		return blocked(ttl)
	}
	if ttl := lastTTL.Val(); ttl > 0 {
		return tooSoon(ttl)
	}

	cnt, err := l.incrWithExpire(ctx, countKey)
	if err != nil {
		return err
	}

	if int(cnt) > l.policy.MaxInWindow {
		if err := l.client.Set(ctx, blockKey, "1", l.policy.blockFor()).Err(); err != nil {
			return fmt.Errorf("set otp rate block: %w", err)
		}
		return blocked(l.policy.blockFor())
	}

	if l.policy.Cooldown > 0 {
		if err := l.client.Set(ctx, lastKey, "1", l.policy.Cooldown).Err(); err != nil {
			return fmt.Errorf("set otp rate cooldown: %w", err)
		}
	}
	return nil
}

// incrWithExpire bumps the window counter and makes sure it carries a TTL.
// A counter found without one (a failed EXPIRE earlier) gets the window
// again, so it can never pin the pair forever.
func (l *RedisLimiter) incrWithExpire(ctx context.Context, key string) (int64, error) {
	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("count otp sends: %w", err)
	}

	if ttl.Val() < 0 {
		if err := l.client.Expire(ctx, key, l.policy.Window).Err(); err != nil {
			return 0, fmt.Errorf("expire otp send counter: %w", err)
		}
	}
	return incr.Val(), nil
}

// Ping checks the connection at startup.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return l.client.Ping(ctx).Err()
}

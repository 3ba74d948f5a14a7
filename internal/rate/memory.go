package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter applies the same policy as RedisLimiter inside one process.
type MemoryLimiter struct {
	mu      sync.Mutex
	policy  Policy
	now     func() time.Time
	expires map[string]time.Time
	counts  map[string]int
}

func NewMemoryLimiter(policy Policy, now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		policy:  policy,
		now:     now,
		expires: make(map[string]time.Time),
		counts:  make(map[string]int),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, accountID, purpose string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	blockKey, lastKey, countKey := keys(accountID, purpose)

	if ttl := l.ttl(blockKey, now); ttl > 0 {
		return blocked(ttl)
	}
	if ttl := l.ttl(lastKey, now); ttl > 0 {
		return tooSoon(ttl)
	}

	if l.ttl(countKey, now) <= 0 {
		l.counts[countKey] = 0
		l.expires[countKey] = now.Add(l.policy.Window)
	}
	l.counts[countKey]++

	if l.counts[countKey] > l.policy.MaxInWindow {
		l.expires[blockKey] = now.Add(l.policy.blockFor())
		return blocked(l.policy.blockFor())
	}

	if l.policy.Cooldown > 0 {
		l.expires[lastKey] = now.Add(l.policy.Cooldown)
	}
	return nil
}

func (l *MemoryLimiter) ttl(key string, now time.Time) time.Duration {
	exp, ok := l.expires[key]
	if !ok {
		return 0
	}
	if !now.Before(exp) {
		delete(l.expires, key)
		delete(l.counts, key)
		return 0
	}
	return exp.Sub(now)
}

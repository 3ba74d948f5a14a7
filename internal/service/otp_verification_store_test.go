package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResetGrantStore(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewResetGrantStore(10 * time.Minute)
	s.now = func() time.Time { return now }

	assert.False(t, s.Consume("acc-1"))

	s.Grant("acc-1")
	assert.True(t, s.Consume("acc-1"))
	assert.False(t, s.Consume("acc-1"), "grants are single use")

	s.Grant("acc-2")
	now = now.Add(11 * time.Minute)
	assert.False(t, s.Consume("acc-2"))
}

func TestResetGrantStoreActiveDoesNotConsume(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewResetGrantStore(10 * time.Minute)
	s.now = func() time.Time { return now }

	assert.False(t, s.Active("acc-1"))

	s.Grant("acc-1")
	assert.True(t, s.Active("acc-1"))
	assert.True(t, s.Active("acc-1"))
	assert.True(t, s.Consume("acc-1"))
	assert.False(t, s.Active("acc-1"))

	s.Grant("acc-2")
	now = now.Add(11 * time.Minute)
	assert.False(t, s.Active("acc-2"))
}

func TestResetGrantStoreCleanup(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewResetGrantStore(time.Minute)
	s.now = func() time.Time { return now }

	s.Grant("old")
	now = now.Add(2 * time.Minute)
	s.Grant("fresh")

	s.cleanupExpired()
	assert.NotContains(t, s.grants, "old")
	assert.Contains(t, s.grants, "fresh")
}

func TestResetGrantStoreRunStops(t *testing.T) {
	s := NewResetGrantStore(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

//go:build !integration

package inproc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"streamer-live-bot/internal/domain"
	"streamer-live-bot/internal/domain/ports/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyLockerSerializes(t *testing.T) {
	ctx := context.Background()
	l := NewKeyLocker(time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := l.Lock(ctx, "k", time.Second)
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = l.Unlock(ctx, "k", tok)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, l.locks, "idle keys should be forgotten")
}

func TestKeyLockerBusy(t *testing.T) {
	ctx := context.Background()
	l := NewKeyLocker(20 * time.Millisecond)

	tok, err := l.Lock(ctx, "k", time.Second)
	require.NoError(t, err)

	_, err = l.Lock(ctx, "k", time.Second)
	assert.ErrorIs(t, err, domain.ErrLockBusy)

	_, err = l.Lock(ctx, "other", time.Second)
	assert.NoError(t, err, "different keys are independent")

	require.NoError(t, l.Unlock(ctx, "k", tok))
	_, err = l.Lock(ctx, "k", time.Second)
	assert.NoError(t, err)
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	rl := NewRateLimiter()
	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "u1", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := rl.Allow(ctx, "u1", 3, time.Hour)
	assert.False(t, ok)
	ok, _ = rl.Allow(ctx, "u2", 3, time.Hour)
	assert.True(t, ok, "keys are limited independently")
}

func TestRateLimiterDropsIdleBuckets(t *testing.T) {
	ctx := context.Background()
	rl := NewRateLimiter()
	now := time.Now()
	rl.now = func() time.Time { return now }

	for i := 0; i < 100; i++ {
		_, err := rl.Allow(ctx, fmt.Sprintf("user:%d", i), 3, 10*time.Second)
		require.NoError(t, err)
	}
	ok, _ := rl.Allow(ctx, "busy", 1, time.Hour)
	require.True(t, ok)
	assert.Len(t, rl.limiters, 101)

	now = now.Add(2 * time.Minute)
	ok, _ = rl.Allow(ctx, "fresh", 3, 10*time.Second)
	assert.True(t, ok)
	assert.Len(t, rl.limiters, 2, "idle buckets should be swept")

	ok, _ = rl.Allow(ctx, "busy", 1, time.Hour)
	assert.False(t, ok, "a bucket still inside its window keeps its state")
}

func TestStateStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	require.NoError(t, s.SetState(ctx, 1, &repository.ConversationState{Step: repository.StepAwaitingHandle}))
	got, err := s.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, repository.StepAwaitingHandle, got.Step)

	now = now.Add(2 * time.Minute)
	_, err = s.GetState(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

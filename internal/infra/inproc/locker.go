// Package inproc holds single-process stand-ins for the Redis-backed
// coordination pieces, used when no REDIS_URL is configured.
package inproc

import (
	"context"
	"sync"
	"time"

	"streamer-live-bot/internal/domain"
	"streamer-live-bot/internal/domain/ports/repository"

	"github.com/google/uuid"
)

var _ repository.Locker = (*KeyLocker)(nil)

type keyLock struct {
	ch    chan struct{}
	token string
	refs  int
}

// KeyLocker is a keyed mutex. Waiters give up after maxWait with
// domain.ErrLockBusy. ttl is ignored: a holder always unlocks via defer.
type KeyLocker struct {
	mu      sync.Mutex
	locks   map[string]*keyLock
	maxWait time.Duration
}

func NewKeyLocker(maxWait time.Duration) *KeyLocker {
	if maxWait <= 0 {
		maxWait = 20 * time.Second
	}
	return &KeyLocker{locks: map[string]*keyLock{}, maxWait: maxWait}
}

func (k *KeyLocker) Lock(ctx context.Context, key string, _ time.Duration) (string, error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	timer := time.NewTimer(k.maxWait)
	defer timer.Stop()

	select {
	case l.ch <- struct{}{}:
		token := uuid.NewString()
		k.mu.Lock()
		l.token = token
		k.mu.Unlock()
		return token, nil
	case <-ctx.Done():
		k.release(key, l)
		return "", ctx.Err()
	case <-timer.C:
		k.release(key, l)
		return "", domain.ErrLockBusy
	}
}

func (k *KeyLocker) Unlock(_ context.Context, key, token string) error {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok || l.token != token {
		k.mu.Unlock()
		return nil
	}
	l.token = ""
	k.mu.Unlock()

	<-l.ch
	k.release(key, l)
	return nil
}

// release drops one reference and forgets idle keys.
func (k *KeyLocker) release(key string, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

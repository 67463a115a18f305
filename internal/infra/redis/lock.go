// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"streamer-live-bot/internal/domain"
	"streamer-live-bot/internal/domain/ports/repository"

	"github.com/google/uuid"
)

var _ repository.Locker = (*RedisLocker)(nil)

type RedisLocker struct {
	cli      RedisClient
	retry    time.Duration
	maxWait  time.Duration
	keyspace string
}

// NewLocker returns a locker that polls every 100ms for up to maxWait.
func NewLocker(c RedisClient, maxWait time.Duration) *RedisLocker {
	if maxWait <= 0 {
		maxWait = 20 * time.Second
	}
	return &RedisLocker{cli: c, retry: 100 * time.Millisecond, maxWait: maxWait, keyspace: "lock:"}
}

func (l *RedisLocker) Lock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)
	for {
		ok, err := l.cli.SetNX(ctx, l.keyspace+key, token, ttl)
		if err == nil && ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			if err != nil {
				return "", err
			}
			return "", domain.ErrLockBusy
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.cli.DelIfEquals(ctx, l.keyspace+key, token)
	return err
}

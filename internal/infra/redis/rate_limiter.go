package redis

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RateLimiter is a fixed-window counter. Each window gets its own key, so a
// failed EXPIRE can never pin a user's counter past the next window.
type RateLimiter struct {
	client RedisClient
	now    func() time.Time
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if window <= 0 {
		window = time.Minute
	}
	bucket := windowKey(key, r.now(), window)
	count, err := r.client.Incr(ctx, bucket)
	if err != nil {
		return false, err
	}
	if count == 1 {
		// A bucket without a TTL would never be reclaimed.
		if err := r.client.Expire(ctx, bucket, window); err != nil {
			if derr := r.client.Del(context.WithoutCancel(ctx), bucket); derr != nil {
				err = errors.Join(err, derr)
			}
			return false, fmt.Errorf("expire %s: %w", bucket, err)
		}
	}
	return count <= int64(limit), nil
}

func windowKey(key string, now time.Time, window time.Duration) string {
	return fmt.Sprintf("%s:%d", key, now.UnixNano()/int64(window))
}

// UserCommandKey buckets a user's hits per command ("cb" for button presses).
func UserCommandKey(userID int64, command string) string {
	return fmt.Sprintf("rl:%d:%s", userID, command)
}

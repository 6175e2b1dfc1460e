package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a key may make another request this minute.
type Limiter interface {
	Allow(ctx context.Context, keyID string, limit int) (bool, error)
}

type window struct {
	start time.Time
	count int
}

// WindowLimiter counts requests per key in fixed one-minute windows held in
// memory.
type WindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewWindowLimiter() *WindowLimiter {
	return &WindowLimiter{windows: make(map[string]*window), now: time.Now}
}

func (l *WindowLimiter) Allow(_ context.Context, keyID string, limit int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[keyID]
	if !ok || now.Sub(w.start) >= time.Minute {
		w = &window{start: now}
		l.windows[keyID] = w
	}
	if w.count >= limit {
		return false, nil
	}
	w.count++
	return true, nil
}

// RedisLimiter shares the per-minute counters between gateway replicas.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: "openclaw:rate:", now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, keyID string, limit int) (bool, error) {
	key := fmt.Sprintf("%s%s:%d", l.prefix, keyID, l.now().Unix()/60)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, time.Minute)
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "redis rate limit")
	}
	return incr.Val() <= int64(limit), nil
}

package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func TestWindowLimiter_ResetsAfterMinute(t *testing.T) {
	l := NewWindowLimiter()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow(ctx, "k", 3); !ok {
			t.Fatalf("request %d: expected allowed", i+1)
		}
	}
	if ok, _ := l.Allow(ctx, "k", 3); ok {
		t.Fatalf("expected fourth request refused")
	}
	if ok, _ := l.Allow(ctx, "other", 3); !ok {
		t.Fatalf("expected separate keys to have separate windows")
	}

	now = now.Add(time.Minute)
	if ok, _ := l.Allow(ctx, "k", 3); !ok {
		t.Fatalf("expected new window to allow requests")
	}
}

func TestRedisLimiter(t *testing.T) {
	url := os.Getenv("OPENCLAW_TEST_REDIS_URL")
	if url == "" {
		t.Skip("OPENCLAW_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	l := NewRedisLimiter(client)
	ctx := context.Background()
	id := uuid.NewString()
	for i := 0; i < 2; i++ {
		if ok, err := l.Allow(ctx, id, 2); err != nil || !ok {
			t.Fatalf("request %d: expected allowed, got %v %v", i+1, ok, err)
		}
	}
	if ok, _ := l.Allow(ctx, id, 2); ok {
		t.Fatalf("expected third request refused")
	}
}

package auth

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

func TestPostgresRepository(t *testing.T) {
	url := os.Getenv("OPENCLAW_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("OPENCLAW_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()
	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	repo := NewPostgresRepository(pool)
	key := &APIKey{
		ID:                 uuid.NewString(),
		Hash:               HashKey(uuid.NewString()),
		Name:               "pg",
		Tier:               TierPro,
		CreatedAt:          time.Now().UTC().Truncate(time.Microsecond),
		RateLimitPerMinute: 120,
		MonthlyMinutes:     500,
		Features:           features(Tiers[TierPro].Features),
		Active:             true,
	}
	if err := repo.Create(ctx, key); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.AddUsage(ctx, key.ID, 2.5); err != nil {
		t.Fatalf("add usage: %v", err)
	}

	got, err := repo.GetByHash(ctx, key.Hash)
	if err != nil {
		t.Fatalf("get by hash: %v", err)
	}
	if got.ID != key.ID || got.Tier != TierPro || got.MinutesUsed != 2.5 || !got.Features[FeatureVoiceCloning] {
		t.Fatalf("unexpected key %+v", got)
	}

	if err := repo.Revoke(ctx, key.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	got, _ = repo.GetByID(ctx, key.ID)
	if got.Active {
		t.Fatalf("expected revoked key inactive")
	}
	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

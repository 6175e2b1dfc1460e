package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func newTestManager(t *testing.T, master string) *Manager {
	t.Helper()
	return NewManager(NewMemoryRepository(), NewWindowLimiter(), Options{MasterKey: master, TokenSecret: "test-secret"})
}

func TestManager_CreateAndValidate(t *testing.T) {
	m := newTestManager(t, "")
	ctx := context.Background()

	plaintext, key, err := m.CreateKey(ctx, "test-app", TierFree)
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if !strings.HasPrefix(plaintext, KeyPrefix) || len(plaintext) <= 40 {
		t.Fatalf("unexpected key format %q", plaintext)
	}
	if key.Name != "test-app" || !key.Active || key.Hash == plaintext {
		t.Fatalf("unexpected key %+v", key)
	}

	got, err := m.Validate(ctx, plaintext)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.ID != key.ID || got.MonthlyMinutes != 60 || got.RateLimitPerMinute != 30 {
		t.Fatalf("unexpected validated key %+v", got)
	}
}

func TestManager_ValidateRejects(t *testing.T) {
	m := newTestManager(t, "")
	for _, in := range []string{"", "invalid", "ocv_invalid"} {
		if _, err := m.Validate(context.Background(), in); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("%q: expected ErrInvalidKey, got %v", in, err)
		}
	}
}

func TestManager_RateLimit(t *testing.T) {
	m := newTestManager(t, "")
	_, key, _ := m.CreateKey(context.Background(), "test", TierFree)
	key.RateLimitPerMinute = 5

	for i := 0; i < 5; i++ {
		if ok, _ := m.CheckRateLimit(context.Background(), key); !ok {
			t.Fatalf("request %d: expected allowed", i+1)
		}
	}
	if ok, _ := m.CheckRateLimit(context.Background(), key); ok {
		t.Fatalf("expected request over the limit to be refused")
	}
}

func TestManager_MonthlyQuota(t *testing.T) {
	m := newTestManager(t, "")
	ctx := context.Background()
	plaintext, key, _ := m.CreateKey(ctx, "test", TierFree)

	if !m.CheckQuota(key, 30) {
		t.Fatalf("expected 30 minutes within quota")
	}
	if m.CheckQuota(key, 61) {
		t.Fatalf("expected 61 minutes over quota")
	}
	if err := m.RecordUsage(ctx, key, 50); err != nil {
		t.Fatalf("record usage: %v", err)
	}
	if key.MinutesUsed != 50 {
		t.Fatalf("expected 50 minutes used, got %v", key.MinutesUsed)
	}
	if m.CheckQuota(key, 11) {
		t.Fatalf("expected quota exhausted")
	}

	stored, _ := m.Validate(ctx, plaintext)
	if stored.MinutesUsed != 50 {
		t.Fatalf("expected usage persisted, got %v", stored.MinutesUsed)
	}
}

func TestManager_EnterpriseUnlimited(t *testing.T) {
	m := newTestManager(t, "")
	_, key, _ := m.CreateKey(context.Background(), "big", TierEnterprise)
	if !m.CheckQuota(key, 10000) {
		t.Fatalf("expected enterprise quota to be unlimited")
	}
	u := m.Usage(key)
	if u.MonthlyMinutes != nil || u.MinutesRemaining != nil {
		t.Fatalf("expected nil limits for unlimited key, got %+v", u)
	}
}

func TestManager_Revoke(t *testing.T) {
	m := newTestManager(t, "")
	ctx := context.Background()
	plaintext, key, _ := m.CreateKey(ctx, "test", TierFree)

	if err := m.Revoke(ctx, key.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := m.Validate(ctx, plaintext); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected revoked key to be invalid, got %v", err)
	}
	if err := m.Revoke(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_Usage(t *testing.T) {
	m := newTestManager(t, "")
	_, key, _ := m.CreateKey(context.Background(), "test", TierPro)
	_ = KeyUsage{Manager: m, Key: key}.RecordUsage(context.Background(), 5.5)

	u := m.Usage(key)
	if u.Name != "test" || u.Tier != TierPro || u.MinutesUsed != 5.5 {
		t.Fatalf("unexpected usage %+v", u)
	}
	if u.MonthlyMinutes == nil || *u.MonthlyMinutes != 500 || *u.MinutesRemaining != 494.5 {
		t.Fatalf("unexpected limits %+v", u)
	}
}

func TestManager_MasterKey(t *testing.T) {
	m := newTestManager(t, "let-me-in")
	ctx := context.Background()

	key, err := m.Validate(ctx, "let-me-in")
	if err != nil {
		t.Fatalf("validate master: %v", err)
	}
	if key.Tier != TierEnterprise || key.RateLimitPerMinute != 1000 || !m.CheckQuota(key, 1e6) {
		t.Fatalf("unexpected master key %+v", key)
	}
	if !m.IsAdmin(ctx, "let-me-in") {
		t.Fatalf("expected master key to be admin")
	}
	if err := m.Revoke(ctx, key.ID); err == nil {
		t.Fatalf("expected master key revoke to fail")
	}

	free, _, _ := m.CreateKey(ctx, "f", TierFree)
	ent, _, _ := m.CreateKey(ctx, "e", TierEnterprise)
	if m.IsAdmin(ctx, free) || !m.IsAdmin(ctx, ent) || m.IsAdmin(ctx, "") {
		t.Fatalf("expected only enterprise keys to be admin")
	}
}

func TestParseTier(t *testing.T) {
	if tier, err := ParseTier(""); err != nil || tier != TierFree {
		t.Fatalf("expected empty tier to default to free, got %v %v", tier, err)
	}
	if tier, _ := ParseTier("Pro"); tier != TierPro {
		t.Fatalf("expected pro, got %v", tier)
	}
	if _, err := ParseTier("platinum"); !errors.Is(err, ErrInvalidTier) {
		t.Fatalf("expected ErrInvalidTier, got %v", err)
	}
}

func TestTiers(t *testing.T) {
	if Tiers[TierFree].PriceUSD != 0 || Tiers[TierFree].MonthlyMinutes != 60 {
		t.Fatalf("unexpected free tier %+v", Tiers[TierFree])
	}
	if Tiers[TierEnterprise].MonthlyMinutes != 0 {
		t.Fatalf("expected enterprise to be unlimited")
	}
}

func TestSessionToken(t *testing.T) {
	m := newTestManager(t, "")
	ctx := context.Background()
	_, key, _ := m.CreateKey(ctx, "browser", TierPro)

	token, expires, err := m.IssueToken(key, 0)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if d := time.Until(expires); d < 14*time.Minute || d > DefaultTokenTTL {
		t.Fatalf("unexpected expiry %v", expires)
	}

	got, err := m.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if got.ID != key.ID {
		t.Fatalf("expected token for %s, got %s", key.ID, got.ID)
	}

	other := NewManager(NewMemoryRepository(), nil, Options{TokenSecret: "other"})
	if _, err := other.ValidateToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected foreign token to be rejected, got %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(time.Hour) }
	if _, err := m.ValidateToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestSessionToken_RevokedKey(t *testing.T) {
	m := newTestManager(t, "")
	ctx := context.Background()
	_, key, _ := m.CreateKey(ctx, "browser", TierFree)
	token, _, _ := m.IssueToken(key, time.Minute)
	_ = m.Revoke(ctx, key.ID)
	if _, err := m.ValidateToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token for revoked key to fail, got %v", err)
	}
}

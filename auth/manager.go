package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/pkg/errors"
)

const masterKeyID = "master"

// Manager ties key storage to rate limiting and quota accounting.
type Manager struct {
	repo    Repository
	limiter Limiter
	secret  []byte
	now     func() time.Time

	masterHash string
	masterMu   sync.Mutex
	master     *APIKey
}

type Options struct {
	// MasterKey, when set, is accepted on every endpoint with enterprise
	// limits and may mint new keys.
	MasterKey string
	// TokenSecret signs session tokens. A random secret is used when empty.
	TokenSecret string
}

func NewManager(repo Repository, limiter Limiter, opts Options) *Manager {
	if repo == nil {
		repo = NewMemoryRepository()
	}
	if limiter == nil {
		limiter = NewWindowLimiter()
	}
	m := &Manager{repo: repo, limiter: limiter, now: time.Now}

	m.secret = []byte(opts.TokenSecret)
	if len(m.secret) == 0 {
		m.secret = make([]byte, 32)
		if _, err := rand.Read(m.secret); err != nil {
			panic(err)
		}
		log.Warn("No token secret configured, session tokens will not survive restarts")
	}

	if opts.MasterKey != "" {
		m.masterHash = HashKey(opts.MasterKey)
		m.master = &APIKey{
			ID:                 masterKeyID,
			Hash:               m.masterHash,
			Name:               "master",
			Tier:               TierEnterprise,
			CreatedAt:          m.now(),
			RateLimitPerMinute: 1000,
			Features:           features(Tiers[TierEnterprise].Features),
			Active:             true,
		}
		log.Info("Master API key loaded")
	}
	return m
}

// CreateKey mints a key for the tier and returns its plaintext once.
func (m *Manager) CreateKey(ctx context.Context, name string, tier Tier) (string, *APIKey, error) {
	limits, ok := Tiers[tier]
	if !ok {
		return "", nil, errors.Wrapf(ErrInvalidTier, "%q", tier)
	}
	plaintext, err := GenerateKey()
	if err != nil {
		return "", nil, err
	}
	id := newKeyID()
	key := &APIKey{
		ID:                 id,
		Hash:               HashKey(plaintext),
		Name:               name,
		Tier:               tier,
		CreatedAt:          m.now().UTC(),
		RateLimitPerMinute: limits.RateLimit,
		MonthlyMinutes:     limits.MonthlyMinutes,
		Features:           features(limits.Features),
		Active:             true,
	}
	if err := m.repo.Create(ctx, key); err != nil {
		return "", nil, err
	}
	log.Infow("Created API key", "key_id", id, "tier", tier)
	return plaintext, key, nil
}

// Validate resolves a plaintext key. Unknown, malformed and revoked keys all
// return ErrInvalidKey.
func (m *Manager) Validate(ctx context.Context, plaintext string) (*APIKey, error) {
	hash := HashKey(plaintext)
	if m.masterHash != "" && subtle.ConstantTimeCompare([]byte(hash), []byte(m.masterHash)) == 1 {
		return m.masterKey(), nil
	}
	if !strings.HasPrefix(plaintext, KeyPrefix) {
		return nil, ErrInvalidKey
	}
	key, err := m.repo.GetByHash(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, err
	}
	if !key.Active {
		return nil, ErrInvalidKey
	}
	return key, nil
}

// ValidateToken resolves the key behind a session token.
func (m *Manager) ValidateToken(ctx context.Context, token string) (*APIKey, error) {
	claims, err := m.parseToken(token)
	if err != nil {
		return nil, err
	}
	if claims.Subject == masterKeyID && m.master != nil {
		return m.masterKey(), nil
	}
	key, err := m.repo.GetByID(ctx, claims.Subject)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !key.Active {
		return nil, ErrInvalidToken
	}
	return key, nil
}

// IsAdmin reports whether the plaintext may mint keys: the master key or any
// enterprise key.
func (m *Manager) IsAdmin(ctx context.Context, plaintext string) bool {
	if plaintext == "" {
		return false
	}
	key, err := m.Validate(ctx, plaintext)
	if err != nil {
		return false
	}
	return key.Tier == TierEnterprise
}

func (m *Manager) masterKey() *APIKey {
	m.masterMu.Lock()
	defer m.masterMu.Unlock()
	return m.master.clone()
}

func (m *Manager) CheckRateLimit(ctx context.Context, key *APIKey) (bool, error) {
	return m.limiter.Allow(ctx, key.ID, key.RateLimitPerMinute)
}

// QuotaExhausted reports whether a limited key has no minutes left.
func (m *Manager) QuotaExhausted(key *APIKey) bool {
	return key.MonthlyMinutes > 0 && key.MinutesUsed >= float64(key.MonthlyMinutes)
}

// CheckQuota reports whether the key can spend the given minutes this month.
func (m *Manager) CheckQuota(key *APIKey, minutes float64) bool {
	if key.MonthlyMinutes == 0 {
		return true
	}
	return key.MinutesUsed+minutes <= float64(key.MonthlyMinutes)
}

func (m *Manager) RecordUsage(ctx context.Context, key *APIKey, minutes float64) error {
	if minutes <= 0 {
		return nil
	}
	if key.ID == masterKeyID && m.master != nil {
		m.masterMu.Lock()
		m.master.MinutesUsed += minutes
		m.masterMu.Unlock()
	} else if err := m.repo.AddUsage(ctx, key.ID, minutes); err != nil {
		return errors.Wrapf(err, "record usage for %s", key.ID)
	}
	key.MinutesUsed += minutes
	return nil
}

func (m *Manager) Revoke(ctx context.Context, id string) error {
	if id == masterKeyID {
		return errors.New("master key cannot be revoked")
	}
	return m.repo.Revoke(ctx, id)
}

type Usage struct {
	KeyID            string          `json:"key_id"`
	Name             string          `json:"name"`
	Tier             Tier            `json:"tier"`
	MinutesUsed      float64         `json:"minutes_used"`
	MonthlyMinutes   *int            `json:"monthly_minutes"`
	MinutesRemaining *float64        `json:"minutes_remaining"`
	RateLimit        int             `json:"rate_limit"`
	Features         map[string]bool `json:"features"`
}

// Usage reports a key's consumption; unlimited keys have nil limits.
func (m *Manager) Usage(key *APIKey) Usage {
	u := Usage{
		KeyID:       key.ID,
		Name:        key.Name,
		Tier:        key.Tier,
		MinutesUsed: math.Round(key.MinutesUsed*100) / 100,
		RateLimit:   key.RateLimitPerMinute,
		Features:    key.Features,
	}
	if key.MonthlyMinutes > 0 {
		limit := key.MonthlyMinutes
		remaining := math.Max(0, float64(limit)-key.MinutesUsed)
		remaining = math.Round(remaining*100) / 100
		u.MonthlyMinutes = &limit
		u.MinutesRemaining = &remaining
	}
	return u
}

// KeyUsage records spoken minutes against one key.
type KeyUsage struct {
	Manager *Manager
	Key     *APIKey
}

func (u KeyUsage) RecordUsage(ctx context.Context, minutes float64) error {
	return u.Manager.RecordUsage(ctx, u.Key, minutes)
}

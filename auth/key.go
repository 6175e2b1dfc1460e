// Package auth issues and checks the API keys voice clients connect with:
// key storage, per-minute rate limits, monthly minute quotas and short-lived
// session tokens for browsers.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const KeyPrefix = "ocv_"

var (
	ErrNotFound     = errors.New("api key not found")
	ErrInvalidKey   = errors.New("invalid api key")
	ErrInvalidTier  = errors.New("invalid tier")
	ErrInvalidToken = errors.New("invalid session token")
)

type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Features a key may unlock.
const (
	FeatureContinuousMode = "continuous_mode"
	FeatureVoiceCloning   = "voice_cloning"
	FeaturePriorityQueue  = "priority_queue"
)

type TierLimits struct {
	// MonthlyMinutes of zero means unlimited.
	MonthlyMinutes int
	RateLimit      int
	PriceUSD       int
	Features       []string
}

var Tiers = map[Tier]TierLimits{
	TierFree: {
		MonthlyMinutes: 60,
		RateLimit:      30,
		Features:       []string{FeatureContinuousMode},
	},
	TierPro: {
		MonthlyMinutes: 500,
		RateLimit:      120,
		PriceUSD:       29,
		Features:       []string{FeatureContinuousMode, FeatureVoiceCloning},
	},
	TierEnterprise: {
		RateLimit: 500,
		PriceUSD:  99,
		Features:  []string{FeatureContinuousMode, FeatureVoiceCloning, FeaturePriorityQueue},
	},
}

// ParseTier defaults an empty name to the free tier.
func ParseTier(name string) (Tier, error) {
	if name == "" {
		return TierFree, nil
	}
	t := Tier(strings.ToLower(name))
	if _, ok := Tiers[t]; !ok {
		return "", errors.Wrapf(ErrInvalidTier, "%q (options: free, pro, enterprise)", name)
	}
	return t, nil
}

// APIKey is a key's stored metadata. The plaintext is never kept.
type APIKey struct {
	ID                 string
	Hash               string
	Name               string
	Tier               Tier
	CreatedAt          time.Time
	RateLimitPerMinute int
	MonthlyMinutes     int
	MinutesUsed        float64
	Features           map[string]bool
	Active             bool
}

func (k *APIKey) clone() *APIKey {
	c := *k
	c.Features = make(map[string]bool, len(k.Features))
	for f, on := range k.Features {
		c.Features[f] = on
	}
	return &c
}

func features(names []string) map[string]bool {
	out := map[string]bool{
		FeatureContinuousMode: false,
		FeatureVoiceCloning:   false,
		FeaturePriorityQueue:  false,
	}
	for _, n := range names {
		out[n] = true
	}
	return out
}

// GenerateKey returns a new plaintext key with the ocv_ prefix.
func GenerateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "read random key")
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

func newKeyID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// HashKey is the storage form of a plaintext key.
func HashKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

package gateway

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/mrsingh-rishi/openclaw-voice/auth"
	"github.com/pkg/errors"
)

type createKeyResponse struct {
	APIKey         string    `json:"api_key"`
	KeyID          string    `json:"key_id"`
	Name           string    `json:"name"`
	Tier           auth.Tier `json:"tier"`
	MonthlyMinutes *int      `json:"monthly_minutes"`
	RateLimit      int       `json:"rate_limit"`
}

// createKey mints a key. With auth required the caller must present the
// master key or an enterprise key.
func (s *Server) createKey(c *fiber.Ctx) error {
	name := c.Query("name")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "`name` is required"})
	}
	if s.cfg.RequireAuth {
		master := c.Get("x-master-key", c.Query("master_key"))
		if master == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Master key required"})
		}
		if !s.cfg.Auth.IsAdmin(c.UserContext(), master) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Invalid master key"})
		}
	}

	tier, err := auth.ParseTier(c.Query("tier"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	plaintext, key, err := s.cfg.Auth.CreateKey(c.UserContext(), name, tier)
	if err != nil {
		log.Errorf("Create key: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create key"})
	}

	resp := createKeyResponse{
		APIKey:    plaintext,
		KeyID:     key.ID,
		Name:      key.Name,
		Tier:      key.Tier,
		RateLimit: key.RateLimitPerMinute,
	}
	if key.MonthlyMinutes > 0 {
		resp.MonthlyMinutes = &key.MonthlyMinutes
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (s *Server) usage(c *fiber.Ctx) error {
	key, err := s.cfg.Auth.Validate(c.UserContext(), requestKey(c))
	if err != nil {
		return keyError(c, err)
	}
	return c.JSON(s.cfg.Auth.Usage(key))
}

func (s *Server) sessionToken(c *fiber.Ctx) error {
	key, err := s.cfg.Auth.Validate(c.UserContext(), requestKey(c))
	if err != nil {
		return keyError(c, err)
	}
	token, expires, err := s.cfg.Auth.IssueToken(key, auth.DefaultTokenTTL)
	if err != nil {
		log.Errorf("Issue session token: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to issue token"})
	}
	return c.JSON(fiber.Map{
		"token":      token,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

func requestKey(c *fiber.Ctx) string {
	return c.Query("api_key", c.Get("x-api-key"))
}

func keyError(c *fiber.Ctx, err error) error {
	if errors.Is(err, auth.ErrInvalidKey) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid API key"})
	}
	log.Errorf("Validate key: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "key lookup failed"})
}

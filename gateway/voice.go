package gateway

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/mrsingh-rishi/openclaw-voice/auth"
	"github.com/mrsingh-rishi/openclaw-voice/pipeline"
	"github.com/pkg/errors"
)

// Close codes sent when a voice socket is refused.
const (
	CloseKeyRequired   = 4001
	CloseInvalidKey    = 4002
	CloseRateLimited   = 4003
	CloseQuotaExceeded = 4004
)

type rejection struct {
	code   int
	reason string
	metric string
}

func upgradeOnly(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals("api_key", requestKey(c))
	c.Locals("token", c.Query("token"))
	return c.Next()
}

func (s *Server) serveVoice(conn *websocket.Conn) {
	id := uuid.NewString()[:8]
	defer conn.Close()
	// fasthttp runs hijacked handlers outside fiber's recover middleware
	defer recoverConnection(id)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	apiKey, _ := conn.Locals("api_key").(string)
	token, _ := conn.Locals("token").(string)
	key, rej := s.authenticate(ctx, apiKey, token)
	if rej != nil {
		log.Warnw("Voice connection refused", "conn", id, "reason", rej.reason)
		s.cfg.Metrics.ConnectionRejected(rej.metric)
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(rej.code, rej.reason), deadline)
		return
	}

	cfg := pipeline.Config{
		ID:        id,
		Providers: s.cfg.Providers,
		Backend:   s.cfg.NewBackend(),
		Emitter:   &socketEmitter{conn: conn, timeout: s.writeTimeout()},
		Options:   s.cfg.Options,
		Metrics:   s.cfg.Metrics,
	}
	if key != nil {
		cfg.Usage = auth.KeyUsage{Manager: s.cfg.Auth, Key: key}
		log.Infow("Voice client connected", "conn", id, "key", key.Name, "tier", key.Tier)
	} else {
		log.Infow("Voice client connected", "conn", id, "auth", false)
	}

	s.cfg.Metrics.ConnectionOpened()
	defer s.cfg.Metrics.ConnectionClosed()

	p := pipeline.New(cfg)
	defer p.Close(ctx)
	// recovered before Close so an open realtime session still gets its
	// bounded shutdown
	defer recoverConnection(id)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnw("Voice read failed", "conn", id, "error", err)
			}
			break
		}
		if err := p.Handle(ctx, msg); err != nil {
			log.Warnw("Voice connection ended", "conn", id, "error", err)
			break
		}
	}
	log.Infow("Voice client disconnected", "conn", id)
}

func recoverConnection(id string) {
	if r := recover(); r != nil {
		log.Errorw("Voice connection panicked", "conn", id, "panic", r, "stack", string(debug.Stack()))
	}
}

func (s *Server) writeTimeout() time.Duration {
	if s.cfg.Options.TurnTimeout > 0 {
		return s.cfg.Options.TurnTimeout
	}
	return pipeline.DefaultOptions().TurnTimeout
}

// authenticate resolves the connection's key. Without required auth a
// missing or bad credential falls back to an anonymous connection.
func (s *Server) authenticate(ctx context.Context, apiKey, token string) (*auth.APIKey, *rejection) {
	if apiKey == "" && token == "" {
		if s.cfg.RequireAuth {
			return nil, &rejection{CloseKeyRequired, "API key required", "missing_key"}
		}
		return nil, nil
	}

	var (
		key *auth.APIKey
		err error
	)
	if apiKey != "" {
		key, err = s.cfg.Auth.Validate(ctx, apiKey)
	} else {
		key, err = s.cfg.Auth.ValidateToken(ctx, token)
	}
	if err != nil {
		if !s.cfg.RequireAuth {
			return nil, nil
		}
		if !errors.Is(err, auth.ErrInvalidKey) && !errors.Is(err, auth.ErrInvalidToken) {
			log.Errorf("Key lookup: %v", err)
		}
		return nil, &rejection{CloseInvalidKey, "Invalid API key", "invalid_key"}
	}
	if !s.cfg.RequireAuth {
		return key, nil
	}

	ok, err := s.cfg.Auth.CheckRateLimit(ctx, key)
	if err != nil {
		log.Errorf("Rate limit check: %v", err)
	}
	if err == nil && !ok {
		return nil, &rejection{CloseRateLimited, "Rate limit exceeded", "rate_limited"}
	}
	if s.cfg.Auth.QuotaExhausted(key) {
		return nil, &rejection{CloseQuotaExceeded, "Monthly quota exhausted", "quota_exhausted"}
	}
	return key, nil
}

// socketEmitter writes server messages as JSON text frames. The pipeline
// goroutine is its only writer. A client that stops reading fails the write
// once timeout passes, which ends the connection.
type socketEmitter struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (e *socketEmitter) Send(msg pipeline.ServerMessage) error {
	_ = e.conn.SetWriteDeadline(time.Now().Add(e.timeout))
	if err := e.conn.WriteJSON(msg); err != nil {
		return errors.Wrapf(err, "write %s", msg.Type)
	}
	return nil
}

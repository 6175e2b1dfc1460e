// Package gateway serves the voice websocket endpoint and the key
// management API. Each accepted socket gets its own pipeline.
package gateway

import (
	"context"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/mrsingh-rishi/openclaw-voice/auth"
	"github.com/mrsingh-rishi/openclaw-voice/llm"
	"github.com/mrsingh-rishi/openclaw-voice/metrics"
	"github.com/mrsingh-rishi/openclaw-voice/pipeline"
)

type Config struct {
	Providers pipeline.Providers
	// NewBackend returns the chat backend for one connection. Conversation
	// history lives in it, so it must not be shared.
	NewBackend  func() llm.Backend
	Options     pipeline.Options
	Auth        *auth.Manager
	RequireAuth bool
	Metrics     *metrics.Metrics
	// AccessLog enables the fiber request logger.
	AccessLog bool
}

type Server struct {
	cfg Config
	app *fiber.App
}

func New(cfg Config) *Server {
	if cfg.Auth == nil {
		cfg.Auth = auth.NewManager(nil, nil, auth.Options{})
	}
	if cfg.NewBackend == nil {
		cfg.NewBackend = func() llm.Backend { return llm.NewConversation(llm.EchoProvider{}, "") }
	}

	app := fiber.New(fiber.Config{
		AppName:               "openclaw-voice",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(logger.New())
	}

	s := &Server{cfg: cfg, app: app}

	app.Get("/healthz", s.health)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api")
	api.Post("/keys", s.createKey)
	api.Get("/usage", s.usage)
	api.Post("/session-token", s.sessionToken)

	for _, path := range []string{"/ws", "/voice/ws"} {
		app.Use(path, upgradeOnly)
		app.Get(path, websocket.New(s.serveVoice))
	}
	return s
}

// App exposes the router so other packages can mount their routes.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":       "ok",
		"realtime_asr": s.cfg.Providers.Realtime != nil,
		"require_auth": s.cfg.RequireAuth,
	})
}

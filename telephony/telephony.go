// Package telephony bridges Twilio phone calls into the voice pipeline. It
// places outbound calls, answers with Connect/Stream TwiML and converts the
// media stream between 8 kHz μ-law and the pipeline's PCM.
package telephony

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/websocket/v2"
	"github.com/mrsingh-rishi/openclaw-voice/llm"
	"github.com/mrsingh-rishi/openclaw-voice/metrics"
	"github.com/mrsingh-rishi/openclaw-voice/pipeline"
	twilio "github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"
)

// SampleRate of Twilio media streams.
const SampleRate = 8000

// CallCreator places outbound calls. *openapi.ApiService satisfies it.
type CallCreator interface {
	CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error)
}

type Config struct {
	Calls       CallCreator
	From        string
	PublicURL   string
	PublicWSURL string
	// AuthToken is used to check X-Twilio-Signature when ValidateSignature
	// is set.
	AuthToken         string
	ValidateSignature bool

	Providers       pipeline.Providers
	NewBackend      func() llm.Backend
	Options         pipeline.Options
	EndpointSilence time.Duration
	Metrics         *metrics.Metrics
}

// NewCallCreator returns the Twilio REST API for the account.
func NewCallCreator(accountSID, authToken string) CallCreator {
	c := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return c.Api
}

type handler struct {
	cfg Config
}

// Register mounts /call, /twiml and /stream on the router.
func Register(r fiber.Router, cfg Config) {
	if cfg.PublicWSURL == "" {
		cfg.PublicWSURL = wsURL(cfg.PublicURL)
	}
	if cfg.EndpointSilence <= 0 {
		cfg.EndpointSilence = 700 * time.Millisecond
	}
	if cfg.NewBackend == nil {
		cfg.NewBackend = func() llm.Backend { return llm.NewConversation(llm.EchoProvider{}, "") }
	}
	h := &handler{cfg: cfg}

	r.Post("/call", h.createCall)
	r.Get("/twiml", h.twiml)
	r.Use("/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/stream", websocket.New(h.stream))
}

type callRequest struct {
	To string `json:"to"`
}

type callResponse struct {
	SID     string `json:"sid,omitempty"`
	Message string `json:"message"`
}

func (h *handler) createCall(c *fiber.Ctx) error {
	if h.cfg.Calls == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "telephony not configured"})
	}
	var req callRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.To == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "`to` field is required"})
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(h.cfg.From)
	params.SetUrl(joinURL(h.cfg.PublicURL, "/twiml"))
	params.SetMethod("GET")

	resp, err := h.cfg.Calls.CreateCall(params)
	if err != nil {
		log.Errorf("Twilio error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to create call"})
	}
	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	log.Infow("Call initiated", "sid", sid, "to", req.To)
	return c.JSON(callResponse{SID: sid, Message: "call initiated"})
}

func (h *handler) twiml(c *fiber.Ctx) error {
	if h.cfg.ValidateSignature {
		validator := client.NewRequestValidator(h.cfg.AuthToken)
		url := strings.TrimRight(h.cfg.PublicURL, "/") + c.OriginalURL()
		if !validator.Validate(url, map[string]string{}, c.Get("X-Twilio-Signature")) {
			log.Warnw("Rejected unsigned TwiML request", "url", url)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "invalid signature"})
		}
	}

	callSid := c.Query("CallSid", "")
	if callSid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "CallSid missing"})
	}

	stream := &twiml.VoiceStream{
		Url: joinURL(h.cfg.PublicWSURL, "/stream"),
		InnerElements: []twiml.Element{
			&twiml.VoiceParameter{Name: "CallSid", Value: callSid},
		},
	}
	connect := &twiml.VoiceConnect{InnerElements: []twiml.Element{stream}}
	xml, err := twiml.Voice([]twiml.Element{connect})
	if err != nil {
		log.Errorf("Render TwiML: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to render TwiML"})
	}
	c.Type("xml")
	return c.SendString(xml)
}

func (h *handler) stream(ws *websocket.Conn) {
	defer ws.Close()
	// fasthttp runs hijacked handlers outside fiber's recover middleware
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Media stream handler panicked", "panic", r)
		}
	}()
	call := NewCall(ws, h.cfg)
	if err := call.Run(); err != nil {
		log.Warnw("Media stream ended", "call", call.callSid, "error", err)
	}
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

func markName(n int) string {
	return fmt.Sprintf("response-%d", n)
}

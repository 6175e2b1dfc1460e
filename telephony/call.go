package telephony

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/mrsingh-rishi/openclaw-voice/audio"
	"github.com/mrsingh-rishi/openclaw-voice/llm"
	"github.com/mrsingh-rishi/openclaw-voice/pipeline"
	"github.com/pkg/errors"
)

type twilioEvent struct {
	Event     string `json:"event"` // "connected", "start", "media", "mark", "stop"
	StreamSid string `json:"streamSid"`
	Media     struct {
		Payload string `json:"payload"` // base64 μ-law
	} `json:"media"`
	Start struct {
		CallSid          string            `json:"callSid"`
		StreamSid        string            `json:"streamSid"`
		CustomParameters map[string]string `json:"customParameters"`
	} `json:"start"`
	Mark struct {
		Name string `json:"name"`
	} `json:"mark"`
}

type streamConn interface {
	jsonWriter
	ReadMessage() (int, []byte, error)
}

// Call runs one Twilio media stream. Phones have no stop button, so turns
// are ended by local endpointing.
type Call struct {
	ws       streamConn
	output   *Output
	pipeline *pipeline.Pipeline
	endpoint *endpointer
	rate     int

	callSid string
	started bool
}

func NewCall(ws streamConn, cfg Config) *Call {
	opts := cfg.Options
	opts.OutputSampleRate = SampleRate
	if opts.InputSampleRate <= 0 {
		opts.InputSampleRate = pipeline.DefaultOptions().InputSampleRate
	}
	silence := cfg.EndpointSilence
	if silence <= 0 {
		silence = 700 * time.Millisecond
	}

	backend := llm.Backend(llm.NewConversation(llm.EchoProvider{}, ""))
	if cfg.NewBackend != nil {
		backend = cfg.NewBackend()
	}

	out := NewOutput(ws)
	c := &Call{
		ws:       ws,
		output:   out,
		endpoint: &endpointer{vad: audio.NewEnergyVAD(), silence: silence},
		rate:     opts.InputSampleRate,
	}
	c.pipeline = pipeline.New(pipeline.Config{
		ID:        "call-" + uuid.NewString()[:8],
		Providers: cfg.Providers,
		Backend:   backend,
		Emitter:   out,
		Options:   opts,
		Metrics:   cfg.Metrics,
	})
	return c
}

// Run reads stream events until Twilio stops the stream or the socket
// fails. Only transport failures are returned.
func (c *Call) Run() (err error) {
	ctx := context.Background()
	defer c.pipeline.Close(ctx)
	// a provider panic ends this call only, and runs before Close
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Media stream panicked", "call", c.callSid, "panic", r, "stack", string(debug.Stack()))
			err = errors.Errorf("media stream panicked: %v", r)
		}
	}()

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugw("Media stream closed", "call", c.callSid)
				return nil
			}
			return err
		}

		var ev twilioEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			log.Warnw("Bad media stream event", "error", err)
			continue
		}

		switch ev.Event {
		case "connected":
			log.Debug("Media stream connected")
		case "start":
			c.callSid = ev.Start.CallSid
			if sid := ev.Start.CustomParameters["CallSid"]; c.callSid == "" && sid != "" {
				c.callSid = sid
			}
			log.Infow("Stream started", "call", c.callSid, "stream", ev.Start.StreamSid)
			c.output.SetStreamSid(ev.Start.StreamSid)
			c.started = true
			if err := c.pipeline.StartListening(ctx); err != nil {
				return err
			}
		case "media":
			if !c.started {
				continue
			}
			ulaw, err := base64.StdEncoding.DecodeString(ev.Media.Payload)
			if err != nil {
				log.Warnw("Base64 decode error", "error", err)
				continue
			}
			if err := c.handleMedia(ctx, ulaw); err != nil {
				return err
			}
		case "mark":
			log.Debugw("Playback reached mark", "call", c.callSid, "mark", ev.Mark.Name)
		case "stop":
			log.Infow("Stream stopped", "call", c.callSid)
			return nil
		default:
			log.Debugw("Unknown media stream event", "event", ev.Event)
		}
	}
}

func (c *Call) handleMedia(ctx context.Context, ulaw []byte) error {
	pcm := audio.Resample(audio.MulawToPCM16(ulaw), SampleRate, c.rate)
	samples := audio.PCM16ToFloat32(pcm)
	if err := c.pipeline.AppendAudio(samples); err != nil {
		return err
	}
	if !c.endpoint.push(samples, c.rate) {
		return nil
	}
	if err := c.pipeline.StopListening(ctx); err != nil {
		return err
	}
	return c.pipeline.StartListening(ctx)
}

// endpointer reports the end of a turn once speech has been heard and
// followed by enough silence.
type endpointer struct {
	vad     audio.VAD
	silence time.Duration

	heard bool
	quiet time.Duration
}

func (e *endpointer) push(samples []float32, rate int) bool {
	if len(samples) == 0 || rate <= 0 {
		return false
	}
	if e.vad.IsSpeech(samples) {
		e.heard = true
		e.quiet = 0
		return false
	}
	if !e.heard {
		return false
	}
	e.quiet += time.Duration(len(samples)) * time.Second / time.Duration(rate)
	if e.quiet < e.silence {
		return false
	}
	e.heard = false
	e.quiet = 0
	e.vad.Reset()
	return true
}

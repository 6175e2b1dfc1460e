// Package pipeline runs the voice turn state machine for one connection. It
// buffers microphone audio, resolves a transcript, and streams the spoken
// reply back sentence by sentence.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/mrsingh-rishi/openclaw-voice/audio"
	"github.com/mrsingh-rishi/openclaw-voice/llm"
	"github.com/mrsingh-rishi/openclaw-voice/metrics"
	"github.com/mrsingh-rishi/openclaw-voice/stt"
	"github.com/mrsingh-rishi/openclaw-voice/tts"
	"github.com/pkg/errors"
)

var ErrClosed = errors.New("pipeline closed")

// Providers are the process-wide collaborators. They are built once at
// startup and shared read-only by every connection.
type Providers struct {
	Transcriber stt.Transcriber
	// Realtime is optional; without it every turn is transcribed in batch
	// and local VAD drives vad_status.
	Realtime    stt.SessionFactory
	Synthesizer tts.Synthesizer
	Cleaner     tts.Cleaner
	// NewVAD builds the per-connection detector used when a turn has no
	// realtime session.
	NewVAD func() audio.VAD
}

type Options struct {
	InputSampleRate     int
	OutputSampleRate    int
	EnergyThreshold     float64
	RealtimeStopTimeout time.Duration
	TurnTimeout         time.Duration
	CloseTimeout        time.Duration
}

func DefaultOptions() Options {
	return Options{
		InputSampleRate:     16000,
		OutputSampleRate:    16000,
		EnergyThreshold:     0.008,
		RealtimeStopTimeout: 3 * time.Second,
		TurnTimeout:         45 * time.Second,
		CloseTimeout:        500 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.InputSampleRate <= 0 {
		o.InputSampleRate = d.InputSampleRate
	}
	if o.OutputSampleRate <= 0 {
		o.OutputSampleRate = d.OutputSampleRate
	}
	if o.EnergyThreshold <= 0 {
		o.EnergyThreshold = d.EnergyThreshold
	}
	if o.RealtimeStopTimeout <= 0 {
		o.RealtimeStopTimeout = d.RealtimeStopTimeout
	}
	if o.TurnTimeout <= 0 {
		o.TurnTimeout = d.TurnTimeout
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = d.CloseTimeout
	}
	return o
}

// UsageRecorder is charged with the audio minutes of every finished turn.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, minutes float64) error
}

type Config struct {
	// ID tags log lines; a random one is used when empty.
	ID        string
	Providers Providers
	Backend   llm.Backend
	Emitter   Emitter
	Options   Options
	Usage     UsageRecorder
	Metrics   *metrics.Metrics
}

// Pipeline is not safe for concurrent use. The owning connection feeds it
// client messages one at a time.
type Pipeline struct {
	id        string
	providers Providers
	backend   llm.Backend
	emitter   Emitter
	opts      Options
	usage     UsageRecorder
	metrics   *metrics.Metrics
	vad       audio.VAD

	turn   *Turn
	closed bool
}

func New(cfg Config) *Pipeline {
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()[:8]
	}
	p := &Pipeline{
		id:        id,
		providers: cfg.Providers,
		backend:   cfg.Backend,
		emitter:   cfg.Emitter,
		opts:      cfg.Options.withDefaults(),
		usage:     cfg.Usage,
		metrics:   cfg.Metrics,
		turn:      newTurn(StateIdle),
	}
	if cfg.Providers.NewVAD != nil {
		p.vad = cfg.Providers.NewVAD()
	}
	return p
}

func (p *Pipeline) State() State {
	return p.turn.state
}

// Handle decodes and dispatches one client message. Protocol mistakes are
// answered with an error message; only a failed send is returned.
func (p *Pipeline) Handle(ctx context.Context, raw []byte) error {
	if p.closed {
		return ErrClosed
	}
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warnw("malformed client message", "conn", p.id, "error", err)
		return p.send(ErrorMessage("malformed message: expected a JSON object with a type"))
	}

	switch msg.Type {
	case TypeStartListening:
		return p.StartListening(ctx)
	case TypeAudio:
		samples, err := audio.DecodeFloat32(msg.Data)
		if err != nil {
			log.Warnw("bad audio payload", "conn", p.id, "error", err)
			return p.send(ErrorMessage("invalid audio payload"))
		}
		return p.AppendAudio(samples)
	case TypeStopListening:
		return p.StopListening(ctx)
	case TypePing:
		return p.send(Pong())
	case "":
		return p.send(ErrorMessage("message type missing"))
	default:
		return p.send(ErrorMessage(fmt.Sprintf("unknown message type %q", msg.Type)))
	}
}

// StartListening replaces the current turn with a fresh one and opens a
// realtime session for it when possible.
func (p *Pipeline) StartListening(ctx context.Context) error {
	if p.closed {
		return ErrClosed
	}
	p.turn.abandon(ctx, p.opts.CloseTimeout)

	t := newTurn(StateListening)
	p.turn = t
	if p.vad != nil {
		p.vad.Reset()
	}

	if factory := p.providers.Realtime; factory != nil {
		session, err := factory.CreateSession()
		if err != nil {
			log.Warnw("realtime session unavailable, using batch transcription", "conn", p.id, "error", err)
		} else {
			startCtx, cancel := context.WithTimeout(ctx, p.opts.TurnTimeout)
			err = session.Start(startCtx)
			cancel()
			if err != nil {
				log.Warnw("realtime session failed to start, using batch transcription", "conn", p.id, "error", err)
				_ = session.Close()
			} else {
				t.session = session
			}
		}
	}

	log.Debugw("listening", "conn", p.id, "realtime", t.session != nil)
	return p.send(ListeningStarted())
}

// AppendAudio buffers one microphone frame and reports voice activity.
// Frames outside a listening turn are dropped.
func (p *Pipeline) AppendAudio(samples []float32) error {
	if p.closed {
		return ErrClosed
	}
	t := p.turn
	if t.state != StateListening {
		log.Debugw("audio outside a listening turn ignored", "conn", p.id, "state", t.state.String())
		return nil
	}
	t.appendFrame(samples)

	if t.session != nil {
		if err := t.session.AppendAudio(samples); err != nil {
			log.Warnw("realtime append failed", "conn", p.id, "error", err)
		}
		for _, e := range t.session.DrainEvents() {
			switch e.Type {
			case stt.EventSpeechStarted:
				if err := p.send(VADStatus(true, string(stt.EventSpeechStarted))); err != nil {
					return err
				}
			case stt.EventSpeechStopped:
				if err := p.send(VADStatus(false, string(stt.EventSpeechStopped))); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if p.vad != nil && len(samples) > 0 {
		return p.send(VADStatus(p.vad.IsSpeech(samples), ""))
	}
	return nil
}

// StopListening finalizes the current turn: transcript, reply, speech and
// exactly one response_complete.
func (p *Pipeline) StopListening(ctx context.Context) error {
	if p.closed {
		return ErrClosed
	}
	began := time.Now()
	t := p.turn
	t.state = StateFinalizing
	if err := p.send(ListeningStopped()); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.opts.TurnTimeout)
	defer cancel()

	p.recordUsage(ctx, t)

	t.transcript = p.resolveTranscript(ctx, t)
	if err := p.send(Transcript(t.transcript)); err != nil {
		return err
	}
	log.Infow("transcript", "conn", p.id, "text", t.transcript)

	outcome := "empty"
	if strings.TrimSpace(t.transcript) != "" {
		t.state = StateResponding
		if err := p.respond(ctx, t); err != nil {
			return err
		}
		outcome = "responded"
	}

	if err := p.send(ResponseComplete(t.response.String())); err != nil {
		return err
	}
	p.metrics.TurnCompleted(outcome, time.Since(began))
	p.turn = newTurn(StateIdle)
	return nil
}

// resolveTranscript prefers the realtime result. Batch transcription runs
// only when there was no realtime session, the session heard speech start,
// or the buffered audio is loud enough that the engine may have missed it.
func (p *Pipeline) resolveTranscript(ctx context.Context, t *Turn) string {
	samples := t.audio()

	var transcript string
	hadSession := t.session != nil
	sawSpeech := false
	if hadSession {
		text, err := t.session.StopAndGetTranscript(ctx, p.opts.RealtimeStopTimeout)
		if err != nil {
			log.Warnw("realtime transcript collection failed", "conn", p.id, "error", err)
		}
		transcript = text
		sawSpeech = t.session.SawSpeechStarted()
		t.releaseSession()
	}
	if strings.TrimSpace(transcript) != "" {
		p.metrics.TranscriptResolved("realtime")
		return transcript
	}
	if len(samples) == 0 {
		p.metrics.TranscriptResolved("none")
		return ""
	}

	if hadSession && !sawSpeech && audio.MeanAbs(samples) <= p.opts.EnergyThreshold {
		log.Debugw("no speech detected, skipping batch transcription", "conn", p.id)
		p.metrics.BatchSkipped()
		p.metrics.TranscriptResolved("none")
		return ""
	}
	if p.providers.Transcriber == nil {
		p.metrics.TranscriptResolved("none")
		return ""
	}

	text, err := p.providers.Transcriber.Transcribe(ctx, samples, p.opts.InputSampleRate)
	if err != nil {
		log.Warnw("batch transcription failed", "conn", p.id, "error", err)
		p.metrics.TranscriptResolved("none")
		return ""
	}
	p.metrics.TranscriptResolved("batch")
	return text
}

// respond streams the reply, forwarding every fragment and speaking each
// sentence as soon as it is complete.
func (p *Pipeline) respond(ctx context.Context, t *Turn) error {
	if p.backend == nil {
		return p.deliver(ctx, t, llm.FailureReply)
	}
	stream, err := p.backend.ChatStream(ctx, t.transcript)
	if err != nil {
		log.Errorw("chat stream failed", "conn", p.id, "error", err)
		if err := p.deliver(ctx, t, llm.FailureReply); err != nil {
			return err
		}
	} else {
		defer stream.Close()
		for {
			fragment, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				log.Warnw("chat stream interrupted", "conn", p.id, "error", err)
				break
			}
			if fragment == "" {
				continue
			}
			if err := p.deliver(ctx, t, fragment); err != nil {
				return err
			}
		}
	}

	if rest := t.segmenter.Flush(); rest != "" {
		return p.speak(ctx, rest)
	}
	return nil
}

func (p *Pipeline) deliver(ctx context.Context, t *Turn, fragment string) error {
	t.response.WriteString(fragment)
	if err := p.send(ResponseChunk(fragment)); err != nil {
		return err
	}
	for _, sentence := range t.segmenter.Push(fragment) {
		if err := p.speak(ctx, sentence); err != nil {
			return err
		}
	}
	return nil
}

// speak synthesizes one sentence and emits its audio before returning, so
// sentences never interleave. Synthesis failures skip the sentence.
func (p *Pipeline) speak(ctx context.Context, sentence string) error {
	synth := p.providers.Synthesizer
	if synth == nil {
		return nil
	}
	speech := sentence
	if p.providers.Cleaner != nil {
		speech = p.providers.Cleaner.Clean(sentence)
	}
	if strings.TrimSpace(speech) == "" {
		return nil
	}

	stream, err := synth.SynthesizeStream(ctx, speech)
	if err != nil {
		log.Warnw("speech synthesis failed", "conn", p.id, "error", err)
		p.metrics.SynthesisFailed()
		return nil
	}
	defer stream.Close()

	src, dst := synth.SampleRate(), p.opts.OutputSampleRate
	for {
		pcm, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			log.Warnw("speech stream interrupted", "conn", p.id, "error", err)
			p.metrics.SynthesisFailed()
			return nil
		}
		if len(pcm) == 0 {
			continue
		}
		if err := p.send(AudioChunk(audio.Resample(pcm, src, dst), dst)); err != nil {
			return err
		}
	}
}

func (p *Pipeline) recordUsage(ctx context.Context, t *Turn) {
	if p.usage == nil || t.samples == 0 {
		return
	}
	minutes := audio.Minutes(t.samples, p.opts.InputSampleRate)
	if err := p.usage.RecordUsage(ctx, minutes); err != nil {
		log.Warnw("usage recording failed", "conn", p.id, "error", err)
	}
}

func (p *Pipeline) send(msg ServerMessage) error {
	if err := p.emitter.Send(msg); err != nil {
		p.turn.state = StateError
		return errors.Wrapf(err, "send %s", msg.Type)
	}
	return nil
}

// Close winds down any live realtime session within the close timeout. The
// pipeline rejects further messages afterwards.
func (p *Pipeline) Close(ctx context.Context) {
	if p.closed {
		return
	}
	p.closed = true
	p.turn.abandon(ctx, p.opts.CloseTimeout)
}

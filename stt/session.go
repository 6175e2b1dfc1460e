package stt

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mrsingh-rishi/openclaw-voice/audio"
	"github.com/mrsingh-rishi/openclaw-voice/queue"
	"github.com/pkg/errors"
)

const DefaultPollInterval = 50 * time.Millisecond

// Session is the engine-agnostic realtime session. The engine's reader
// goroutine only enqueues events; everything else runs on the caller's
// goroutine.
type Session struct {
	conn   Conn
	events *queue.Queue[Event]

	PollInterval time.Duration

	started          bool
	finished         bool
	closed           bool
	final            string
	partial          string
	sawSpeechStarted bool
}

func NewSession(conn Conn) *Session {
	return &Session{
		conn:         conn,
		events:       queue.New[Event](),
		PollInterval: DefaultPollInterval,
	}
}

func (s *Session) Start(ctx context.Context) error {
	if s.started {
		return nil
	}
	if err := s.conn.Connect(ctx, s.events.Enqueue); err != nil {
		return errors.Wrap(err, "connect realtime engine")
	}
	s.started = true
	return nil
}

func (s *Session) AppendAudio(samples []float32) error {
	if !s.started || s.finished || len(samples) == 0 {
		return nil
	}
	return s.conn.SendPCM16(audio.Float32ToPCM16(samples))
}

func (s *Session) DrainEvents() []Event {
	events := s.events.Drain()
	for _, e := range events {
		switch e.Type {
		case EventSpeechStarted:
			s.sawSpeechStarted = true
		case EventFinal:
			s.final = strings.TrimSpace(e.Text)
		case EventPartial:
			s.partial = strings.TrimSpace(e.Text)
		case EventClosed:
			s.closed = true
		}
	}
	return events
}

func (s *Session) SawSpeechStarted() bool {
	return s.sawSpeechStarted
}

// FinalTranscript and PartialTranscript reflect the events drained so far.
func (s *Session) FinalTranscript() string   { return s.final }
func (s *Session) PartialTranscript() string { return s.partial }

func (s *Session) StopAndGetTranscript(ctx context.Context, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	if s.started && !s.finished {
		s.finished = true
		finishCtx, cancel := context.WithDeadline(ctx, deadline)
		done := make(chan error, 1)
		go func() { done <- s.conn.Finish(finishCtx) }()
		select {
		case err := <-done:
			if err != nil {
				log.Warnf("realtime stt finish: %v", err)
				_ = s.conn.Close()
			}
		case <-finishCtx.Done():
			// closing the socket releases a write stuck on a stalled engine
			log.Warnf("realtime stt finish: %v", finishCtx.Err())
			_ = s.conn.Close()
		}
		cancel()
	}

	interval := s.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	for {
		s.DrainEvents()
		if s.final != "" || s.closed || !time.Now().Before(deadline) {
			break
		}
		wait := time.Until(deadline)
		if wait > interval {
			wait = interval
		}
		select {
		case <-ctx.Done():
			s.DrainEvents()
			return s.transcript(), ctx.Err()
		case <-time.After(wait):
		}
	}
	s.DrainEvents()
	return s.transcript(), nil
}

func (s *Session) transcript() string {
	if s.final != "" {
		return s.final
	}
	return s.partial
}

func (s *Session) Close() error {
	if !s.started {
		return nil
	}
	s.started = false
	return s.conn.Close()
}

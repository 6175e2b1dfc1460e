// Package stt holds the speech-to-text collaborators: batch transcribers that
// take a whole utterance, and realtime sessions that stream audio to an
// engine with server-side voice activity detection.
package stt

//go:generate mockgen -destination=../mocks/stt.go -package=mocks github.com/mrsingh-rishi/openclaw-voice/stt Transcriber,SessionFactory,RealtimeSession

import (
	"context"
	"strings"
	"time"
)

type EventType string

const (
	EventSpeechStarted EventType = "speech_started"
	EventSpeechStopped EventType = "speech_stopped"
	EventPartial       EventType = "partial"
	EventFinal         EventType = "final"
	EventClosed        EventType = "closed"
)

// Event is an engine notification normalised across vendors.
type Event struct {
	Type EventType
	Text string
}

// Transcriber turns a complete utterance of float32 mono samples into text.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}

// RealtimeSession streams one utterance to a realtime engine.
type RealtimeSession interface {
	Start(ctx context.Context) error
	// AppendAudio is a no-op before Start or for an empty frame.
	AppendAudio(samples []float32) error
	// DrainEvents returns queued events without blocking.
	DrainEvents() []Event
	SawSpeechStarted() bool
	// StopAndGetTranscript ends the utterance and waits up to timeout for a
	// final transcript, falling back to the latest partial.
	StopAndGetTranscript(ctx context.Context, timeout time.Duration) (string, error)
	Close() error
}

type SessionFactory interface {
	CreateSession() (RealtimeSession, error)
}

// Conn is the vendor half of a realtime session. The handler passed to
// Connect is called from the connection's reader goroutine.
type Conn interface {
	Connect(ctx context.Context, handler func(Event)) error
	SendPCM16(pcm []byte) error
	// Finish asks the engine to flush and close out pending results.
	Finish(ctx context.Context) error
	Close() error
}

// DefaultWriteTimeout bounds a single write to a realtime engine that has
// stopped reading.
const DefaultWriteTimeout = 5 * time.Second

func writeTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultWriteTimeout
	}
	return d
}

// finishDeadline prefers the caller's deadline over the per-write bound.
func finishDeadline(ctx context.Context, d time.Duration) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}
	return time.Now().Add(writeTimeout(d))
}

// wsURL maps an http(s) base URL onto its websocket scheme.
func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

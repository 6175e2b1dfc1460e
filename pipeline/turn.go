package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mrsingh-rishi/openclaw-voice/audio"
	"github.com/mrsingh-rishi/openclaw-voice/llm"
	"github.com/mrsingh-rishi/openclaw-voice/stt"
)

type State int

const (
	StateIdle State = iota
	StateListening
	StateFinalizing
	StateResponding
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateFinalizing:
		return "finalizing"
	case StateResponding:
		return "responding"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Turn is one listen and respond cycle. It owns its realtime session; the
// session never outlives the turn.
type Turn struct {
	state      State
	frames     [][]float32
	samples    int
	session    stt.RealtimeSession
	transcript string
	response   strings.Builder
	segmenter  *llm.Segmenter
}

func newTurn(state State) *Turn {
	return &Turn{state: state, segmenter: llm.NewSegmenter()}
}

func (t *Turn) appendFrame(samples []float32) {
	t.frames = append(t.frames, samples)
	t.samples += len(samples)
}

func (t *Turn) audio() []float32 {
	if t.samples == 0 {
		return nil
	}
	return audio.Concat(t.frames)
}

// releaseSession closes the realtime session, if any, and forgets it.
func (t *Turn) releaseSession() {
	if t.session == nil {
		return
	}
	if err := t.session.Close(); err != nil {
		log.Debugf("realtime session close: %v", err)
	}
	t.session = nil
}

// abandon gives a live realtime session a bounded chance to wind down before
// closing it.
func (t *Turn) abandon(ctx context.Context, timeout time.Duration) {
	if t.session == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := t.session.StopAndGetTranscript(ctx, timeout); err != nil {
		log.Debugf("realtime session stop on abandon: %v", err)
	}
	t.releaseSession()
}

package stt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	mu         sync.Mutex
	handler    func(Event)
	connectErr error
	finishErr  error
	sent       [][]byte
	finished   int
	closed     int
	onFinish   func(emit func(Event))
}

func (f *fakeConn) Connect(_ context.Context, handler func(Event)) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) emit(e Event) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(e)
}

func (f *fakeConn) SendPCM16(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, pcm)
	return nil
}

func (f *fakeConn) Finish(context.Context) error {
	f.mu.Lock()
	f.finished++
	f.mu.Unlock()
	if f.onFinish != nil {
		go f.onFinish(f.emit)
	}
	return f.finishErr
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func startedSession(t *testing.T, conn *fakeConn) *Session {
	t.Helper()
	s := NewSession(conn)
	s.PollInterval = 5 * time.Millisecond
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return s
}

func TestSession_AppendAudio(t *testing.T) {
	conn := &fakeConn{}
	s := NewSession(conn)

	if err := s.AppendAudio([]float32{0.5}); err != nil {
		t.Fatalf("append before start: %v", err)
	}
	if len(conn.sent) != 0 {
		t.Fatalf("expected no audio forwarded before start")
	}

	_ = s.Start(context.Background())
	_ = s.AppendAudio(nil)
	_ = s.AppendAudio([]float32{0.5, -0.5})
	if len(conn.sent) != 1 || len(conn.sent[0]) != 4 {
		t.Fatalf("expected one 4-byte PCM16 frame, got %v", conn.sent)
	}
}

func TestSession_DrainEvents(t *testing.T) {
	conn := &fakeConn{}
	s := startedSession(t, conn)

	if got := s.DrainEvents(); got != nil {
		t.Fatalf("expected nothing queued, got %v", got)
	}

	conn.emit(Event{Type: EventSpeechStarted})
	conn.emit(Event{Type: EventPartial, Text: " hel "})
	conn.emit(Event{Type: EventSpeechStopped})

	events := s.DrainEvents()
	if len(events) != 3 || events[0].Type != EventSpeechStarted || events[2].Type != EventSpeechStopped {
		t.Fatalf("unexpected events %v", events)
	}
	if !s.SawSpeechStarted() || s.PartialTranscript() != "hel" {
		t.Fatalf("expected speech started and trimmed partial, got %v %q", s.SawSpeechStarted(), s.PartialTranscript())
	}

	conn.emit(Event{Type: EventFinal, Text: "hello"})
	s.DrainEvents()
	if !s.SawSpeechStarted() {
		t.Fatalf("speech started flag must stay set")
	}
	if s.FinalTranscript() != "hello" {
		t.Fatalf("expected final hello, got %q", s.FinalTranscript())
	}
}

func TestSession_StopWaitsForFinal(t *testing.T) {
	conn := &fakeConn{onFinish: func(emit func(Event)) {
		time.Sleep(20 * time.Millisecond)
		emit(Event{Type: EventFinal, Text: "turn on the lights"})
	}}
	s := startedSession(t, conn)
	conn.emit(Event{Type: EventPartial, Text: "turn on"})

	text, err := s.StopAndGetTranscript(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if text != "turn on the lights" {
		t.Fatalf("expected final transcript, got %q", text)
	}
	if conn.finished != 1 {
		t.Fatalf("expected one finish, got %d", conn.finished)
	}
}

func TestSession_StopFallsBackToPartialAfterTimeout(t *testing.T) {
	conn := &fakeConn{}
	s := startedSession(t, conn)
	conn.emit(Event{Type: EventPartial, Text: "half a sentence"})

	start := time.Now()
	text, _ := s.StopAndGetTranscript(context.Background(), 60*time.Millisecond)
	if text != "half a sentence" {
		t.Fatalf("expected partial transcript, got %q", text)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond || elapsed > time.Second {
		t.Fatalf("expected to wait about the timeout, waited %v", elapsed)
	}
}

func TestSession_StopWithNothingReturnsEmpty(t *testing.T) {
	conn := &fakeConn{}
	s := startedSession(t, conn)
	text, err := s.StopAndGetTranscript(context.Background(), 20*time.Millisecond)
	if err != nil || text != "" {
		t.Fatalf("expected empty transcript, got %q %v", text, err)
	}
}

func TestSession_ClosedEventEndsWait(t *testing.T) {
	conn := &fakeConn{onFinish: func(emit func(Event)) {
		emit(Event{Type: EventClosed})
	}}
	s := startedSession(t, conn)

	start := time.Now()
	_, _ = s.StopAndGetTranscript(context.Background(), 5*time.Second)
	if time.Since(start) > 2*time.Second {
		t.Fatalf("expected closed engine to end the wait early")
	}
}

func TestSession_FinishErrorClosesConn(t *testing.T) {
	conn := &fakeConn{finishErr: errors.New("broken pipe")}
	s := startedSession(t, conn)
	conn.emit(Event{Type: EventFinal, Text: "done"})

	text, err := s.StopAndGetTranscript(context.Background(), 50*time.Millisecond)
	if err != nil || text != "done" {
		t.Fatalf("expected already-queued final, got %q %v", text, err)
	}
	if conn.closed != 1 {
		t.Fatalf("expected conn closed after finish error")
	}
}

// stuckConn models an engine whose Finish write never completes until the
// socket is closed underneath it.
type stuckConn struct {
	fakeConn
	release chan struct{}
}

func (c *stuckConn) Finish(ctx context.Context) error {
	<-c.release
	return errors.New("use of closed network connection")
}

func (c *stuckConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed == 0 {
		close(c.release)
	}
	c.closed++
	return nil
}

func TestSession_StopBoundedWhenFinishHangs(t *testing.T) {
	conn := &stuckConn{release: make(chan struct{})}
	s := NewSession(conn)
	s.PollInterval = 5 * time.Millisecond
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	conn.emit(Event{Type: EventPartial, Text: "half a sentence"})

	start := time.Now()
	text, err := s.StopAndGetTranscript(context.Background(), 100*time.Millisecond)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("stop blocked for %s", elapsed)
	}
	if err != nil || text != "half a sentence" {
		t.Fatalf("expected partial fallback, got %q %v", text, err)
	}
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed != 1 {
		t.Fatalf("expected the stuck conn to be closed, got %d closes", conn.closed)
	}
}

func TestSession_StartError(t *testing.T) {
	s := NewSession(&fakeConn{connectErr: errors.New("refused")})
	if err := s.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	// a failed session never forwards audio
	if err := s.AppendAudio([]float32{1}); err != nil {
		t.Fatalf("append after failed start: %v", err)
	}
}

package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
)

// stalledEngine accepts the websocket upgrade and then never reads, so the
// client's socket buffers fill up.
func stalledEngine(t *testing.T) string {
	t.Helper()
	release := make(chan struct{})
	upgrader := gws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })
	return srv.URL
}

// streamUntilError pushes one-second frames until a write fails.
func streamUntilError(t *testing.T, session RealtimeSession) {
	t.Helper()
	frame := make([]float32, 16000)
	for i := range frame {
		frame[i] = 0.5
	}
	done := make(chan error, 1)
	go func() {
		for i := 0; i < 4000; i++ {
			if err := session.AppendAudio(frame); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected a write error against an engine that never reads")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("append audio still blocked against a stalled engine")
	}
}

func stopWithin(t *testing.T, session RealtimeSession, timeout, bound time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		_, _ = session.StopAndGetTranscript(context.Background(), timeout)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(bound):
		t.Fatalf("stop did not return within %s", bound)
	}
}

func TestDeepgram_StalledEngineDoesNotBlock(t *testing.T) {
	dg := NewDeepgram("dg-key", "en", 16000, 900)
	dg.BaseURL = stalledEngine(t)
	dg.WriteTimeout = 200 * time.Millisecond
	session, err := dg.CreateSession()
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer session.Close()

	streamUntilError(t, session)
	stopWithin(t, session, 300*time.Millisecond, 2*time.Second)
}

func TestDashScope_StalledEngineDoesNotBlock(t *testing.T) {
	ds := NewDashScope("ds-key", "", 16000, 900, 300)
	ds.RealtimeURL = "ws" + strings.TrimPrefix(stalledEngine(t), "http")
	ds.WriteTimeout = 200 * time.Millisecond
	session, err := ds.CreateSession()
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := session.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer session.Close()

	streamUntilError(t, session)
	stopWithin(t, session, 300*time.Millisecond, 2*time.Second)
}

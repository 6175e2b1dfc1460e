package stt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
)

func TestDashScope_RealtimeSession(t *testing.T) {
	var mu sync.Mutex
	var events []map[string]any
	upgrader := gws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			mu.Lock()
			events = append(events, msg)
			mu.Unlock()

			switch msg["type"] {
			case "input_audio_buffer.append":
				_ = conn.WriteJSON(map[string]string{"type": "input_audio_buffer.speech_started"})
				_ = conn.WriteJSON(map[string]string{"type": "conversation.item.input_audio_transcription.text", "stash": "今天"})
			case "session.finish":
				_ = conn.WriteJSON(map[string]string{"type": "input_audio_buffer.speech_stopped"})
				_ = conn.WriteJSON(map[string]string{"type": "conversation.item.input_audio_transcription.completed", "transcript": "今天天气怎么样"})
				_ = conn.WriteJSON(map[string]string{"type": "session.finished"})
				return
			}
		}
	}))
	defer srv.Close()

	ds := NewDashScope("ds-key", "", 16000, 900, 300)
	ds.RealtimeURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	session, err := ds.CreateSession()
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	ctx := context.Background()
	if err := session.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer session.Close()
	_ = session.AppendAudio([]float32{0.1, 0.2})

	deadline := time.Now().Add(2 * time.Second)
	for !session.SawSpeechStarted() && time.Now().Before(deadline) {
		session.DrainEvents()
		time.Sleep(5 * time.Millisecond)
	}
	text, err := session.StopAndGetTranscript(ctx, 2*time.Second)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if text != "今天天气怎么样" {
		t.Fatalf("unexpected transcript %q", text)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) < 3 || events[0]["type"] != "session.update" {
		t.Fatalf("expected session.update first, got %v", events)
	}
	session0 := events[0]["session"].(map[string]any)
	vad := session0["turn_detection"].(map[string]any)
	if vad["type"] != "server_vad" || vad["silence_duration_ms"].(float64) != 900 || vad["prefix_padding_ms"].(float64) != 300 {
		t.Fatalf("unexpected turn detection %v", vad)
	}
	if events[1]["type"] != "input_audio_buffer.append" || events[1]["audio"] == "" {
		t.Fatalf("expected audio append, got %v", events[1])
	}
}

func TestDashScope_Transcribe(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer ds-key" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "你好"}}},
		})
	}))
	defer srv.Close()

	ds := NewDashScope("ds-key", "zh", 16000, 900, 300)
	ds.BaseURL = srv.URL
	text, err := ds.Transcribe(context.Background(), []float32{0, 0.1}, 16000)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "你好" {
		t.Fatalf("unexpected transcript %q", text)
	}
	if payload["model"] != DefaultDashScopeModel {
		t.Fatalf("unexpected model %v", payload["model"])
	}
	raw, _ := json.Marshal(payload["messages"])
	if !strings.Contains(string(raw), "data:audio/wav;base64,") {
		t.Fatalf("expected inline wav data url, got %s", raw)
	}
}

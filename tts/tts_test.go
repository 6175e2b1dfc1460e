package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func readAll(t *testing.T, s AudioStream) [][]byte {
	t.Helper()
	var chunks [][]byte
	for {
		c, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return chunks
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		chunks = append(chunks, c)
	}
}

func TestCleanForSpeech(t *testing.T) {
	cases := map[string]string{
		"**Hello** there":                       "Hello there",
		"# Title\nSome *text*.":                 "Title Some text.",
		"- one\n- two":                          "one two",
		"See [the docs](https://x.io) now.":     "See the docs now.",
		"Run `go test` first.":                  "Run go test first.",
		"Before ```code\nblock``` after":        "Before after",
		"Visit https://example.com/a?b=1 today": "Visit today",
		"plain sentence.":                       "plain sentence.",
	}
	for in, want := range cases {
		if got := CleanForSpeech(in); got != want {
			t.Errorf("%q: expected %q, got %q", in, want, got)
		}
	}
	if DefaultCleaner.Clean("> quoted") != "quoted" {
		t.Errorf("expected blockquote marker removed")
	}
}

func TestReaderStream_KeepsSamplesWhole(t *testing.T) {
	body := io.NopCloser(io.MultiReader(
		strings.NewReader("\x01"),
		strings.NewReader("\x02\x03"),
		strings.NewReader("\x04"),
	))
	s := newReaderStream(body)
	var total []byte
	for _, c := range readAll(t, s) {
		if len(c)%2 != 0 {
			t.Fatalf("chunk of odd length %d", len(c))
		}
		total = append(total, c...)
	}
	if string(total) != "\x01\x02\x03\x04" {
		t.Fatalf("unexpected bytes %v", total)
	}
}

func TestElevenLabs_SynthesizeStream(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	var gotPath, gotFormat, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("output_format")
		gotKey = r.Header.Get("xi-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		enc := json.NewEncoder(w)
		_ = enc.Encode(map[string]string{"audio_base64": base64.StdEncoding.EncodeToString(pcm[:4])})
		_ = enc.Encode(map[string]string{"audio_base64": ""})
		_ = enc.Encode(map[string]string{"audio_base64": base64.StdEncoding.EncodeToString(pcm[4:])})
	}))
	defer srv.Close()

	c := NewElevenLabsClient("secret", "voice1", "")
	c.BaseURL = srv.URL
	s, err := c.SynthesizeStream(context.Background(), "Hello there.")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	defer s.Close()

	chunks := readAll(t, s)
	if len(chunks) != 2 || string(chunks[0]) != string(pcm[:4]) || string(chunks[1]) != string(pcm[4:]) {
		t.Fatalf("unexpected chunks %v", chunks)
	}
	if gotPath != "/v1/text-to-speech/voice1/stream/with-timestamps" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotFormat != fmt.Sprintf("pcm_%d", NativeSampleRate) || gotKey != "secret" {
		t.Fatalf("unexpected format %q or key %q", gotFormat, gotKey)
	}
	if gotBody["text"] != "Hello there." || gotBody["model_id"] != DefaultElevenLabsModel {
		t.Fatalf("unexpected body %v", gotBody)
	}
	if c.SampleRate() != 24000 {
		t.Fatalf("unexpected sample rate %d", c.SampleRate())
	}
}

func TestElevenLabs_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewElevenLabsClient("secret", "", "")
	c.BaseURL = srv.URL
	if _, err := c.SynthesizeStream(context.Background(), "Hi."); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func TestOpenAISpeech_SynthesizeStream(t *testing.T) {
	pcm := []byte{9, 0, 8, 0, 7, 0}
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "audio/pcm")
		_, _ = w.Write(pcm)
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("key")
	cfg.BaseURL = srv.URL + "/v1"
	o := NewOpenAISpeech(openai.NewClientWithConfig(cfg), "")

	s, err := o.SynthesizeStream(context.Background(), "Hello.")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	defer s.Close()

	var total []byte
	for _, c := range readAll(t, s) {
		total = append(total, c...)
	}
	if string(total) != string(pcm) {
		t.Fatalf("unexpected pcm %v", total)
	}
	if gotBody["response_format"] != "pcm" || gotBody["voice"] != "alloy" || gotBody["input"] != "Hello." {
		t.Fatalf("unexpected request %v", gotBody)
	}
}

package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	gws "github.com/gorilla/websocket"
	"github.com/mrsingh-rishi/openclaw-voice/audio"
	"github.com/pkg/errors"
)

const (
	DefaultDeepgramURL   = "https://api.deepgram.com"
	DefaultDeepgramModel = "nova-2"
)

// Deepgram provides realtime sessions over the listen websocket and batch
// transcription over the prerecorded endpoint.
type Deepgram struct {
	APIKey     string
	BaseURL    string
	Model      string
	Language   string
	SampleRate int
	// EndpointingMs is the trailing silence after which Deepgram reports the
	// end of speech.
	EndpointingMs int
	// WriteTimeout bounds each websocket write; zero means DefaultWriteTimeout.
	WriteTimeout time.Duration
	HTTPClient   *http.Client
}

func NewDeepgram(apiKey, language string, sampleRate, endpointingMs int) *Deepgram {
	if language == "" {
		language = "en-US"
	}
	return &Deepgram{
		APIKey:        apiKey,
		BaseURL:       DefaultDeepgramURL,
		Model:         DefaultDeepgramModel,
		Language:      language,
		SampleRate:    sampleRate,
		EndpointingMs: endpointingMs,
		HTTPClient:    http.DefaultClient,
	}
}

func (dg *Deepgram) CreateSession() (RealtimeSession, error) {
	if dg.APIKey == "" {
		return nil, errors.New("deepgram: api key missing")
	}
	return NewSession(&deepgramConn{cfg: dg}), nil
}

// TranscriptionMessage is the subset of a Deepgram streaming response the
// session reads.
type TranscriptionMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (m TranscriptionMessage) transcript() string {
	if len(m.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(m.Channel.Alternatives[0].Transcript)
}

func (dg *Deepgram) listenURL(scheme func(string) string, streaming bool) string {
	q := url.Values{}
	q.Set("model", dg.Model)
	q.Set("language", dg.Language)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	if streaming {
		q.Set("encoding", "linear16")
		q.Set("sample_rate", strconv.Itoa(dg.SampleRate))
		q.Set("channels", "1")
		q.Set("interim_results", "true")
		q.Set("vad_events", "true")
		if dg.EndpointingMs > 0 {
			q.Set("endpointing", strconv.Itoa(dg.EndpointingMs))
		}
	}
	return scheme(strings.TrimRight(dg.BaseURL, "/")) + "/v1/listen?" + q.Encode()
}

func (dg *Deepgram) header() http.Header {
	return http.Header{"Authorization": {fmt.Sprintf("Token %s", dg.APIKey)}}
}

// Transcribe posts the utterance as a WAV file to the prerecorded endpoint.
func (dg *Deepgram) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	wav := audio.EncodeWAV(audio.Float32ToPCM16(samples), sampleRate)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		dg.listenURL(func(s string) string { return s }, false), bytes.NewReader(wav))
	if err != nil {
		return "", errors.Wrap(err, "build deepgram request")
	}
	req.Header = dg.header()
	req.Header.Set("Content-Type", "audio/wav")

	client := dg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "deepgram request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.Errorf("deepgram: bad status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	// prerecorded results nest the alternatives under results.channels
	var raw struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", errors.Wrap(err, "decode deepgram response")
	}
	if len(raw.Results.Channels) == 0 || len(raw.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return strings.TrimSpace(raw.Results.Channels[0].Alternatives[0].Transcript), nil
}

// deepgramConn accumulates is_final segments so the final event carries the
// whole utterance rather than its last segment.
type deepgramConn struct {
	cfg *Deepgram

	writeMu    sync.Mutex
	conn       *gws.Conn
	closeOnce  sync.Once
	finishing  bool
	finishedMu sync.Mutex
}

func (d *deepgramConn) Connect(ctx context.Context, handler func(Event)) error {
	dialer := gws.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, d.cfg.listenURL(wsURL, true), d.cfg.header())
	if err != nil {
		if resp != nil {
			return errors.Wrapf(err, "deepgram dial (status %d)", resp.StatusCode)
		}
		return errors.Wrap(err, "deepgram dial")
	}
	log.Debug("connected to deepgram")
	d.conn = conn
	go d.listenForResponses(handler)
	return nil
}

func (d *deepgramConn) listenForResponses(handler func(Event)) {
	var committed []string
	finalSent := false
	emitFinal := func() {
		if !finalSent {
			finalSent = true
			handler(Event{Type: EventFinal, Text: strings.Join(committed, " ")})
		}
	}

	for {
		_, message, err := d.conn.ReadMessage()
		if err != nil {
			if d.isFinishing() {
				emitFinal()
			} else if !gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
				log.Warnf("deepgram read: %v", err)
			}
			handler(Event{Type: EventClosed})
			return
		}

		var msg TranscriptionMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Debugf("deepgram: unparsable message: %v", err)
			continue
		}

		switch msg.Type {
		case "SpeechStarted":
			handler(Event{Type: EventSpeechStarted})
		case "UtteranceEnd":
			handler(Event{Type: EventSpeechStopped})
		case "Metadata":
			// sent once the stream is closed out
			if d.isFinishing() {
				emitFinal()
			}
		case "Results":
			text := msg.transcript()
			if msg.IsFinal {
				if text != "" {
					committed = append(committed, text)
				}
				if len(committed) > 0 {
					handler(Event{Type: EventPartial, Text: strings.Join(committed, " ")})
				}
			} else if text != "" {
				handler(Event{Type: EventPartial, Text: strings.Join(append(committed[:len(committed):len(committed)], text), " ")})
			}
			if msg.SpeechFinal {
				handler(Event{Type: EventSpeechStopped})
			}
		}
	}
}

func (d *deepgramConn) isFinishing() bool {
	d.finishedMu.Lock()
	defer d.finishedMu.Unlock()
	return d.finishing
}

func (d *deepgramConn) SendPCM16(pcm []byte) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if d.conn == nil {
		return errors.New("deepgram connection is nil")
	}
	_ = d.conn.SetWriteDeadline(time.Now().Add(writeTimeout(d.cfg.WriteTimeout)))
	if err := d.conn.WriteMessage(gws.BinaryMessage, pcm); err != nil {
		return errors.Wrap(err, "deepgram send audio")
	}
	return nil
}

func (d *deepgramConn) Finish(ctx context.Context) error {
	d.finishedMu.Lock()
	d.finishing = true
	d.finishedMu.Unlock()

	d.writeMu.Lock()
	if d.conn == nil {
		d.writeMu.Unlock()
		return errors.New("deepgram connection is nil")
	}
	_ = d.conn.SetWriteDeadline(finishDeadline(ctx, d.cfg.WriteTimeout))
	err := d.conn.WriteMessage(gws.TextMessage, []byte(`{"type":"CloseStream"}`))
	d.writeMu.Unlock()
	if err != nil {
		return errors.Wrap(err, "deepgram close stream")
	}
	return nil
}

// Close closes the Deepgram WebSocket connection. It skips writeMu so it can
// unblock a writer stuck on an engine that stopped reading.
func (d *deepgramConn) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if d.conn == nil {
			return
		}
		_ = d.conn.WriteControl(gws.CloseMessage,
			gws.FormatCloseMessage(gws.CloseNormalClosure, "Closing connection"),
			time.Now().Add(time.Second))
		err = d.conn.Close()
	})
	return err
}

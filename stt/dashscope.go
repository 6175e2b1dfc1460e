package stt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/mrsingh-rishi/openclaw-voice/audio"
	"github.com/pkg/errors"
)

const (
	DefaultDashScopeRealtimeURL   = "wss://dashscope.aliyuncs.com/api-ws/v1/realtime"
	DefaultDashScopeURL           = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	DefaultDashScopeRealtimeModel = "qwen3-asr-flash-realtime"
	DefaultDashScopeModel         = "qwen3-asr-flash"
)

// DashScope speaks to Alibaba Cloud's qwen3 ASR models: a realtime websocket
// with server VAD per utterance and the compatible-mode REST API for batch.
type DashScope struct {
	APIKey        string
	RealtimeURL   string
	BaseURL       string
	RealtimeModel string
	Model         string
	Language      string
	SampleRate    int
	SilenceMs     int
	PrefixPadding int
	// WriteTimeout bounds each websocket write; zero means DefaultWriteTimeout.
	WriteTimeout time.Duration
	HTTPClient   *http.Client
}

func NewDashScope(apiKey, language string, sampleRate, silenceMs, prefixPaddingMs int) *DashScope {
	if language == "" {
		language = "zh"
	}
	return &DashScope{
		APIKey:        apiKey,
		RealtimeURL:   DefaultDashScopeRealtimeURL,
		BaseURL:       DefaultDashScopeURL,
		RealtimeModel: DefaultDashScopeRealtimeModel,
		Model:         DefaultDashScopeModel,
		Language:      language,
		SampleRate:    sampleRate,
		SilenceMs:     silenceMs,
		PrefixPadding: prefixPaddingMs,
		HTTPClient:    http.DefaultClient,
	}
}

func (ds *DashScope) CreateSession() (RealtimeSession, error) {
	if ds.APIKey == "" {
		return nil, errors.New("dashscope: api key missing")
	}
	return NewSession(&dashScopeConn{cfg: ds}), nil
}

// Transcribe sends the utterance as an inline WAV data URL through the
// compatible-mode chat completions endpoint.
func (ds *DashScope) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	wav := audio.EncodeWAV(audio.Float32ToPCM16(samples), sampleRate)
	payload := map[string]any{
		"model": ds.Model,
		"messages": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{
						"type": "input_audio",
						"input_audio": map[string]string{
							"data": "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(wav),
						},
					},
				},
			},
		},
		"asr_options": map[string]string{"language": ds.Language},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "marshal dashscope payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(ds.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build dashscope request")
	}
	req.Header.Set("Authorization", "Bearer "+ds.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := ds.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "dashscope request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.Errorf("dashscope: bad status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.Wrap(err, "decode dashscope response")
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

type dashScopeEvent struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	Stash      string `json:"stash"`
	Transcript string `json:"transcript"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type dashScopeConn struct {
	cfg *DashScope

	writeMu   sync.Mutex
	conn      *gws.Conn
	closeOnce sync.Once
}

func (d *dashScopeConn) Connect(ctx context.Context, handler func(Event)) error {
	u, err := url.Parse(d.cfg.RealtimeURL)
	if err != nil {
		return errors.Wrap(err, "parse dashscope realtime url")
	}
	q := u.Query()
	q.Set("model", d.cfg.RealtimeModel)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := gws.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return errors.Wrap(err, "dashscope dial")
	}
	d.conn = conn

	update := map[string]any{
		"modalities":                []string{"text"},
		"input_audio_format":        "pcm",
		"sample_rate":               d.cfg.SampleRate,
		"input_audio_transcription": map[string]string{"language": d.cfg.Language},
		"turn_detection": map[string]any{
			"type":                "server_vad",
			"threshold":           0.2,
			"prefix_padding_ms":   d.cfg.PrefixPadding,
			"silence_duration_ms": d.cfg.SilenceMs,
		},
	}
	if err := d.send(map[string]any{"type": "session.update", "session": update}, d.writeDeadline()); err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "dashscope session update")
	}

	go d.listenForResponses(handler)
	return nil
}

func (d *dashScopeConn) listenForResponses(handler func(Event)) {
	for {
		_, message, err := d.conn.ReadMessage()
		if err != nil {
			if !gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
				log.Debugf("dashscope read: %v", err)
			}
			handler(Event{Type: EventClosed})
			return
		}

		var msg dashScopeEvent
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "input_audio_buffer.speech_started":
			handler(Event{Type: EventSpeechStarted})
		case "input_audio_buffer.speech_stopped":
			handler(Event{Type: EventSpeechStopped})
		case "conversation.item.input_audio_transcription.text":
			partial := msg.Text
			if partial == "" {
				partial = msg.Stash
			}
			if partial != "" {
				handler(Event{Type: EventPartial, Text: partial})
			}
		case "conversation.item.input_audio_transcription.completed":
			final := msg.Transcript
			if final == "" {
				final = msg.Text
			}
			handler(Event{Type: EventFinal, Text: final})
		case "session.finished":
			handler(Event{Type: EventClosed})
			return
		case "error":
			if msg.Error != nil {
				log.Warnf("dashscope realtime error: %s", msg.Error.Message)
			}
		}
	}
}

func (d *dashScopeConn) send(event map[string]any, deadline time.Time) error {
	event["event_id"] = "event_" + uuid.NewString()
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	if d.conn == nil {
		return errors.New("dashscope connection is nil")
	}
	_ = d.conn.SetWriteDeadline(deadline)
	return d.conn.WriteJSON(event)
}

func (d *dashScopeConn) writeDeadline() time.Time {
	return time.Now().Add(writeTimeout(d.cfg.WriteTimeout))
}

func (d *dashScopeConn) SendPCM16(pcm []byte) error {
	return d.send(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(pcm),
	}, d.writeDeadline())
}

func (d *dashScopeConn) Finish(ctx context.Context) error {
	return d.send(map[string]any{"type": "session.finish"}, finishDeadline(ctx, d.cfg.WriteTimeout))
}

func (d *dashScopeConn) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if d.conn == nil {
			return
		}
		_ = d.conn.WriteControl(gws.CloseMessage,
			gws.FormatCloseMessage(gws.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = d.conn.Close()
	})
	return err
}

package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/pkg/errors"
)

const (
	DefaultElevenLabsURL   = "https://api.elevenlabs.io"
	DefaultElevenLabsModel = "eleven_multilingual_v2"
	// DefaultElevenLabsVoice is the "Rachel" preset voice.
	DefaultElevenLabsVoice = "21m00Tcm4TlvDq8ikWAM"
)

type ElevenLabsClient struct {
	APIKey     string
	VoiceId    string
	ModelId    string
	BaseURL    string
	HTTPClient *http.Client
}

func NewElevenLabsClient(apiKey string, voiceId string, modelId string) *ElevenLabsClient {
	if voiceId == "" {
		voiceId = DefaultElevenLabsVoice
	}
	if modelId == "" {
		modelId = DefaultElevenLabsModel
	}
	return &ElevenLabsClient{
		APIKey:     apiKey,
		VoiceId:    voiceId,
		ModelId:    modelId,
		BaseURL:    DefaultElevenLabsURL,
		HTTPClient: http.DefaultClient,
	}
}

func (client *ElevenLabsClient) SampleRate() int { return NativeSampleRate }

// SynthesizeStream posts the text to the with-timestamps stream endpoint and
// decodes its JSON objects into raw PCM chunks as they arrive.
func (client *ElevenLabsClient) SynthesizeStream(ctx context.Context, text string) (AudioStream, error) {
	base, err := url.Parse(fmt.Sprintf("%s/v1/text-to-speech/%s/stream/with-timestamps",
		strings.TrimRight(client.BaseURL, "/"), url.PathEscape(client.VoiceId)))
	if err != nil {
		return nil, errors.Wrap(err, "parse elevenlabs url")
	}
	q := base.Query()
	q.Set("output_format", fmt.Sprintf("pcm_%d", NativeSampleRate))
	base.RawQuery = q.Encode()

	payload := map[string]interface{}{
		"text":     text,
		"model_id": client.ModelId,
		"voice_settings": map[string]float64{
			"stability":        0.75,
			"similarity_boost": 0.7,
		},
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String(), bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("xi-api-key", client.APIKey)
	req.Header.Set("Content-Type", "application/json")

	httpClient := client.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "elevenlabs request")
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, errors.Errorf("elevenlabs: bad status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	log.Debugf("elevenlabs: streaming %d characters", len(text))
	return &elevenLabsStream{body: resp.Body, dec: json.NewDecoder(resp.Body)}, nil
}

type elevenLabsStream struct {
	body  io.ReadCloser
	dec   *json.Decoder
	carry []byte
}

func (s *elevenLabsStream) Recv() ([]byte, error) {
	for {
		var chunk struct {
			AudioBase64 string `json:"audio_base64"`
		}
		if err := s.dec.Decode(&chunk); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, errors.Wrap(err, "decode elevenlabs chunk")
		}
		if chunk.AudioBase64 == "" {
			continue
		}
		pcm, err := base64.StdEncoding.DecodeString(chunk.AudioBase64)
		if err != nil {
			return nil, errors.Wrap(err, "decode elevenlabs audio")
		}
		if out := alignSamples(&s.carry, pcm); len(out) > 0 {
			return out, nil
		}
	}
}

func (s *elevenLabsStream) Close() error {
	return s.body.Close()
}

package stt

import (
	"bytes"
	"context"
	"strings"

	"github.com/mrsingh-rishi/openclaw-voice/audio"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// Whisper is a batch transcriber on the OpenAI audio transcription endpoint.
type Whisper struct {
	Client   *openai.Client
	Model    string
	Language string
}

func NewWhisper(client *openai.Client, language string) *Whisper {
	return &Whisper{Client: client, Model: openai.Whisper1, Language: language}
}

func (w *Whisper) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	wav := audio.EncodeWAV(audio.Float32ToPCM16(samples), sampleRate)
	resp, err := w.Client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.Model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(wav),
		Language: w.Language,
	})
	if err != nil {
		return "", errors.Wrap(err, "whisper transcription")
	}
	return strings.TrimSpace(resp.Text), nil
}

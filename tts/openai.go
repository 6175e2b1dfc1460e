package tts

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// OpenAISpeech synthesizes with the OpenAI speech endpoint, which returns
// headerless 24 kHz PCM16 for the pcm response format.
type OpenAISpeech struct {
	Client *openai.Client
	Model  openai.SpeechModel
	Voice  openai.SpeechVoice
}

func NewOpenAISpeech(client *openai.Client, voice string) *OpenAISpeech {
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &OpenAISpeech{Client: client, Model: openai.TTSModel1, Voice: openai.SpeechVoice(voice)}
}

func (o *OpenAISpeech) SampleRate() int { return NativeSampleRate }

func (o *OpenAISpeech) SynthesizeStream(ctx context.Context, text string) (AudioStream, error) {
	resp, err := o.Client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          o.Model,
		Input:          text,
		Voice:          o.Voice,
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create speech")
	}
	return newReaderStream(resp), nil
}

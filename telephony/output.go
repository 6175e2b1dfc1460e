package telephony

import (
	"encoding/base64"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mrsingh-rishi/openclaw-voice/audio"
	"github.com/mrsingh-rishi/openclaw-voice/pipeline"
	"github.com/pkg/errors"
)

type jsonWriter interface {
	WriteJSON(v interface{}) error
}

type mediaEvent struct {
	Event     string       `json:"event"`
	StreamSid string       `json:"streamSid"`
	Media     *mediaBody   `json:"media,omitempty"`
	Mark      *markPayload `json:"mark,omitempty"`
}

type mediaBody struct {
	Payload string `json:"payload"`
}

type markPayload struct {
	Name string `json:"name"`
}

// Output turns pipeline messages into Twilio media stream events. Spoken
// audio becomes μ-law media frames and every finished reply gets a mark.
type Output struct {
	ws        jsonWriter
	streamSid string
	marks     int
}

func NewOutput(ws jsonWriter) *Output {
	return &Output{ws: ws}
}

func (o *Output) SetStreamSid(sid string) {
	o.streamSid = sid
}

func (o *Output) Send(msg pipeline.ServerMessage) error {
	switch msg.Type {
	case pipeline.TypeAudioChunk:
		if o.streamSid == "" {
			log.Debug("Dropping audio before the stream started")
			return nil
		}
		pcm := msg.Audio
		if msg.SampleRate != SampleRate {
			pcm = audio.Resample(pcm, msg.SampleRate, SampleRate)
		}
		return o.write(mediaEvent{
			Event:     "media",
			StreamSid: o.streamSid,
			Media:     &mediaBody{Payload: base64.StdEncoding.EncodeToString(audio.PCM16ToMulaw(pcm))},
		})
	case pipeline.TypeTranscript:
		if text := msg.TextValue(); text != "" {
			log.Infow("Caller said", "stream", o.streamSid, "text", text)
		}
	case pipeline.TypeResponseComplete:
		if msg.TextValue() == "" {
			return nil
		}
		o.marks++
		return o.write(mediaEvent{
			Event:     "mark",
			StreamSid: o.streamSid,
			Mark:      &markPayload{Name: markName(o.marks)},
		})
	case pipeline.TypeError:
		log.Warnw("Pipeline error on call", "stream", o.streamSid, "message", msg.Message)
	}
	return nil
}

func (o *Output) write(ev mediaEvent) error {
	if err := o.ws.WriteJSON(ev); err != nil {
		return errors.Wrapf(err, "twilio %s write", ev.Event)
	}
	return nil
}

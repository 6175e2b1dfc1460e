package pipeline

import "encoding/base64"

// Client to server message types.
const (
	TypeStartListening = "start_listening"
	TypeAudio          = "audio"
	TypeStopListening  = "stop_listening"
	TypePing           = "ping"
)

// Server to client message types.
const (
	TypeListeningStarted = "listening_started"
	TypeVADStatus        = "vad_status"
	TypeListeningStopped = "listening_stopped"
	TypeTranscript       = "transcript"
	TypeResponseChunk    = "response_chunk"
	TypeAudioChunk       = "audio_chunk"
	TypeResponseComplete = "response_complete"
	TypePong             = "pong"
	TypeError            = "error"
)

type ClientMessage struct {
	Type string `json:"type"`
	// Data is base64 little-endian float32 mono PCM for audio messages.
	Data string `json:"data,omitempty"`
}

// ServerMessage is one outbound event. Pointer fields distinguish an empty
// value that must be sent from an absent one.
type ServerMessage struct {
	Type           string  `json:"type"`
	Text           *string `json:"text,omitempty"`
	Final          *bool   `json:"final,omitempty"`
	Data           string  `json:"data,omitempty"`
	SampleRate     int     `json:"sample_rate,omitempty"`
	SpeechDetected *bool   `json:"speech_detected,omitempty"`
	Event          string  `json:"event,omitempty"`
	Message        string  `json:"message,omitempty"`

	// Audio is the PCM16 payload of an audio_chunk, kept for transports that
	// re-encode it.
	Audio []byte `json:"-"`
}

// Emitter delivers server messages to one connection, in call order.
type Emitter interface {
	Send(msg ServerMessage) error
}

type EmitterFunc func(ServerMessage) error

func (f EmitterFunc) Send(msg ServerMessage) error { return f(msg) }

func (m ServerMessage) TextValue() string {
	if m.Text == nil {
		return ""
	}
	return *m.Text
}

func text(s string) *string { return &s }
func flag(b bool) *bool     { return &b }

func ListeningStarted() ServerMessage { return ServerMessage{Type: TypeListeningStarted} }
func ListeningStopped() ServerMessage { return ServerMessage{Type: TypeListeningStopped} }
func Pong() ServerMessage             { return ServerMessage{Type: TypePong} }

func VADStatus(speech bool, event string) ServerMessage {
	return ServerMessage{Type: TypeVADStatus, SpeechDetected: flag(speech), Event: event}
}

func Transcript(s string) ServerMessage {
	return ServerMessage{Type: TypeTranscript, Text: text(s), Final: flag(true)}
}

func ResponseChunk(s string) ServerMessage {
	return ServerMessage{Type: TypeResponseChunk, Text: text(s)}
}

func AudioChunk(pcm []byte, sampleRate int) ServerMessage {
	return ServerMessage{
		Type:       TypeAudioChunk,
		Data:       base64.StdEncoding.EncodeToString(pcm),
		SampleRate: sampleRate,
		Audio:      pcm,
	}
}

func ResponseComplete(s string) ServerMessage {
	return ServerMessage{Type: TypeResponseComplete, Text: text(s)}
}

func ErrorMessage(msg string) ServerMessage {
	return ServerMessage{Type: TypeError, Message: msg}
}

// Package tts turns reply sentences into PCM16 mono speech.
package tts

import (
	"context"
	"io"
)

// NativeSampleRate is the rate both bundled engines synthesize at.
const NativeSampleRate = 24000

// AudioStream yields little-endian PCM16 chunks. Every chunk holds whole
// samples. Recv returns io.EOF when the sentence is done.
type AudioStream interface {
	Recv() ([]byte, error)
	Close() error
}

type Synthesizer interface {
	SynthesizeStream(ctx context.Context, text string) (AudioStream, error)
	// SampleRate is the native rate of the PCM the stream yields.
	SampleRate() int
}

// Cleaner rewrites reply text into something a speech engine reads naturally.
type Cleaner interface {
	Clean(text string) string
}

type CleanerFunc func(string) string

func (f CleanerFunc) Clean(text string) string { return f(text) }

const readChunkSize = 4096

// readerStream chunks a raw PCM body, holding back a trailing odd byte until
// its pair arrives.
type readerStream struct {
	body  io.ReadCloser
	buf   []byte
	carry []byte
}

func newReaderStream(body io.ReadCloser) *readerStream {
	return &readerStream{body: body, buf: make([]byte, readChunkSize)}
}

func (s *readerStream) Recv() ([]byte, error) {
	for {
		n, err := s.body.Read(s.buf)
		if n > 0 {
			if chunk := alignSamples(&s.carry, s.buf[:n]); len(chunk) > 0 {
				return chunk, nil
			}
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *readerStream) Close() error {
	return s.body.Close()
}

// alignSamples prepends the pending odd byte and returns only complete
// 16-bit samples, keeping any new odd byte in carry.
func alignSamples(carry *[]byte, b []byte) []byte {
	data := make([]byte, 0, len(*carry)+len(b))
	data = append(data, *carry...)
	data = append(data, b...)
	if len(data)%2 == 1 {
		*carry = []byte{data[len(data)-1]}
		data = data[:len(data)-1]
	} else {
		*carry = nil
	}
	return data
}

// Package audio holds the PCM plumbing shared by the turn pipeline and the
// telephony bridge: sample format conversion, resampling, energy and VAD.
package audio

import (
	"encoding/base64"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// DecodeFloat32 decodes a base64 payload of little-endian float32 samples.
func DecodeFloat32(payload string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Wrap(err, "decode base64 audio")
	}
	if len(raw)%4 != 0 {
		return nil, errors.Errorf("float32 audio payload has %d bytes, not a multiple of 4", len(raw))
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return samples, nil
}

// EncodeFloat32 is the inverse of DecodeFloat32.
func EncodeFloat32(samples []float32) string {
	raw := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(s))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// Float32ToPCM16 scales [-1,1] samples to clipped 16-bit little-endian PCM.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(clip16(float64(s)*32767.0)))
	}
	return out
}

// PCM16ToFloat32 converts 16-bit little-endian PCM to [-1,1) samples.
func PCM16ToFloat32(pcm []byte) []float32 {
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[2*i:]))) / 32768.0
	}
	return out
}

// MeanAbs returns the mean absolute amplitude of the samples.
func MeanAbs(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += math.Abs(float64(s))
	}
	return sum / float64(len(samples))
}

// RMS returns the root-mean-square level of the samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Concat flattens frames in order.
func Concat(frames [][]float32) []float32 {
	n := 0
	for _, f := range frames {
		n += len(f)
	}
	out := make([]float32, 0, n)
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

// Minutes returns the duration of n samples at sampleRate in minutes.
func Minutes(n, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(n) / float64(sampleRate) / 60.0
}

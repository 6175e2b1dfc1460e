package audio

import "encoding/binary"

const (
	mulawBias = 0x84
	mulawClip = 32635
)

// MulawToPCM16 expands G.711 μ-law bytes to 16-bit little-endian PCM.
func MulawToPCM16(ulaw []byte) []byte {
	out := make([]byte, len(ulaw)*2)
	for i, u := range ulaw {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(mulawDecode(u)))
	}
	return out
}

// PCM16ToMulaw compresses 16-bit little-endian PCM to G.711 μ-law.
func PCM16ToMulaw(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2)
	for i := range out {
		out[i] = mulawEncode(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}
	return out
}

func mulawDecode(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exponent := (u >> 4) & 0x07
	mantissa := u & 0x0F
	sample := ((int(mantissa) << 3) + mulawBias) << exponent
	sample -= mulawBias
	if sign != 0 {
		return int16(-sample)
	}
	return int16(sample)
}

func mulawEncode(sample int16) byte {
	s := int(sample)
	sign := 0
	if s < 0 {
		sign = 0x80
		s = -s
	}
	if s > mulawClip {
		s = mulawClip
	}
	s += mulawBias

	exponent := 7
	for mask := 0x4000; s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := (s >> (exponent + 3)) & 0x0F
	return ^byte(sign | exponent<<4 | mantissa)
}

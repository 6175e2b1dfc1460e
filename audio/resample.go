package audio

import (
	"encoding/binary"
	"math"
)

// Resample converts PCM16 little-endian mono audio from srcRate to dstRate
// using linear interpolation. Equal rates or an empty buffer return pcm as is.
// A trailing odd byte is ignored.
func Resample(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate == dstRate || len(pcm) == 0 || srcRate <= 0 || dstRate <= 0 {
		return pcm
	}

	srcLen := len(pcm) / 2
	if srcLen == 0 {
		return pcm
	}

	src := make([]float64, srcLen)
	for i := range src {
		src[i] = float64(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}

	dstLen := ResampledLen(srcLen, srcRate, dstRate)
	out := make([]byte, dstLen*2)

	// Both grids span [0, srcLen-1], so the first and last samples line up.
	step := 0.0
	if dstLen > 1 {
		step = float64(srcLen-1) / float64(dstLen-1)
	}
	for j := 0; j < dstLen; j++ {
		pos := float64(j) * step
		lo := int(pos)
		if lo >= srcLen-1 {
			lo = srcLen - 1
		}
		v := src[lo]
		if lo+1 < srcLen {
			frac := pos - float64(lo)
			v += (src[lo+1] - src[lo]) * frac
		}
		binary.LittleEndian.PutUint16(out[2*j:], uint16(clip16(v)))
	}
	return out
}

// ResampledLen returns the number of samples Resample produces for n input samples.
func ResampledLen(n, srcRate, dstRate int) int {
	if srcRate == dstRate {
		return n
	}
	m := int(math.RoundToEven(float64(n) * float64(dstRate) / float64(srcRate)))
	if m < 1 {
		m = 1
	}
	return m
}

func clip16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

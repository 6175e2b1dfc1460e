package audio

// VAD decides whether a chunk of float32 mono audio contains speech.
type VAD interface {
	IsSpeech(samples []float32) bool
	Reset()
}

// EnergyVAD is an RMS detector with hysteresis so that short dips inside a
// word do not flip it back to silence.
type EnergyVAD struct {
	SpeechThreshold  float64
	SilenceThreshold float64
	SpeechFrames     int
	SilenceFrames    int

	inSpeech     bool
	speechCount  int
	silenceCount int
}

// NewEnergyVAD returns a detector tuned for browser chunks of 20-100 ms.
func NewEnergyVAD() *EnergyVAD {
	return &EnergyVAD{
		SpeechThreshold:  0.015,
		SilenceThreshold: 0.008,
		SpeechFrames:     1,
		SilenceFrames:    3,
	}
}

func (v *EnergyVAD) IsSpeech(samples []float32) bool {
	level := RMS(samples)

	if v.inSpeech {
		if level < v.SilenceThreshold {
			v.silenceCount++
			v.speechCount = 0
			if v.silenceCount >= v.SilenceFrames {
				v.inSpeech = false
				v.silenceCount = 0
			}
		} else {
			v.silenceCount = 0
		}
		return v.inSpeech
	}

	if level >= v.SpeechThreshold {
		v.speechCount++
		v.silenceCount = 0
		if v.speechCount >= v.SpeechFrames {
			v.inSpeech = true
			v.speechCount = 0
		}
	} else {
		v.speechCount = 0
	}
	return v.inSpeech
}

func (v *EnergyVAD) Reset() {
	v.inSpeech = false
	v.speechCount = 0
	v.silenceCount = 0
}

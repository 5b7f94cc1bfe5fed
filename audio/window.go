package audio

import "time"

// Window is a fixed-length run of mono PCM16 samples cut from the capture
// stream. It is never modified after extraction.
type Window struct {
	Index       int // extraction sequence, starting at 0
	Samples     []int16
	SampleRate  int
	StartSample int64 // stream position of Samples[0]
	CapturedAt  time.Time
}

// Start is the window's offset from the beginning of the stream, in seconds.
func (w Window) Start() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(w.StartSample) / float64(w.SampleRate)
}

func (w Window) Duration() time.Duration {
	if w.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

func (w Window) Float32() []float32 {
	return Int16ToFloat32(w.Samples)
}

package audio

import (
	"sync"
	"time"
)

// Discard reports samples the buffer threw away during a Push.
type Discard struct {
	Trimmed   int // oldest samples dropped to stay under twice the window size
	Remainder int // samples left over after a window was cut
}

// SampleBuffer accumulates capture samples until a full window is available.
// Its length never exceeds twice the window size once an append returns.
type SampleBuffer struct {
	mu         sync.Mutex
	samples    []int16
	windowSize int
	sampleRate int
	pos        int64 // stream position just past the last buffered sample
	next       int
}

func NewSampleBuffer(windowSize, sampleRate int) *SampleBuffer {
	return &SampleBuffer{
		samples:    make([]int16, 0, 2*windowSize),
		windowSize: windowSize,
		sampleRate: sampleRate,
	}
}

func (b *SampleBuffer) WindowSize() int { return b.windowSize }

func (b *SampleBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Append adds samples and returns how many of the oldest samples were
// trimmed to keep the buffer bounded.
func (b *SampleBuffer) Append(samples []int16) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.appendLocked(samples)
}

func (b *SampleBuffer) appendLocked(samples []int16) int {
	b.samples = append(b.samples, samples...)
	b.pos += int64(len(samples))
	if len(b.samples) <= 2*b.windowSize {
		return 0
	}
	trimmed := len(b.samples) - b.windowSize
	n := copy(b.samples, b.samples[trimmed:])
	b.samples = b.samples[:n]
	return trimmed
}

// TryExtractWindow cuts a window when at least windowSize samples are
// buffered. The buffer is left empty afterwards.
func (b *SampleBuffer) TryExtractWindow() (Window, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok, _ := b.extractLocked(time.Now())
	return w, ok
}

func (b *SampleBuffer) extractLocked(at time.Time) (Window, bool, int) {
	if len(b.samples) < b.windowSize {
		return Window{}, false, 0
	}
	w := Window{
		Index:       b.next,
		Samples:     make([]int16, b.windowSize),
		SampleRate:  b.sampleRate,
		StartSample: b.pos - int64(len(b.samples)),
		CapturedAt:  at,
	}
	copy(w.Samples, b.samples)
	remainder := len(b.samples) - b.windowSize
	b.samples = b.samples[:0]
	b.next++
	return w, true, remainder
}

// Push appends samples and cuts a window if one is ready, as one step.
func (b *SampleBuffer) Push(samples []int16, at time.Time) (Window, bool, Discard) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var d Discard
	d.Trimmed = b.appendLocked(samples)
	w, ok, rem := b.extractLocked(at)
	d.Remainder = rem
	return w, ok, d
}

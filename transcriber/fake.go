package transcriber

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"murmur/audio"
)

func init() {
	Register("fake", func(Options) (Engine, error) { return NewLevelFake(0.01), nil })
}

// Fake returns canned segments. Segments, when set, is consulted per call
// with the zero-based call number and takes precedence over Result.
type Fake struct {
	Result   []Segment
	Segments func(call int) ([]Segment, error)
	Err      error
	Delay    time.Duration
	Block    chan struct{} // when non-nil, Transcribe waits for it to close

	calls atomic.Int32
}

func NewFake(segments []Segment, err error) *Fake {
	return &Fake{Result: segments, Err: err}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Calls() int { return int(f.calls.Load()) }

func (f *Fake) Transcribe(ctx context.Context, _ []float32, _ int) ([]Segment, error) {
	call := int(f.calls.Add(1)) - 1
	if f.Block != nil {
		<-f.Block
	}
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.Segments != nil {
		return f.Segments(call)
	}
	if f.Err != nil {
		return nil, fmt.Errorf("fake transcriber error: %w", f.Err)
	}
	return f.Result, nil
}

// LevelFake reports one segment spanning the whole window whenever the
// signal is louder than threshold. It lets the pipeline run end to end
// without a speech service.
type LevelFake struct {
	threshold float64
}

func NewLevelFake(threshold float64) *LevelFake { return &LevelFake{threshold: threshold} }

func (l *LevelFake) Name() string { return "fake" }

func (l *LevelFake) Transcribe(_ context.Context, samples []float32, sampleRate int) ([]Segment, error) {
	level := audio.RMS(audio.Float32ToInt16(samples))
	if level < l.threshold {
		return nil, nil
	}
	return []Segment{{
		Start: 0,
		End:   float64(len(samples)) / float64(sampleRate),
		Text:  fmt.Sprintf("speech (level %.3f)", level),
	}}, nil
}

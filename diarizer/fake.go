package diarizer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

func init() {
	Register("fake", func(Options) (Engine, error) { return &Single{Speaker: "SPEAKER_00"}, nil })
	Register("none", func(Options) (Engine, error) { return None{}, nil })
}

// Fake returns canned turns, or the result of Turns when set.
type Fake struct {
	Result []Turn
	Turns  func(call int) ([]Turn, error)
	Err    error
	Delay  time.Duration
	Block  chan struct{}

	calls atomic.Int32
}

func NewFake(turns []Turn, err error) *Fake {
	return &Fake{Result: turns, Err: err}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Calls() int { return int(f.calls.Load()) }

func (f *Fake) Diarize(ctx context.Context, _ []float32, _ int) ([]Turn, error) {
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
	if f.Turns != nil {
		return f.Turns(call)
	}
	if f.Err != nil {
		return nil, fmt.Errorf("fake diarizer error: %w", f.Err)
	}
	return f.Result, nil
}

// Single attributes every window to one speaker.
type Single struct {
	Speaker string
}

func (s *Single) Name() string { return "fake" }

func (s *Single) Diarize(_ context.Context, samples []float32, sampleRate int) ([]Turn, error) {
	return []Turn{{Start: 0, End: float64(len(samples)) / float64(sampleRate), Speaker: s.Speaker}}, nil
}

// None never reports a turn, so every line is labelled UNKNOWN.
type None struct{}

func (None) Name() string { return "none" }

func (None) Diarize(context.Context, []float32, int) ([]Turn, error) { return nil, nil }

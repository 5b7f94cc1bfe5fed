package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"murmur/align"
	"murmur/audio"
	"murmur/diarizer"
	"murmur/sink"
	"murmur/transcriber"
)

func window(index, rate, seconds int) audio.Window {
	return audio.Window{
		Index:       index,
		Samples:     make([]int16, rate*seconds),
		SampleRate:  rate,
		StartSample: int64(index * rate * seconds),
		CapturedAt:  time.Now(),
	}
}

func runWorker(t *testing.T, w *Worker, windows ...audio.Window) {
	t.Helper()
	q := NewWindowQueue(len(windows) + 1)
	for _, win := range windows {
		q.Push(win)
	}
	q.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(context.Background(), q)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not finish")
	}
	if w.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", w.State())
	}
}

func TestWorkerSpeechFailureSkipsOnlyThatWindow(t *testing.T) {
	speech := &transcriber.Fake{Segments: func(call int) ([]transcriber.Segment, error) {
		if call == 1 {
			return nil, errors.New("service unavailable")
		}
		return []transcriber.Segment{{Start: 0, End: 1, Text: "ok"}}, nil
	}}
	diar := diarizer.NewFake([]diarizer.Turn{{Start: 0, End: 5, Speaker: "A"}}, nil)
	var out sink.Collector

	w := NewWorker(speech, diar, &out)
	runWorker(t, w, window(0, 100, 5), window(1, 100, 5), window(2, 100, 5))

	lines := out.Lines()
	if len(lines) != 2 {
		t.Fatalf("lines = %+v, want windows 0 and 2", lines)
	}
	if lines[0].Start != 0 || lines[1].Start != 10 {
		t.Errorf("starts = %v, %v; want 0, 10", lines[0].Start, lines[1].Start)
	}
	if w.Processed() != 2 || w.Failed() != 1 {
		t.Errorf("processed=%d failed=%d", w.Processed(), w.Failed())
	}
}

func TestWorkerDiarizationFailureSkipsWindow(t *testing.T) {
	speech := transcriber.NewFake([]transcriber.Segment{{Start: 0, End: 1, Text: "ok"}}, nil)
	diar := &diarizer.Fake{Turns: func(call int) ([]diarizer.Turn, error) {
		if call == 0 {
			return nil, errors.New("model crashed")
		}
		return nil, nil
	}}
	var out sink.Collector

	w := NewWorker(speech, diar, &out)
	runWorker(t, w, window(0, 100, 5), window(1, 100, 5))

	lines := out.Lines()
	if len(lines) != 1 || lines[0].Speaker != align.Unknown || lines[0].Start != 5 {
		t.Errorf("lines = %+v, want one UNKNOWN line from window 1", lines)
	}
}

type panicking struct{}

func (panicking) Name() string { return "panicking" }
func (panicking) Transcribe(context.Context, []float32, int) ([]transcriber.Segment, error) {
	panic("index out of range")
}

func TestWorkerRecoversEnginePanic(t *testing.T) {
	var out sink.Collector
	w := NewWorker(panicking{}, diarizer.None{}, &out)

	_, err := w.Process(context.Background(), window(3, 100, 1))
	var ee *EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("err = %v, want *EngineError", err)
	}
	if ee.Engine != "speech" || ee.Window != 3 {
		t.Errorf("EngineError = %+v", ee)
	}
}

func TestWorkerRunsEnginesConcurrently(t *testing.T) {
	release := make(chan struct{})
	speech := &transcriber.Fake{Block: release}
	diarStarted := make(chan struct{})
	diar := &diarizer.Fake{Turns: func(int) ([]diarizer.Turn, error) {
		close(diarStarted)
		return nil, nil
	}}

	w := NewWorker(speech, diar, &sink.Collector{})
	done := make(chan error, 1)
	go func() {
		_, err := w.Process(context.Background(), window(0, 100, 1))
		done <- err
	}()

	select {
	case <-diarStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("diarization did not start while speech was blocked")
	}
	if w.State() != StateInferring {
		t.Errorf("State() = %v, want inferring", w.State())
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Process: %v", err)
	}
}

func TestWorkerStopsOnCancelledContext(t *testing.T) {
	q := NewWindowQueue(4)
	q.Push(window(0, 100, 1))
	q.Push(window(1, 100, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	speech := transcriber.NewFake(nil, nil)
	w := NewWorker(speech, diarizer.None{}, &sink.Collector{})
	w.Run(ctx, q)

	if speech.Calls() != 1 {
		t.Errorf("speech called %d times, want 1", speech.Calls())
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		StateIdle:      "idle",
		StateFetching:  "waiting",
		StateInferring: "inferring",
		StateAligning:  "aligning",
		StateStopped:   "stopped",
		State(9):       "State(9)",
	} {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int32(s), got, want)
		}
	}
}

package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"murmur/align"
	"murmur/audio"
	"murmur/diarizer"
	"murmur/log"
	"murmur/metrics"
	"murmur/sink"
	"murmur/transcriber"
)

type State int32

const (
	StateIdle State = iota
	StateFetching
	StateInferring
	StateAligning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "waiting"
	case StateInferring:
		return "inferring"
	case StateAligning:
		return "aligning"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Worker is the single consumer of a WindowQueue. It runs both engines on
// each window, aligns their output and hands the lines to a sink.
type Worker struct {
	speech transcriber.Engine
	diar   diarizer.Engine
	out    sink.Sink

	state     atomic.Int32
	processed atomic.Int64
	failed    atomic.Int64
}

func NewWorker(speech transcriber.Engine, diar diarizer.Engine, out sink.Sink) *Worker {
	return &Worker{speech: speech, diar: diar, out: out}
}

func (w *Worker) State() State { return State(w.state.Load()) }

func (w *Worker) setState(s State) { w.state.Store(int32(s)) }

// Processed and Failed count windows since the worker started.
func (w *Worker) Processed() int64 { return w.processed.Load() }
func (w *Worker) Failed() int64    { return w.failed.Load() }

// Run drains q until it is closed and empty, or ctx is cancelled.
// An engine failure skips the window and the loop continues.
func (w *Worker) Run(ctx context.Context, q *WindowQueue) {
	defer w.setState(StateStopped)
	for {
		w.setState(StateFetching)
		win, ok := q.Pop()
		if !ok {
			return
		}
		metrics.SetQueueDepth(q.Len())

		if _, err := w.Process(ctx, win); err != nil {
			w.failed.Add(1)
			metrics.RecordWindow(metrics.StatusFailed)
		} else {
			w.processed.Add(1)
			metrics.RecordWindow(metrics.StatusProcessed)
		}
		w.setState(StateIdle)

		if ctx.Err() != nil {
			return
		}
	}
}

// Process runs one window through both engines and emits the aligned
// lines. Nothing is emitted when either engine fails.
func (w *Worker) Process(ctx context.Context, win audio.Window) ([]align.Line, error) {
	w.setState(StateInferring)
	samples := win.Float32()

	var (
		segments           []transcriber.Segment
		turns              []diarizer.Turn
		speechDur, diarDur time.Duration
	)
	// no shared context: one engine failing must not cancel the other
	var g errgroup.Group
	g.Go(func() (err error) {
		defer recoverEngine("speech", win.Index, &err)
		start := time.Now()
		segments, err = w.speech.Transcribe(ctx, samples, win.SampleRate)
		speechDur = time.Since(start)
		metrics.RecordEngineDuration("speech", speechDur.Seconds())
		return engineFailure("speech", win.Index, err)
	})
	g.Go(func() (err error) {
		defer recoverEngine("diarization", win.Index, &err)
		start := time.Now()
		turns, err = w.diar.Diarize(ctx, samples, win.SampleRate)
		diarDur = time.Since(start)
		metrics.RecordEngineDuration("diarization", diarDur.Seconds())
		return engineFailure("diarization", win.Index, err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	w.setState(StateAligning)
	lines := align.Align(win, segments, turns)
	if len(lines) > 0 {
		w.out.Emit(lines)
		metrics.RecordLines(len(lines))
	}

	log.Window(log.WindowStats{
		Index:     win.Index,
		StartS:    win.Start(),
		Latency:   time.Since(win.CapturedAt),
		SpeechMs:  float64(speechDur.Microseconds()) / 1000,
		DiarizeMs: float64(diarDur.Microseconds()) / 1000,
		Segments:  len(segments),
		Turns:     len(turns),
		Lines:     len(lines),
	})
	logNetwork("speech", win.Index, w.speech)
	logNetwork("diarization", win.Index, w.diar)
	return lines, nil
}

type networkReporter interface {
	NetworkStats() string
}

func logNetwork(engine string, index int, e any) {
	if nr, ok := e.(networkReporter); ok {
		log.Debugf("%s_net window=%d %s", engine, index, nr.NetworkStats())
	}
}

func engineFailure(engine string, index int, err error) error {
	if err == nil {
		return nil
	}
	ee := &EngineError{Engine: engine, Window: index, Cause: err}
	metrics.RecordEngineError(engine)
	log.EngineError(engine, index, err)
	return ee
}

func recoverEngine(engine string, index int, err *error) {
	if r := recover(); r != nil {
		*err = engineFailure(engine, index, fmt.Errorf("panic: %v", r))
	}
}

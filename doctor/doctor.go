package doctor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"murmur/align"
	"murmur/audio"
	"murmur/diarizer"
	"murmur/transcriber"
)

type Options struct {
	Audio       audio.Context
	Device      *audio.DeviceInfo
	SampleRate  int
	Speech      transcriber.Engine
	Diarization diarizer.Engine
	Record      time.Duration // how long to capture; defaults to 3s
	Out         io.Writer
}

// tokenChecker is implemented by engines that need a credential to work.
type tokenChecker interface {
	HasToken() bool
}

// networkReporter is implemented by engines that call a remote service.
type networkReporter interface {
	NetworkStats() string
}

func printNetwork(out io.Writer, engine any) {
	if nr, ok := engine.(networkReporter); ok {
		if s := nr.NetworkStats(); s != "" {
			fmt.Fprintf(out, "  network: %s\n", s)
		}
	}
}

// Run executes the diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(ctx context.Context, o Options) int {
	if o.Record <= 0 {
		o.Record = 3 * time.Second
	}
	if o.SampleRate <= 0 {
		o.SampleRate = 16000
	}
	out := o.Out

	fmt.Fprintln(out, "murmur doctor - capture and engine diagnostics")
	fmt.Fprintln(out, "==============================================")

	samples, ok := checkCapture(ctx, o)
	if !ok {
		return finish(out, false)
	}
	win := audio.Window{Samples: samples, SampleRate: o.SampleRate}

	segments, speechOK := checkSpeech(ctx, o, win)
	turns, diarOK := checkDiarization(ctx, o, win)

	if speechOK && diarOK {
		lines := align.Align(win, segments, turns)
		fmt.Fprintln(out)
		if len(lines) == 0 {
			fmt.Fprintln(out, "  (no speech detected)")
		}
		for _, l := range lines {
			fmt.Fprintf(out, "  %s\n", l)
		}
	}
	return finish(out, speechOK && diarOK)
}

func finish(out io.Writer, allPass bool) int {
	fmt.Fprintln(out)
	if allPass {
		fmt.Fprintln(out, "All checks passed!")
		return 0
	}
	fmt.Fprintln(out, "Some checks failed. See details above.")
	return 1
}

func checkCapture(ctx context.Context, o Options) ([]int16, bool) {
	out := o.Out
	fmt.Fprintln(out)
	fmt.Fprintln(out, "[1/3] Microphone")

	name := "system default"
	if o.Device != nil {
		name = o.Device.Name
	}
	fmt.Fprintf(out, "Using device: %s\n", name)
	if o.Device != nil && audio.IsBluetooth(o.Device.Name) {
		fmt.Fprintln(out, "  Warning: bluetooth headsets often capture narrowband audio")
	}
	fmt.Fprintf(out, "Speak for %s...\n", o.Record)

	recordCtx, cancel := context.WithTimeout(ctx, o.Record)
	defer cancel()
	samples, err := recordAudio(recordCtx, o.Audio, o.Device, o.SampleRate, out)
	if err != nil {
		fmt.Fprintf(out, "  FAIL: recording error: %v\n", err)
		return nil, false
	}
	if len(samples) == 0 {
		fmt.Fprintln(out, "  FAIL: no audio captured")
		return nil, false
	}

	level := audio.RMS(samples)
	fmt.Fprintf(out, "  Captured %.1fs, level %.4f\n", float64(len(samples))/float64(o.SampleRate), level)
	if level < 0.001 {
		fmt.Fprintln(out, "  Warning: signal is almost silent; check the input gain")
	}
	fmt.Fprintln(out, "  PASS: audio captured")
	return samples, true
}

func checkSpeech(ctx context.Context, o Options, win audio.Window) ([]transcriber.Segment, bool) {
	out := o.Out
	fmt.Fprintln(out)
	fmt.Fprintf(out, "[2/3] Speech engine (%s)\n", o.Speech.Name())

	start := time.Now()
	segments, err := o.Speech.Transcribe(ctx, win.Float32(), win.SampleRate)
	if err != nil {
		fmt.Fprintf(out, "  FAIL: %v\n", err)
		return nil, false
	}
	var texts []string
	for _, s := range segments {
		if t := strings.TrimSpace(s.Text); t != "" {
			texts = append(texts, t)
		}
	}
	text := strings.Join(texts, " ")
	if text == "" {
		text = "(no speech detected)"
	}
	fmt.Fprintf(out, "  %d segments in %dms: %s\n", len(segments), time.Since(start).Milliseconds(), text)
	printNetwork(out, o.Speech)
	fmt.Fprintln(out, "  PASS: speech engine responded")
	return segments, true
}

func checkDiarization(ctx context.Context, o Options, win audio.Window) ([]diarizer.Turn, bool) {
	out := o.Out
	fmt.Fprintln(out)
	fmt.Fprintf(out, "[3/3] Diarization engine (%s)\n", o.Diarization.Name())

	if tc, ok := o.Diarization.(tokenChecker); ok && !tc.HasToken() {
		fmt.Fprintln(out, "  Warning: HUGGINGFACE_TOKEN is not set; gated models will fail to load")
	}

	start := time.Now()
	turns, err := o.Diarization.Diarize(ctx, win.Float32(), win.SampleRate)
	if err != nil {
		fmt.Fprintf(out, "  FAIL: %v\n", err)
		return nil, false
	}
	speakers := map[string]bool{}
	for _, t := range turns {
		speakers[t.Speaker] = true
	}
	fmt.Fprintf(out, "  %d turns, %d speakers in %dms\n", len(turns), len(speakers), time.Since(start).Milliseconds())
	printNetwork(out, o.Diarization)
	fmt.Fprintln(out, "  PASS: diarization engine responded")
	return turns, true
}

// recordAudio captures until ctx is done.
func recordAudio(ctx context.Context, actx audio.Context, device *audio.DeviceInfo, sampleRate int, out io.Writer) ([]int16, error) {
	var pcm []int16
	var bufMu sync.Mutex
	var stopped bool

	captureDevice, err := actx.NewCapture(device, audio.CaptureConfig{
		SampleRate: uint32(sampleRate),
		Channels:   1,
	})
	if err != nil {
		return nil, err
	}
	defer captureDevice.Close()

	captureDevice.SetCallback(func(data []byte, _ uint32) {
		bufMu.Lock()
		defer bufMu.Unlock()
		if stopped {
			return
		}
		pcm = append(pcm, audio.BytesToInt16(data)...)
	})

	if err := captureDevice.Start(); err != nil {
		return nil, err
	}

	fmt.Fprint(out, "  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			fmt.Fprint(out, ".")
		}
	}

	captureDevice.Stop()
	fmt.Fprintln(out, " done")

	bufMu.Lock()
	stopped = true
	raw := pcm
	bufMu.Unlock()
	return raw, nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/term"

	"murmur/audio"
	"murmur/config"
	"murmur/diarizer"
	"murmur/doctor"
	"murmur/log"
	"murmur/metrics"
	"murmur/pipeline"
	"murmur/shutdown"
	"murmur/sink"
	"murmur/transcriber"
)

var version = "dev"

// flags holds the command line. Fields left at their zero value fall back
// to the config file.
type flags struct {
	config      string
	device      string
	setup       bool
	listDevices bool
	doctor      bool
	test        bool
	realtime    bool
	tui         bool
	noColor     bool
	logPath     string
	logLevel    string
	window      float64
	speech      string
	diarization string
	language    string
	speakers    int
	metricsFile string
	profile     string
	version     bool
	crash       bool
}

func parseFlags() *flags {
	f := &flags{}
	flag.StringVar(&f.config, "config", "", "YAML config file")
	flag.StringVar(&f.device, "device", "", "Capture device (case-insensitive name substring)")
	flag.BoolVar(&f.setup, "setup", false, "Pick the capture device interactively")
	flag.BoolVar(&f.listDevices, "list-devices", false, "List capture devices and exit")
	flag.BoolVar(&f.doctor, "doctor", false, "Run capture and engine diagnostics and exit")
	flag.BoolVar(&f.test, "test", false, "Replay a WAV file instead of capturing (stdin-driven)")
	flag.BoolVar(&f.realtime, "realtime", false, "Pace -test replay at the capture rate")
	flag.BoolVar(&f.tui, "tui", false, "Run with terminal UI")
	flag.BoolVar(&f.noColor, "no-color", false, "Disable speaker colours")
	flag.StringVar(&f.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	flag.StringVar(&f.logLevel, "loglevel", "", "Diagnostics log level (debug, info, warn, error)")
	flag.Float64Var(&f.window, "window", 0, "Window length in seconds")
	flag.StringVar(&f.speech, "speech", "", "Speech engine ("+strings.Join(transcriber.Names(), ", ")+")")
	flag.StringVar(&f.diarization, "diarization", "", "Diarization engine ("+strings.Join(diarizer.Names(), ", ")+")")
	flag.StringVar(&f.language, "lang", "", "Language code for transcription (e.g., en, es, fr). Empty = auto-detect")
	flag.IntVar(&f.speakers, "speakers", 0, "Expected number of speakers (0 = let the engine decide)")
	flag.StringVar(&f.metricsFile, "metrics-file", "", "Write session metrics to this file on exit")
	flag.StringVar(&f.profile, "profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	flag.BoolVar(&f.version, "version", false, "Print version and exit")
	flag.BoolVar(&f.crash, "crash", false, "Trigger synthetic panic for testing crash logging")
	flag.Parse()
	return f
}

// apply overrides cfg with every flag given on the command line.
func (f *flags) apply(cfg *config.Config) {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "device":
			cfg.Device = f.device
		case "tui":
			cfg.Output.TUI = f.tui
		case "no-color":
			cfg.Output.Color = !f.noColor
		case "loglevel":
			cfg.Log.Level = f.logLevel
		case "logpath":
			cfg.Log.Dir = f.logPath
		case "window":
			cfg.WindowSeconds = f.window
		case "speech":
			cfg.Speech.Engine = f.speech
		case "diarization":
			cfg.Diarization.Engine = f.diarization
		case "lang":
			cfg.Speech.Language = f.language
		case "speakers":
			cfg.Diarization.NumSpeakers = f.speakers
		case "metrics-file":
			cfg.MetricsFile = f.metricsFile
		}
	})
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), log.CrashFile)
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func run() int {
	config.LoadDefaultEnv()
	f := parseFlags()

	if f.version {
		fmt.Printf("murmur %s (%s)\n", version, audioBackend)
		return 0
	}

	cfg, err := config.Load(f.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	config.ApplyEnv(&cfg)
	f.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration:\n%v\n", err)
		return 1
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(cfg.Log.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	if f.profile != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", f.profile)
			if err := http.ListenAndServe(f.profile, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if f.crash {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if err := log.SetLevel(cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	var actx audio.Context
	if f.test {
		if flag.NArg() == 0 {
			fmt.Fprintln(os.Stderr, "Usage: murmur -test <wav-file>")
			return 1
		}
		actx, err = audio.NewFakeContext(flag.Arg(0), f.realtime)
	} else {
		actx, err = audio.NewContext()
	}
	if err != nil {
		log.Errorf("%v", &pipeline.DeviceError{Op: "init", Device: "audio context", Cause: err})
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return pipeline.ExitDeviceError
	}
	defer actx.Close()

	if f.listDevices {
		return listDevices(actx)
	}

	device, err := resolveDevice(actx, cfg.Device, f.setup)
	if err != nil {
		log.Errorf("%v", &pipeline.DeviceError{Op: "lookup", Device: cfg.Device, Cause: err})
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return pipeline.ExitDeviceError
	}

	speech, err := transcriber.New(cfg.Speech.Engine, cfg.SpeechOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	diar, err := diarizer.New(cfg.Diarization.Engine, cfg.DiarizationOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if tc, ok := diar.(interface{ HasToken() bool }); ok && !tc.HasToken() {
		log.Warn("HUGGINGFACE_TOKEN is not set; diarization model may fail to load")
		fmt.Fprintln(os.Stderr, "Warning: HUGGINGFACE_TOKEN is not set; diarization model may fail to load")
	}

	warmEngines(speech, diar)

	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	if f.doctor {
		return doctor.Run(ctx, doctor.Options{
			Audio:       actx,
			Device:      device,
			SampleRate:  cfg.SampleRate,
			Speech:      speech,
			Diarization: diar,
			Out:         os.Stdout,
		})
	}

	var view *tuiView
	var out sink.Sink
	if cfg.Output.TUI && !f.test {
		view = newTUIView()
		out = sink.Multi{sink.TranscriptLog{}, view}
	} else {
		color := cfg.Output.Color && term.IsTerminal(int(os.Stdout.Fd()))
		out = sink.Multi{sink.TranscriptLog{}, sink.NewConsole(os.Stdout, color)}
	}

	controller := pipeline.NewController(cfg.Pipeline(), actx, device, speech, diar, out)

	if f.test {
		go driveTestMode(ctx, cancel, controller, os.Stdin)
	}
	go watchSignal(ctx, controller, func(ev SilenceEvent) {
		reportSilence(ev, cfg.Output.TUI && !f.test)
		if view != nil {
			view.silence(ev)
		}
	})
	if view != nil {
		go view.run(ctx, cancel, controller, modeLineText(cfg, speech, diar), deviceLineText(device))
	} else {
		fmt.Fprintf(os.Stderr, "Listening on %s (%s + %s, %.1fs windows). Ctrl+C to stop.\n",
			deviceName(device), speech.Name(), diar.Name(), cfg.WindowSeconds)
	}

	code := controller.Run(ctx)
	if view != nil {
		view.quit()
		fmt.Printf("Transcript saved to %s\n", filepath.Join(log.Dir(), log.TranscriptFile))
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Warnf("metrics file: %v", err)
		}
	}
	switch code {
	case pipeline.ExitDeviceError:
		fmt.Fprintf(os.Stderr, "Error: could not capture from %s; see %s\n", deviceName(device), filepath.Join(log.Dir(), log.DiagnosticsFile))
	case pipeline.ExitShutdownTimeout:
		fmt.Fprintln(os.Stderr, "Warning: inference did not finish in time; pending windows were abandoned")
	}
	return code
}

// warmEngines opens connections to remote engines in the background so the
// first window does not pay for the handshake.
func warmEngines(engines ...any) {
	for _, e := range engines {
		w, ok := e.(interface{ Warm() time.Duration })
		if !ok {
			continue
		}
		go func() {
			if tls := w.Warm(); tls > 0 {
				log.Debugf("engine_warm tls_ms=%d", tls.Milliseconds())
			}
		}()
	}
}

func reportSilence(ev SilenceEvent, quiet bool) {
	switch ev {
	case SilenceWarn, SilenceRepeat:
		log.Warnf("no_signal: capture level below %.2f for %s", signalLevel, silenceWarnEvery)
		if !quiet {
			fmt.Fprintln(os.Stderr, "Warning: no signal from the microphone; check the device and input gain")
		}
	case SilenceWarnClear:
		log.Info("signal_resumed")
	}
}

func resolveDevice(actx audio.Context, query string, setup bool) (*audio.DeviceInfo, error) {
	if setup && query == "" {
		dev, err := audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			return nil, nil
		}
		return dev, nil
	}
	return audio.FindDevice(actx, query)
}

func listDevices(actx audio.Context) int {
	devices, err := actx.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error enumerating devices: %v\n", err)
		return pipeline.ExitDeviceError
	}
	for _, d := range devices {
		tag := ""
		if audio.IsBluetooth(d.Name) {
			tag = " [narrowband headset]"
		}
		fmt.Printf("%s%s\n", d.Name, tag)
	}
	return 0
}

func deviceName(dev *audio.DeviceInfo) string {
	if dev == nil {
		return "system default"
	}
	return dev.Name
}

func deviceLineText(dev *audio.DeviceInfo) string {
	suffix := ""
	if dev != nil && audio.IsBluetooth(dev.Name) {
		suffix = " (BT!)"
	}
	return "mic: " + deviceName(dev) + suffix
}

func modeLineText(cfg config.Config, speech transcriber.Engine, diar diarizer.Engine) string {
	speechLabel := speech.Name()
	if cfg.Speech.Language != "" {
		speechLabel += " (" + cfg.Speech.Language + ")"
	}
	return fmt.Sprintf("[%s | %s | %.1fs]", speechLabel, diar.Name(), cfg.WindowSeconds)
}

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DiagnosticsFile = "diagnostics_log.txt"
	TranscriptFile  = "transcribe_log.txt"
	CrashFile       = "crash_log.txt"
)

var (
	diagLog        zerolog.Logger
	diagWriter     *lumberjack.Logger
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
	level          = zerolog.InfoLevel
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: MURMUR_LOG_PATH environment variable
	if envPath := os.Getenv("MURMUR_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// SetLevel sets the minimum diagnostics level ("debug", "info", "warn", "error").
func SetLevel(name string) error {
	if name == "" {
		name = "info"
	}
	l, err := zerolog.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	logMu.Lock()
	level = l
	if logReady {
		diagLog = diagLog.Level(l)
	}
	logMu.Unlock()
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	transcribePath := filepath.Join(dir, TranscriptFile)
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	diagWriter = &lumberjack.Logger{
		Filename:   filepath.Join(dir, DiagnosticsFile),
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagWriter,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).Level(level).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	diagLog.Info().Str("dir", dir).Msg("log_open")
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagWriter != nil {
		diagWriter.Close()
		diagWriter = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

// emit runs f with the diagnostics logger while holding logMu, so no
// event is written once Close has run.
func emit(f func(l *zerolog.Logger)) {
	logMu.Lock()
	defer logMu.Unlock()
	if logReady {
		f(&diagLog)
	}
}

func Info(msg string) {
	emit(func(l *zerolog.Logger) { l.Info().Msg(msg) })
}

func Infof(format string, args ...any) {
	emit(func(l *zerolog.Logger) { l.Info().Msg(fmt.Sprintf(format, args...)) })
}

func Debugf(format string, args ...any) {
	emit(func(l *zerolog.Logger) { l.Debug().Msg(fmt.Sprintf(format, args...)) })
}

func Error(msg string) {
	emit(func(l *zerolog.Logger) { l.Error().Msg(msg) })
}

func Errorf(format string, args ...any) {
	emit(func(l *zerolog.Logger) { l.Error().Msg(fmt.Sprintf(format, args...)) })
}

func Warn(msg string) {
	emit(func(l *zerolog.Logger) { l.Warn().Msg(msg) })
}

func Warnf(format string, args ...any) {
	emit(func(l *zerolog.Logger) { l.Warn().Msg(fmt.Sprintf(format, args...)) })
}

// TranscriptionText appends one output line to the transcript log.
func TranscriptionText(text string) {
	logMu.Lock()
	defer logMu.Unlock()
	if !logReady || transcribeFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}

type WindowStats struct {
	Index     int
	StartS    float64
	Latency   time.Duration
	SpeechMs  float64
	DiarizeMs float64
	Segments  int
	Turns     int
	Lines     int
}

func Window(s WindowStats) {
	emit(func(l *zerolog.Logger) {
		l.Info().
			Int("index", s.Index).
			Float64("start_s", s.StartS).
			Int64("latency_ms", s.Latency.Milliseconds()).
			Float64("speech_ms", s.SpeechMs).
			Float64("diarize_ms", s.DiarizeMs).
			Int("segments", s.Segments).
			Int("turns", s.Turns).
			Int("lines", s.Lines).
			Msg("window")
	})
}

func WindowDropped(index, queueLen int) {
	emit(func(l *zerolog.Logger) {
		l.Info().
			Int("index", index).
			Int("queue_len", queueLen).
			Msg("window_dropped")
	})
}

func BufferDiscard(trimmed, remainder int) {
	emit(func(l *zerolog.Logger) {
		l.Debug().
			Int("trimmed", trimmed).
			Int("remainder", remainder).
			Msg("buffer_discard")
	})
}

func EngineError(engine string, index int, err error) {
	emit(func(l *zerolog.Logger) {
		l.Error().
			Str("engine", engine).
			Int("index", index).
			Err(err).
			Msg("engine_error")
	})
}

type Session struct {
	ID          string
	Device      string
	Speech      string
	Diarization string
	WindowS     float64
	SampleRate  int
	QueueCap    int
}

func SessionStart(s Session) {
	emit(func(l *zerolog.Logger) {
		l.Info().
			Str("session", s.ID).
			Str("device", s.Device).
			Str("speech", s.Speech).
			Str("diarization", s.Diarization).
			Float64("window_s", s.WindowS).
			Int("sample_rate", s.SampleRate).
			Int("queue_cap", s.QueueCap).
			Msg("session_start")
	})
}

func SessionEnd(id string, counts map[string]float64) {
	emit(func(l *zerolog.Logger) {
		ev := l.Info().Str("session", id)
		for k, v := range counts {
			ev = ev.Float64(k, v)
		}
		ev.Msg("session_end")
	})
}

package transcriber

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Segment is a span of recognized text, in seconds relative to the start
// of the audio passed to Transcribe.
type Segment struct {
	Start        float64
	End          float64
	Text         string
	NoSpeechProb float64
	AvgLogProb   float64
}

// Engine turns a window of mono samples in [-1, 1) into timed segments.
// Implementations may be called concurrently with a diarization engine but
// never concurrently with themselves.
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, samples []float32, sampleRate int) ([]Segment, error)
}

type Options struct {
	URL      string
	APIKey   string
	Model    string
	Language string
	Format   string // upload encoding for HTTP engines: flac or wav
}

type Factory func(Options) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a speech engine available by name. It panics on duplicates.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("transcriber: Register called twice for " + name)
	}
	registry[name] = f
}

func New(name string, opts Options) (Engine, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown speech engine %q (available: %v)", name, Names())
	}
	return f(opts)
}

func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

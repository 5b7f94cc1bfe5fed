package diarizer

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Turn is a span attributed to one speaker, in seconds relative to the
// start of the audio passed to Diarize. Turns may overlap and need not
// cover the whole window.
type Turn struct {
	Start   float64
	End     float64
	Speaker string
}

type Engine interface {
	Name() string
	Diarize(ctx context.Context, samples []float32, sampleRate int) ([]Turn, error)
}

type Options struct {
	URL         string
	APIKey      string
	NumSpeakers int // 0 lets the engine decide
}

type Factory func(Options) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a diarization engine available by name. It panics on duplicates.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("diarizer: Register called twice for " + name)
	}
	registry[name] = f
}

func New(name string, opts Options) (Engine, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown diarization engine %q (available: %v)", name, Names())
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

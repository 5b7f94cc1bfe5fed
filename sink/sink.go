// Package sink delivers aligned transcript lines to their destinations.
package sink

import (
	"sync"

	"murmur/align"
	"murmur/log"
)

// Sink receives the lines of one window, in order. Emit is called from a
// single goroutine.
type Sink interface {
	Emit(lines []align.Line)
}

type Func func(lines []align.Line)

func (f Func) Emit(lines []align.Line) { f(lines) }

// Multi fans out to every sink in order.
type Multi []Sink

func (m Multi) Emit(lines []align.Line) {
	for _, s := range m {
		s.Emit(lines)
	}
}

// TranscriptLog appends each line to the transcript log file.
type TranscriptLog struct{}

func (TranscriptLog) Emit(lines []align.Line) {
	for _, l := range lines {
		log.TranscriptionText(l.String())
	}
}

// Collector keeps every line in memory.
type Collector struct {
	mu    sync.Mutex
	lines []align.Line
}

func (c *Collector) Emit(lines []align.Line) {
	c.mu.Lock()
	c.lines = append(c.lines, lines...)
	c.mu.Unlock()
}

func (c *Collector) Lines() []align.Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]align.Line(nil), c.lines...)
}

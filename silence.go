package main

import (
	"context"
	"time"

	"murmur/pipeline"
)

const (
	tickInterval       = 100 * time.Millisecond
	silenceWarnEvery   = 8 * time.Second
	silenceRepeatEvery = 30 * time.Second
	signalLevel        = 0.01 // capture RMS that counts as signal
	speechMinRatio     = 0.10
	speechClearRatio   = 0.25 // higher threshold to clear warning (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // no signal for silenceWarnEvery
	SilenceWarnClear              // signal resumed after warning
	SilenceRepeat                 // still silent, every silenceRepeatEvery
)

// silenceMonitor tracks a sliding window of per-tick signal flags.
type silenceMonitor struct {
	warnAt    int
	repeatAt  int
	windowSz  int
	ticks     int
	window    []bool
	warned    bool
	lastEvent int
}

func newSilenceMonitor() *silenceMonitor {
	warnAt := int(silenceWarnEvery / tickInterval)
	return &silenceMonitor{
		warnAt:   warnAt,
		repeatAt: int(silenceRepeatEvery / tickInterval),
		windowSz: warnAt,
		window:   make([]bool, warnAt),
	}
}

func (m *silenceMonitor) ratio() float64 {
	n := min(m.ticks, m.windowSz)
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSignal bool) SilenceEvent {
	m.window[m.ticks%m.windowSz] = hasSignal
	m.ticks++

	r := m.ratio()
	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastEvent = m.ticks
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}
	if m.warned && m.ticks-m.lastEvent >= m.repeatAt {
		m.lastEvent = m.ticks
		return SilenceRepeat
	}
	return SilenceNone
}

// watchSignal samples the capture level of c every tick once capture is
// running and reports silence transitions to notify until ctx is done.
func watchSignal(ctx context.Context, c *pipeline.Controller, notify func(SilenceEvent)) {
	select {
	case <-c.Ready():
	case <-ctx.Done():
		return
	}
	m := newSilenceMonitor()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ev := m.Tick(c.Status().Level >= signalLevel); ev != SilenceNone {
				notify(ev)
			}
		}
	}
}

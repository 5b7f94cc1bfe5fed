package pipeline

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"murmur/audio"
	"murmur/log"
	"murmur/metrics"
)

// Source turns capture callbacks into windows on a WindowQueue. The
// callback path only takes the sample buffer lock and the queue's push
// lock, so it never waits on inference.
type Source struct {
	buf   *audio.SampleBuffer
	queue *WindowQueue

	mu      sync.Mutex
	device  audio.CaptureDevice
	stopped atomic.Bool
	level   atomic.Uint64 // float64 bits of the last block's RMS
}

func NewSource(buf *audio.SampleBuffer, queue *WindowQueue) *Source {
	return &Source{buf: buf, queue: queue}
}

// Start registers the callback and starts the device.
func (s *Source) Start(dev audio.CaptureDevice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.device = dev
	dev.SetCallback(s.OnSamples)
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		return &DeviceError{Op: "start", Device: dev.DeviceName(), Cause: err}
	}
	return nil
}

// Stop halts the device. Callbacks that race with Stop are discarded.
func (s *Source) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device != nil {
		s.device.Stop()
		s.device.ClearCallback()
	}
}

// Level is the RMS of the most recent capture block, in [0, 1].
func (s *Source) Level() float64 {
	return math.Float64frombits(s.level.Load())
}

func (s *Source) OnSamples(data []byte, _ uint32) {
	if s.stopped.Load() {
		return
	}
	samples := audio.BytesToInt16(data)
	s.level.Store(math.Float64bits(audio.RMS(samples)))

	win, ok, d := s.buf.Push(samples, time.Now())
	if d.Trimmed > 0 || d.Remainder > 0 {
		metrics.RecordDiscard("trim", d.Trimmed)
		metrics.RecordDiscard("remainder", d.Remainder)
		log.BufferDiscard(d.Trimmed, d.Remainder)
	}
	if !ok {
		return
	}

	metrics.RecordWindow(metrics.StatusCaptured)
	evicted, dropped, pushed := s.queue.Push(win)
	if dropped {
		metrics.RecordWindow(metrics.StatusDropped)
		log.WindowDropped(evicted.Index, s.queue.Len())
	}
	if pushed {
		metrics.SetQueueDepth(s.queue.Len())
	}
}

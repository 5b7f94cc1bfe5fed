package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"murmur/audio"
	"murmur/diarizer"
	"murmur/log"
	"murmur/metrics"
	"murmur/sink"
	"murmur/transcriber"
)

type Config struct {
	WindowDuration time.Duration
	SampleRate     int
	QueueCapacity  int
	ShutdownGrace  time.Duration // zero means WindowDuration + 2s
	Gain           float64
}

func DefaultConfig() Config {
	return Config{
		WindowDuration: 5 * time.Second,
		SampleRate:     16000,
		QueueCapacity:  4,
	}
}

func (c Config) WindowSize() int {
	return int(math.Round(c.WindowDuration.Seconds() * float64(c.SampleRate)))
}

func (c Config) Grace() time.Duration {
	if c.ShutdownGrace > 0 {
		return c.ShutdownGrace
	}
	return c.WindowDuration + 2*time.Second
}

// Status is a point-in-time view of a running pipeline.
type Status struct {
	Running     bool
	QueueLen    int
	QueueCap    int
	WorkerState State
	Processed   int64
	Failed      int64
	Level       float64
}

// Controller owns the lifecycle of one capture session: it opens the
// device, wires source, queue and worker together, and tears them down in
// order when its context is cancelled.
type Controller struct {
	cfg    Config
	actx   audio.Context
	device *audio.DeviceInfo
	speech transcriber.Engine
	diar   diarizer.Engine
	out    sink.Sink

	SessionID string

	mu      sync.Mutex
	source  *Source
	queue   *WindowQueue
	worker  *Worker
	capture audio.CaptureDevice
	ready   chan struct{}
}

// NewController prepares a session. device may be nil for the system default.
func NewController(cfg Config, actx audio.Context, device *audio.DeviceInfo, speech transcriber.Engine, diar diarizer.Engine, out sink.Sink) *Controller {
	return &Controller{
		cfg:       cfg,
		actx:      actx,
		device:    device,
		speech:    speech,
		diar:      diar,
		out:       out,
		SessionID: uuid.NewString(),
		ready:     make(chan struct{}),
	}
}

// Ready is closed once capture is running.
func (c *Controller) Ready() <-chan struct{} { return c.ready }

// Capture returns the open capture device, or nil before Ready.
func (c *Controller) Capture() audio.CaptureDevice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.worker == nil {
		return Status{}
	}
	return Status{
		Running:     c.worker.State() != StateStopped,
		QueueLen:    c.queue.Len(),
		QueueCap:    c.queue.Cap(),
		WorkerState: c.worker.State(),
		Processed:   c.worker.Processed(),
		Failed:      c.worker.Failed(),
		Level:       c.source.Level(),
	}
}

// Run captures and transcribes until ctx is cancelled, then shuts down and
// returns a process exit code.
func (c *Controller) Run(ctx context.Context) int {
	deviceName := "system default"
	if c.device != nil {
		deviceName = c.device.Name
	}

	dev, err := c.actx.NewCapture(c.device, audio.CaptureConfig{
		SampleRate: uint32(c.cfg.SampleRate),
		Channels:   1,
		Gain:       c.cfg.Gain,
	})
	if err != nil {
		log.Errorf("%v", &DeviceError{Op: "open", Device: deviceName, Cause: err})
		return ExitDeviceError
	}
	defer dev.Close()

	queue := NewWindowQueue(c.cfg.QueueCapacity)
	worker := NewWorker(c.speech, c.diar, c.out)
	source := NewSource(audio.NewSampleBuffer(c.cfg.WindowSize(), c.cfg.SampleRate), queue)

	c.mu.Lock()
	c.capture, c.queue, c.worker, c.source = dev, queue, worker, source
	c.mu.Unlock()

	// The worker outlives ctx so queued windows drain; it is only
	// cancelled when the grace period runs out.
	workerCtx, cancelWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWorker()
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(workerCtx, queue)
	}()

	if err := source.Start(dev); err != nil {
		log.Errorf("%v", err)
		queue.Close()
		<-done
		return ExitDeviceError
	}

	log.SessionStart(log.Session{
		ID:          c.SessionID,
		Device:      dev.DeviceName(),
		Speech:      c.speech.Name(),
		Diarization: c.diar.Name(),
		WindowS:     c.cfg.WindowDuration.Seconds(),
		SampleRate:  c.cfg.SampleRate,
		QueueCap:    queue.Cap(),
	})
	close(c.ready)

	<-ctx.Done()

	code := ExitOK
	if err := c.shutdown(source, queue, done); err != nil {
		log.Warnf("%v after %s, forcing termination", err, c.cfg.Grace())
		cancelWorker()
		code = ExitShutdownTimeout
	}
	log.SessionEnd(c.SessionID, metrics.Snapshot())
	return code
}

// shutdown stops capture, closes the queue and waits for the worker to
// drain it.
func (c *Controller) shutdown(source *Source, queue *WindowQueue, done <-chan struct{}) error {
	source.Stop()
	queue.Close()
	select {
	case <-done:
		return nil
	case <-time.After(c.cfg.Grace()):
		return ErrShutdownTimeout
	}
}

// IsDeviceError reports whether err came from opening or starting capture.
func IsDeviceError(err error) bool {
	var de *DeviceError
	return errors.As(err, &de)
}

package pipeline

import (
	"errors"
	"fmt"
)

// Process exit codes returned by Controller.Run.
const (
	ExitOK              = 0
	ExitDeviceError     = 1
	ExitShutdownTimeout = 2
)

var ErrShutdownTimeout = errors.New("inference worker did not stop within the grace period")

// DeviceError is fatal: the capture device could not be opened or started.
type DeviceError struct {
	Op     string // open or start
	Device string
	Cause  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("capture device %q: %s: %v", e.Device, e.Op, e.Cause)
}

func (e *DeviceError) Unwrap() error { return e.Cause }

// EngineError means one inference call failed; only that window is lost.
type EngineError struct {
	Engine string // speech or diarization
	Window int
	Cause  error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s engine failed on window %d: %v", e.Engine, e.Window, e.Cause)
}

func (e *EngineError) Unwrap() error { return e.Cause }

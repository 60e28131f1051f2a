// Package device defines the boundary this system shares with the foreign
// depth-camera driver library named in spec.md: device open/close, per-stream
// callback registration, start/stop, LED control, and the blocking
// event-pump loop. The interface has no call for selecting a stream's mode.
// Nothing in this package talks to real hardware; internal
// hub owns the only Driver instance and drives it from its own goroutine.
package device

import (
	"context"
	"errors"
	"time"
)

// LEDState mirrors the small fixed set of indicator colors the driver
// accepts.
type LEDState int

const (
	LEDOff LEDState = iota
	LEDGreen
	LEDRed
	LEDYellow
	LEDBlinkRedYellow
	LEDBlinkGreen
)

func (s LEDState) String() string {
	switch s {
	case LEDOff:
		return "off"
	case LEDGreen:
		return "green"
	case LEDRed:
		return "red"
	case LEDYellow:
		return "yellow"
	case LEDBlinkRedYellow:
		return "blink-red-yellow"
	case LEDBlinkGreen:
		return "blink-green"
	default:
		return "unknown"
	}
}

// ErrStopRequested is returned by a RunLoop tick callback to ask the loop to
// exit after the current round, and by RunLoop itself once it has done so.
var ErrStopRequested = errors.New("device: stop requested")

// DepthCallback receives one raw depth frame as it arrives from the device.
// raw is row-major, device resolution, 11-bit samples widened to uint16.
type DepthCallback func(raw []uint16, w, h int, ts time.Time)

// VideoCallback receives one raw color frame as it arrives from the device.
// rgb is row-major, 3 bytes/pixel, device resolution.
type VideoCallback func(rgb []byte, w, h int, ts time.Time)

// Driver is the foreign device library's surface as consumed by internal/hub.
// An implementation is expected to be driven from a single goroutine: Open,
// the Set*/Start*/Stop* calls, and RunLoop are never called concurrently with
// each other.
type Driver interface {
	// Open acquires the device. It must be called before any other method.
	Open(ctx context.Context) error
	// Close releases the device. Idempotent.
	Close() error

	SetDepthCallback(cb DepthCallback)
	SetVideoCallback(cb VideoCallback)

	StartDepth() error
	StopDepth() error
	StartVideo() error
	StopVideo() error

	// SetLED applies the indicator color. Implementations may defer the
	// actual write to the next RunLoop tick.
	SetLED(state LEDState) error

	// RunLoop pumps one round of device events (which may invoke the
	// registered callbacks zero or more times), then calls tick exactly
	// once. RunLoop returns when tick returns ErrStopRequested, when ctx is
	// canceled, or when the underlying device reports a fatal error - in the
	// last case the error is not ErrStopRequested and the caller must treat
	// the device as dead.
	RunLoop(ctx context.Context, tick func() error) error
}

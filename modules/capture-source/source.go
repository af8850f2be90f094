// Package capturesource defines the device-side collaborator of the capture
// session: something that can be opened in a capture mode, asked for one
// frame at a time, and closed.
//
// Buffer ownership: a NativeBuffer returned by Capture belongs to the caller
// until Release is called. Release returns the memory to the source and is
// safe to call more than once.
package capturesource

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

var (
	// ErrInvalidHandle is returned for a handle that is not open.
	ErrInvalidHandle = errors.New("capture-source: invalid handle")

	// ErrDeviceBusy is returned when the device is already open.
	ErrDeviceBusy = errors.New("capture-source: device busy")

	// ErrCaptureTimeout is returned when no frame arrived before the deadline.
	ErrCaptureTimeout = errors.New("capture-source: capture timeout")

	// ErrDevice wraps device-level failures (I/O, stream errors).
	ErrDevice = errors.New("capture-source: device error")
)

// Handle identifies an open device configuration.
type Handle uint64

// DeviceConfig is the capture mode the device is opened in.
type DeviceConfig struct {
	DeviceID    uint32
	DevicePath  string
	Width       int
	Height      int
	Format      metadata.PixelFormat
	FPS         int
	BufferCount int
}

// Size returns the configured capture size.
func (c DeviceConfig) Size() metadata.Size {
	return metadata.Size{Width: c.Width, Height: c.Height}
}

// Validate checks the config is usable.
func (c DeviceConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("capture-source: invalid size %dx%d", c.Width, c.Height)
	}
	if c.Format == "" {
		return fmt.Errorf("capture-source: format is required")
	}
	if c.FPS <= 0 {
		return fmt.Errorf("capture-source: invalid fps %d", c.FPS)
	}
	return nil
}

// Source is the capture device contract.
//
// Implementations must guarantee:
//   - Capture honours ctx (deadline and cancellation)
//   - Close is idempotent for a given handle
//   - every NativeBuffer returned by Capture is independent of later captures
type Source interface {
	// Open configures the device for one capture mode.
	Open(cfg DeviceConfig) (Handle, error)

	// Capture blocks until one frame is available, applying controls.
	Capture(ctx context.Context, h Handle, controls metadata.Controls) (*NativeBuffer, error)

	// Close stops the device and invalidates h.
	Close(h Handle) error
}

// NativeBuffer is one captured frame in the device's native layout.
type NativeBuffer struct {
	Data      []byte
	Width     int
	Height    int
	Stride    int
	Format    metadata.PixelFormat
	Seq       uint64
	Timestamp time.Time
	// TraceID follows the frame into the capture result.
	TraceID string
	Report  metadata.SensorReport

	release  func()
	released atomic.Bool
}

// SetReleaseFunc installs the function Release calls exactly once.
func (b *NativeBuffer) SetReleaseFunc(fn func()) {
	b.release = fn
}

// Release hands the buffer back to its source. Data must not be used after.
func (b *NativeBuffer) Release() {
	if b == nil || !b.released.CompareAndSwap(false, true) {
		return
	}
	if b.release != nil {
		b.release()
	}
}

// Released reports whether Release has been called.
func (b *NativeBuffer) Released() bool {
	return b.released.Load()
}

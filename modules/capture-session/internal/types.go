package internal

import (
	"fmt"
	"time"

	capturesource "github.com/e7canasta/orion-care-sensor/modules/capture-source"
	"github.com/e7canasta/orion-care-sensor/modules/metadata"
	"github.com/e7canasta/orion-care-sensor/modules/properties"
)

// Stream is one output channel requested by the caller.
type Stream struct {
	ID     uint32
	Width  int
	Height int
	Format metadata.PixelFormat
	Usage  metadata.StreamUsage
}

// HalStream is the device-confirmed shape of a configured stream.
type HalStream struct {
	ID     uint32
	Width  int
	Height int
	// Format is what the caller asked for, OverrideFormat what will be written.
	Format         metadata.PixelFormat
	OverrideFormat metadata.PixelFormat
	ProducerUsage  metadata.StreamUsage
	MaxBuffers     int
}

// OutputBuffer is a caller-owned destination for one stream of a request.
type OutputBuffer struct {
	StreamID uint32
	BufferID uint64
	Data     []byte
}

// CaptureRequest targets one pipeline within a frame. Nil Settings reuse the
// last settings submitted for the pipeline.
type CaptureRequest struct {
	PipelineID    uint32
	OutputBuffers []OutputBuffer
	Settings      *metadata.Controls
}

// BufferStatus is the per-buffer outcome.
type BufferStatus int

const (
	BufferStatusOK BufferStatus = iota
	BufferStatusError
)

func (s BufferStatus) String() string {
	if s == BufferStatusOK {
		return "ok"
	}
	return "error"
}

// StreamBuffer is one output buffer in a result. Data is the caller's buffer.
type StreamBuffer struct {
	StreamID  uint32
	BufferID  uint64
	Data      []byte
	BytesUsed int
	Status    BufferStatus
	Err       error
}

// CaptureResult answers one CaptureRequest. Err is set when the whole request
// failed (capture failure or cancellation); per-buffer failures are reported
// in OutputBuffers only.
type CaptureResult struct {
	FrameNumber   uint32
	PipelineID    uint32
	OutputBuffers []StreamBuffer
	Metadata      *metadata.ResultMetadata
	Err           error
	TraceID       string
}

// Callback receives results for a pipeline. It is never called with the
// session lock held, so it may call SubmitRequests. It must not call Flush or
// DestroyPipelines.
type Callback interface {
	ProcessPipelineResult(result *CaptureResult)
}

// NotifyType distinguishes notifications.
type NotifyType int

const (
	NotifyShutter NotifyType = iota
	NotifyError
)

// ErrorCode scopes an error notification.
type ErrorCode int

const (
	// ErrorRequest means the whole request produced no image.
	ErrorRequest ErrorCode = iota
	// ErrorBuffer means one output buffer failed.
	ErrorBuffer
)

// NotifyMessage is sent ahead of the matching result.
type NotifyMessage struct {
	Type        NotifyType
	FrameNumber uint32
	PipelineID  uint32
	Timestamp   time.Time
	ErrorCode   ErrorCode
	StreamID    uint32
}

// Notifier is optionally implemented by a Callback.
type Notifier interface {
	Notify(msg NotifyMessage)
}

// CallbackFuncs adapts plain functions to Callback and Notifier.
type CallbackFuncs struct {
	ResultFunc func(result *CaptureResult)
	NotifyFunc func(msg NotifyMessage)
}

func (f CallbackFuncs) ProcessPipelineResult(result *CaptureResult) {
	if f.ResultFunc != nil {
		f.ResultFunc(result)
	}
}

func (f CallbackFuncs) Notify(msg NotifyMessage) {
	if f.NotifyFunc != nil {
		f.NotifyFunc(msg)
	}
}

const (
	DefaultCaptureTimeout    = 2 * time.Second
	DefaultScratchBudget     = 64 << 20
	DefaultDeviceBufferCount = 4
)

// Config configures a session.
type Config struct {
	// CameraID is the device the session reports characteristics for.
	CameraID uint32

	Source     capturesource.Source
	Properties properties.Provider

	// CaptureTimeout bounds one device capture (default 2s).
	CaptureTimeout time.Duration

	// ScratchBudget caps conversion working memory allocated at build
	// (default 64 MiB).
	ScratchBudget int

	// DeviceBufferCount is the buffer count requested from the device and
	// reported as HalStream.MaxBuffers (default 4).
	DeviceBufferCount int
}

// Validate fills defaults and rejects unusable values.
func (c *Config) Validate() error {
	if c.Source == nil {
		return fmt.Errorf("capture source is required")
	}
	if c.Properties == nil {
		return fmt.Errorf("properties provider is required")
	}
	if c.CaptureTimeout < 0 || c.ScratchBudget < 0 || c.DeviceBufferCount < 0 {
		return fmt.Errorf("negative limits are not allowed")
	}
	if c.CaptureTimeout == 0 {
		c.CaptureTimeout = DefaultCaptureTimeout
	}
	if c.ScratchBudget == 0 {
		c.ScratchBudget = DefaultScratchBudget
	}
	if c.DeviceBufferCount == 0 {
		c.DeviceBufferCount = DefaultDeviceBufferCount
	}
	return nil
}

// Stats is a snapshot of session counters.
type Stats struct {
	State             string
	Pipelines         int
	FramesSubmitted   uint64
	ResultsDelivered  uint64
	CaptureFailures   uint64
	BufferFailures    uint64
	RequestsCancelled uint64
	QueueDepth        int
	InFlight          bool
	LastFrameNumber   uint32
	DeviceReopens     uint64
}

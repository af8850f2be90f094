package capturesession

import (
	"github.com/e7canasta/orion-care-sensor/modules/capture-session/internal"
	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

// Types re-exported from internal package to keep one definition.
type (
	Stream         = internal.Stream
	HalStream      = internal.HalStream
	OutputBuffer   = internal.OutputBuffer
	CaptureRequest = internal.CaptureRequest
	CaptureResult  = internal.CaptureResult
	StreamBuffer   = internal.StreamBuffer
	BufferStatus   = internal.BufferStatus
	Callback       = internal.Callback
	Notifier       = internal.Notifier
	NotifyMessage  = internal.NotifyMessage
	NotifyType     = internal.NotifyType
	ErrorCode      = internal.ErrorCode
	CallbackFuncs  = internal.CallbackFuncs
	Config         = internal.Config
	Stats          = internal.Stats
)

const (
	BufferStatusOK    = internal.BufferStatusOK
	BufferStatusError = internal.BufferStatusError

	NotifyShutter = internal.NotifyShutter
	NotifyError   = internal.NotifyError

	ErrorRequest = internal.ErrorRequest
	ErrorBuffer  = internal.ErrorBuffer

	DefaultCaptureTimeout    = internal.DefaultCaptureTimeout
	DefaultScratchBudget     = internal.DefaultScratchBudget
	DefaultDeviceBufferCount = internal.DefaultDeviceBufferCount
)

// Errors. Per-frame and per-buffer errors arrive in CaptureResult, never from
// the entry points.
var (
	ErrInvalidState           = internal.ErrInvalidState
	ErrInvalidStreamConfig    = internal.ErrInvalidStreamConfig
	ErrUnknownPipeline        = internal.ErrUnknownPipeline
	ErrDuplicateFrame         = internal.ErrDuplicateFrame
	ErrInvalidRequest         = internal.ErrInvalidRequest
	ErrResourceExhausted      = internal.ErrResourceExhausted
	ErrCaptureFailed          = internal.ErrCaptureFailed
	ErrBufferConversionFailed = internal.ErrBufferConversionFailed
	ErrRequestCancelled       = internal.ErrRequestCancelled
)

// Session is the public interface of a capture session.
//
// Lifecycle: New → ConfigurePipeline (one or more) → BuildPipelines →
// SubmitRequests / Flush → DestroyPipelines.
//
// Thread-safety: all methods are safe for concurrent use. Callbacks may call
// SubmitRequests but must not call Flush or DestroyPipelines.
type Session interface {
	// CameraID returns the camera the session was created for.
	CameraID() uint32

	// GetCameraCharacteristics returns a copy of the static properties.
	GetCameraCharacteristics() (*metadata.Characteristics, error)

	// ConstructDefaultRequestSettings returns template default controls.
	ConstructDefaultRequestSettings(kind metadata.TemplateKind) (metadata.Controls, error)

	// ConfigurePipeline validates streams against device deviceID and
	// registers a pipeline delivering results to cb.
	//
	// Errors: ErrInvalidStreamConfig, ErrInvalidState (after build).
	ConfigurePipeline(deviceID uint32, cb Callback, streams []Stream) (uint32, []HalStream, error)

	// BuildPipelines freezes the configured pipelines and allocates
	// conversion scratch. Idempotent once built.
	//
	// Errors: ErrInvalidState (nothing configured, destroyed),
	// ErrResourceExhausted (scratch over budget; session stays unbuilt).
	BuildPipelines() error

	// SubmitRequests enqueues one frame and returns immediately. Results
	// arrive through each pipeline's callback in frame-number order.
	//
	// Errors: ErrInvalidState, ErrDuplicateFrame, ErrUnknownPipeline,
	// ErrInvalidRequest. A rejected frame leaves the queue unchanged.
	SubmitRequests(frameNumber uint32, requests []CaptureRequest) error

	// Flush answers every unclaimed request with ErrRequestCancelled and
	// blocks until the in-flight request has been delivered. Pipelines stay
	// built.
	Flush() error

	// DestroyPipelines flushes, stops the worker, closes the device and
	// clears all pipelines. Terminal; a second call is a no-op.
	DestroyPipelines()

	// GetConfiguredStreams returns the confirmed streams of a pipeline.
	//
	// Errors: ErrUnknownPipeline.
	GetConfiguredStreams(pipelineID uint32) ([]HalStream, error)

	// Stats returns a counter snapshot.
	Stats() Stats
}

// New creates a session for cfg.CameraID. Zero-valued limits in cfg take
// their defaults.
func New(cfg Config) (Session, error) {
	s, err := internal.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

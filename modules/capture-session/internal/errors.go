package internal

import "errors"

var (
	// ErrInvalidState is returned when an operation does not fit the
	// session lifecycle phase.
	ErrInvalidState = errors.New("capture-session: invalid state")

	// ErrInvalidStreamConfig is returned for an unsupported stream set.
	ErrInvalidStreamConfig = errors.New("capture-session: invalid stream config")

	// ErrUnknownPipeline is returned for a pipeline id not in the registry.
	ErrUnknownPipeline = errors.New("capture-session: unknown pipeline")

	// ErrDuplicateFrame is returned for a frame number at or below the
	// highest one already submitted.
	ErrDuplicateFrame = errors.New("capture-session: duplicate frame number")

	// ErrInvalidRequest is returned for a malformed request.
	ErrInvalidRequest = errors.New("capture-session: invalid request")

	// ErrResourceExhausted is returned when build cannot allocate scratch.
	ErrResourceExhausted = errors.New("capture-session: resource exhausted")

	// ErrCaptureFailed is delivered in a result when the device failed.
	ErrCaptureFailed = errors.New("capture-session: capture failed")

	// ErrBufferConversionFailed is delivered per buffer.
	ErrBufferConversionFailed = errors.New("capture-session: buffer conversion failed")

	// ErrRequestCancelled is delivered for requests drained by Flush.
	ErrRequestCancelled = errors.New("capture-session: request cancelled")
)

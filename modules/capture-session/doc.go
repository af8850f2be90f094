// Package capturesession runs asynchronous camera capture requests against a
// capture source.
//
// # Model
//
// A session owns one camera. Callers configure one or more pipelines (a set
// of output streams bound to a device), build them once, then submit frames.
// Each frame carries one CaptureRequest per targeted pipeline; every request
// is answered by exactly one CaptureResult delivered to the pipeline's
// callback.
//
//	caller ──SubmitRequests──▶ Request Queue ──claim lowest frame──▶ Capture Worker
//	                                                                   │
//	                          capture source ◀──Open/Capture/Close─────┤
//	                          buffer adapter ◀──convert per buffer─────┤
//	caller ◀──────────────── ProcessPipelineResult (outside the lock) ─┘
//
// # Ordering
//
// Frame numbers must strictly increase. The worker serves frames lowest
// first and delivers each result before claiming the next frame, so results
// reach each pipeline in frame-number order. Flush answers queued frames
// with ErrRequestCancelled after the in-flight frame has been delivered.
//
// # Errors
//
// Configuration errors (ErrInvalidState, ErrInvalidStreamConfig,
// ErrResourceExhausted) and bad input (ErrUnknownPipeline, ErrDuplicateFrame,
// ErrInvalidRequest) are returned from the entry points. Device failures
// (ErrCaptureFailed), conversion failures (ErrBufferConversionFailed) and
// cancellations (ErrRequestCancelled) are only ever delivered inside results.
//
// # Basic Usage
//
//	sess, err := capturesession.New(capturesession.Config{
//	    Source:     capturesource.NewMockSource(capturesource.MockConfig{}),
//	    Properties: properties.NewDefaultStore(),
//	})
//	id, _, err := sess.ConfigurePipeline(0, cb, []capturesession.Stream{
//	    {ID: 0, Width: 640, Height: 480, Format: metadata.FormatNV12, Usage: metadata.UsagePreview},
//	})
//	err = sess.BuildPipelines()
//	settings, _ := sess.ConstructDefaultRequestSettings(metadata.TemplatePreview)
//	err = sess.SubmitRequests(1, []capturesession.CaptureRequest{{
//	    PipelineID:    id,
//	    OutputBuffers: []capturesession.OutputBuffer{{StreamID: 0, Data: buf}},
//	    Settings:      &settings,
//	}})
//	defer sess.DestroyPipelines()
package capturesession

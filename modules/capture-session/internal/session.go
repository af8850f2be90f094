// Package internal implements the capture session.
//
// This package is INTERNAL - clients MUST use public API in parent package.
//
// Concurrency: one mutex guards the registry, the request queue, the 3A state
// and the lifecycle flags. Two condition variables share it: wake (the worker
// waits for work or shutdown) and idle (Flush waits for the in-flight frame to
// be delivered). Callbacks are always invoked without the lock held.
package internal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	bufferadapter "github.com/e7canasta/orion-care-sensor/modules/buffer-adapter"
	capturesource "github.com/e7canasta/orion-care-sensor/modules/capture-source"
	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

type lifecycle int

const (
	stateConfiguring lifecycle = iota
	stateBuilt
	stateDestroyed
)

func (l lifecycle) String() string {
	switch l {
	case stateConfiguring:
		return "configuring"
	case stateBuilt:
		return "built"
	default:
		return "destroyed"
	}
}

// Session is the concrete capture session (returned by New in the parent
// package behind the Session interface).
type Session struct {
	cfg   Config
	chars *metadata.Characteristics

	mu   sync.Mutex
	wake *sync.Cond // worker: queue non-empty, flush finished, shutdown
	idle *sync.Cond // flush: in-flight frame delivered

	state    lifecycle
	registry *registry
	queue    requestQueue
	auto     autoControlState

	inFlight      bool
	inFlightFrame uint32
	delivering    bool
	flushing      int
	shutdown      bool
	workerStarted bool

	stats sessionCounters

	// device is touched only by the worker, and by DestroyPipelines after
	// the worker has exited.
	device deviceState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type deviceState struct {
	open   bool
	handle capturesource.Handle
	cfg    capturesource.DeviceConfig
	// stale is set when the handle was closed after a device error.
	stale bool
}

type sessionCounters struct {
	framesSubmitted   uint64
	resultsDelivered  uint64
	captureFailures   uint64
	bufferFailures    uint64
	requestsCancelled uint64
	lastFrameNumber   uint32
	deviceReopens     uint64
}

// NewSession validates cfg and loads the camera's static characteristics.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("capture-session: %w", err)
	}

	chars, err := cfg.Properties.GetStaticCharacteristics(cfg.CameraID)
	if err != nil {
		return nil, fmt.Errorf("capture-session: camera %d: %w", cfg.CameraID, err)
	}

	s := &Session{
		cfg:      cfg,
		chars:    chars,
		registry: newRegistry(),
	}
	s.wake = sync.NewCond(&s.mu)
	s.idle = sync.NewCond(&s.mu)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	slog.Info("capture-session: session created",
		"camera_id", cfg.CameraID,
		"sensor", chars.Name,
		"capture_timeout", cfg.CaptureTimeout,
		"scratch_budget", cfg.ScratchBudget,
	)
	return s, nil
}

// CameraID returns the session's camera.
func (s *Session) CameraID() uint32 {
	return s.cfg.CameraID
}

// GetCameraCharacteristics returns a copy of the camera's static properties.
func (s *Session) GetCameraCharacteristics() (*metadata.Characteristics, error) {
	return s.chars.Clone(), nil
}

// ConstructDefaultRequestSettings returns the default controls for a template.
func (s *Session) ConstructDefaultRequestSettings(kind metadata.TemplateKind) (metadata.Controls, error) {
	c, err := s.cfg.Properties.GetDefaultControls(kind)
	if err != nil {
		return metadata.Controls{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return c, nil
}

// ConfigurePipeline validates streams against the device and registers a
// new pipeline.
func (s *Session) ConfigurePipeline(deviceID uint32, cb Callback, streams []Stream) (uint32, []HalStream, error) {
	if cb == nil {
		return 0, nil, fmt.Errorf("%w: callback is required", ErrInvalidStreamConfig)
	}

	chars, err := s.cfg.Properties.GetStaticCharacteristics(deviceID)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: device %d: %v", ErrInvalidStreamConfig, deviceID, err)
	}

	hal, err := negotiateStreams(chars, streams, s.cfg.DeviceBufferCount)
	if err != nil {
		return 0, nil, err
	}

	p := &pipeline{
		deviceID: deviceID,
		chars:    chars,
		streams:  append([]Stream(nil), streams...),
		hal:      hal,
		callback: cb,
	}
	if n, ok := cb.(Notifier); ok {
		p.notifier = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateConfiguring {
		return 0, nil, fmt.Errorf("%w: cannot configure a %s session", ErrInvalidState, s.state)
	}
	id := s.registry.add(p)

	slog.Info("capture-session: pipeline configured",
		"pipeline_id", id,
		"device_id", deviceID,
		"streams", len(hal),
	)
	return id, append([]HalStream(nil), hal...), nil
}

// BuildPipelines freezes the registry and allocates per-stream scratch.
func (s *Session) BuildPipelines() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateBuilt:
		return nil
	case stateDestroyed:
		return fmt.Errorf("%w: session destroyed", ErrInvalidState)
	}
	if s.registry.len() == 0 {
		return fmt.Errorf("%w: no pipelines configured", ErrInvalidState)
	}

	pipelines := s.registry.ordered()

	total := 0
	for _, p := range pipelines {
		for _, h := range p.hal {
			total += bufferadapter.ScratchSize(h.Width, h.Height, h.OverrideFormat)
		}
	}
	if total > s.cfg.ScratchBudget {
		return fmt.Errorf("%w: scratch needs %d bytes, budget is %d",
			ErrResourceExhausted, total, s.cfg.ScratchBudget)
	}

	for _, p := range pipelines {
		p.scratch = make(map[uint32]*bufferadapter.Scratch, len(p.hal))
		for _, h := range p.hal {
			p.scratch[h.ID] = bufferadapter.NewScratch(h.Width, h.Height, h.OverrideFormat)
		}
	}
	s.state = stateBuilt

	if !s.workerStarted {
		s.workerStarted = true
		s.wg.Add(1)
		go s.workerLoop()
	}

	slog.Info("capture-session: pipelines built",
		"pipelines", len(pipelines),
		"scratch_bytes", total,
	)
	return nil
}

// SubmitRequests validates and enqueues every request of one frame. Either
// all requests are queued or none is.
func (s *Session) SubmitRequests(frameNumber uint32, requests []CaptureRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateBuilt {
		return fmt.Errorf("%w: cannot submit to a %s session", ErrInvalidState, s.state)
	}
	if !s.queue.admits(frameNumber) {
		return fmt.Errorf("%w: %d (highest submitted is %d)", ErrDuplicateFrame, frameNumber, s.queue.highest)
	}
	if len(requests) == 0 {
		return fmt.Errorf("%w: frame %d has no requests", ErrInvalidRequest, frameNumber)
	}

	queued := make([]queuedRequest, 0, len(requests))
	seen := make(map[uint32]bool, len(requests))

	for _, req := range requests {
		p, ok := s.registry.get(req.PipelineID)
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownPipeline, req.PipelineID)
		}
		if seen[req.PipelineID] {
			return fmt.Errorf("%w: pipeline %d appears twice in frame %d", ErrInvalidRequest, req.PipelineID, frameNumber)
		}
		seen[req.PipelineID] = true

		if err := validateBuffers(p, req.OutputBuffers); err != nil {
			return err
		}

		var settings metadata.Controls
		switch {
		case req.Settings != nil:
			settings = *req.Settings
		case p.lastSettings != nil:
			settings = *p.lastSettings
		default:
			return fmt.Errorf("%w: first request of pipeline %d carries no settings", ErrInvalidRequest, p.id)
		}

		queued = append(queued, queuedRequest{
			pipeline: p,
			buffers:  append([]OutputBuffer(nil), req.OutputBuffers...),
			settings: settings,
		})
	}

	for _, q := range queued {
		settings := q.settings
		q.pipeline.lastSettings = &settings
	}

	s.queue.push(&pendingFrame{
		number:      frameNumber,
		requests:    queued,
		submittedAt: time.Now(),
	})
	s.stats.framesSubmitted++
	s.wake.Signal()

	slog.Debug("capture-session: frame submitted",
		"frame_number", frameNumber,
		"requests", len(queued),
		"queue_depth", s.queue.len(),
	)
	return nil
}

func validateBuffers(p *pipeline, buffers []OutputBuffer) error {
	if len(buffers) == 0 {
		return fmt.Errorf("%w: pipeline %d request has no output buffers", ErrInvalidRequest, p.id)
	}
	seen := make(map[uint32]bool, len(buffers))
	for _, b := range buffers {
		if _, ok := p.halStream(b.StreamID); !ok {
			return fmt.Errorf("%w: stream %d is not configured on pipeline %d", ErrInvalidRequest, b.StreamID, p.id)
		}
		if seen[b.StreamID] {
			return fmt.Errorf("%w: stream %d requested twice", ErrInvalidRequest, b.StreamID)
		}
		seen[b.StreamID] = true
	}
	return nil
}

// Flush cancels every unclaimed frame and waits for the in-flight one.
func (s *Session) Flush() error {
	s.flush()
	return nil
}

func (s *Session) flush() {
	s.mu.Lock()
	s.flushing++
	cancelled := s.queue.drain()
	for s.inFlight || s.delivering {
		s.idle.Wait()
	}
	s.mu.Unlock()

	n := s.deliverCancelled(cancelled)

	s.mu.Lock()
	s.flushing--
	s.wake.Broadcast()
	s.mu.Unlock()

	if n > 0 {
		slog.Info("capture-session: flushed", "cancelled_requests", n)
	}
}

// DestroyPipelines stops accepting requests, flushes, joins the worker and
// clears all state. A second call is a no-op.
func (s *Session) DestroyPipelines() {
	s.mu.Lock()
	if s.state == stateDestroyed {
		s.mu.Unlock()
		return
	}
	s.state = stateDestroyed
	s.mu.Unlock()

	s.flush()

	s.mu.Lock()
	s.shutdown = true
	s.wake.Broadcast()
	s.mu.Unlock()

	s.wg.Wait()
	s.closeDevice()
	s.cancel()

	s.mu.Lock()
	s.registry.clear()
	s.queue.drain()
	s.mu.Unlock()

	slog.Info("capture-session: pipelines destroyed", "camera_id", s.cfg.CameraID)
}

// GetConfiguredStreams returns the confirmed streams of a pipeline.
func (s *Session) GetConfiguredStreams(pipelineID uint32) ([]HalStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.registry.get(pipelineID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPipeline, pipelineID)
	}
	return append([]HalStream(nil), p.hal...), nil
}

// Stats returns a counter snapshot.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		State:             s.state.String(),
		Pipelines:         s.registry.len(),
		FramesSubmitted:   s.stats.framesSubmitted,
		ResultsDelivered:  s.stats.resultsDelivered,
		CaptureFailures:   s.stats.captureFailures,
		BufferFailures:    s.stats.bufferFailures,
		RequestsCancelled: s.stats.requestsCancelled,
		QueueDepth:        s.queue.len(),
		InFlight:          s.inFlight,
		LastFrameNumber:   s.stats.lastFrameNumber,
		DeviceReopens:     s.stats.deviceReopens,
	}
}

// Package gstsource implements capturesource.Source on top of a GStreamer
// V4L2 pipeline. Frames arrive asynchronously through an appsink callback and
// are handed to Capture through a single-slot mailbox, so a capture always
// returns the freshest frame the sensor produced.
package gstsource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	capturesource "github.com/e7canasta/orion-care-sensor/modules/capture-source"
	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

// convergeFrames is how many frames the sensor's on-chip 3A is given to
// settle after the stream starts.
const convergeFrames = 3

// Stats holds source counters.
type Stats struct {
	FramesReceived uint64
	FramesDropped  uint64
	BusErrors      uint64
	Opens          uint64
}

// Source captures from a V4L2 device through GStreamer.
type Source struct {
	mu         sync.Mutex
	nextHandle capturesource.Handle
	cur        *stream

	framesReceived atomic.Uint64
	framesDropped  atomic.Uint64
	busErrors      atomic.Uint64
	opens          atomic.Uint64
}

type stream struct {
	handle   capturesource.Handle
	cfg      capturesource.DeviceConfig
	elements *pipelineElements
	frames   chan *capturesource.NativeBuffer
	errs     chan error
	sinceOn  atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a GStreamer source.
func New() *Source {
	return &Source{}
}

// Open implements capturesource.Source.
func (s *Source) Open(cfg capturesource.DeviceConfig) (capturesource.Handle, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	if cfg.DevicePath == "" {
		return 0, fmt.Errorf("gstsource: device path is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cur != nil {
		return 0, capturesource.ErrDeviceBusy
	}

	elements, err := createPipeline(pipelineConfig{
		DevicePath:  cfg.DevicePath,
		Width:       cfg.Width,
		Height:      cfg.Height,
		FPS:         cfg.FPS,
		Format:      cfg.Format,
		BufferCount: cfg.BufferCount,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", capturesource.ErrDevice, err)
	}

	s.nextHandle++
	st := &stream{
		handle:   s.nextHandle,
		cfg:      cfg,
		elements: elements,
		frames:   make(chan *capturesource.NativeBuffer, 1),
		errs:     make(chan error, 1),
	}

	elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return s.onNewSample(sink, st)
		},
	})

	if err := elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		destroyPipeline(elements)
		return 0, fmt.Errorf("%w: failed to start pipeline: %v", capturesource.ErrDevice, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	st.cancel = cancel
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		s.monitorBus(ctx, st)
	}()

	s.cur = st
	s.opens.Add(1)

	slog.Info("gstsource: device opened",
		"device", cfg.DevicePath,
		"resolution", cfg.Size().String(),
		"format", cfg.Format,
		"fps", cfg.FPS,
		"handle", st.handle,
	)
	return st.handle, nil
}

// Capture implements capturesource.Source.
func (s *Source) Capture(ctx context.Context, h capturesource.Handle, controls metadata.Controls) (*capturesource.NativeBuffer, error) {
	s.mu.Lock()
	st := s.cur
	s.mu.Unlock()

	if st == nil || st.handle != h {
		return nil, capturesource.ErrInvalidHandle
	}

	select {
	case buf := <-st.frames:
		buf.Report = sensorReport(st, controls)
		return buf, nil
	case err := <-st.errs:
		return nil, err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s", capturesource.ErrCaptureTimeout, st.cfg.DevicePath)
		}
		return nil, ctx.Err()
	}
}

// Close implements capturesource.Source.
func (s *Source) Close(h capturesource.Handle) error {
	s.mu.Lock()
	st := s.cur
	if st == nil || st.handle != h {
		s.mu.Unlock()
		return nil
	}
	s.cur = nil
	s.mu.Unlock()

	st.cancel()
	st.wg.Wait()

	err := destroyPipeline(st.elements)

	// drain a frame the callback may have parked
	select {
	case buf := <-st.frames:
		buf.Release()
	default:
	}

	slog.Info("gstsource: device closed", "device", st.cfg.DevicePath, "handle", h)
	return err
}

// Stats returns counter values.
func (s *Source) Stats() Stats {
	return Stats{
		FramesReceived: s.framesReceived.Load(),
		FramesDropped:  s.framesDropped.Load(),
		BusErrors:      s.busErrors.Load(),
		Opens:          s.opens.Load(),
	}
}

// onNewSample copies the mapped buffer (GStreamer reuses it) and parks it in
// the stream mailbox, replacing any frame nobody claimed.
func (s *Source) onNewSample(sink *app.Sink, st *stream) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("gstsource: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("gstsource: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("gstsource: empty buffer received")
		return gst.FlowOK
	}
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	seq := s.framesReceived.Add(1)
	st.sinceOn.Add(1)

	buf := &capturesource.NativeBuffer{
		Data:      frameData,
		Width:     st.cfg.Width,
		Height:    st.cfg.Height,
		Stride:    stride(st.cfg.Format, st.cfg.Width),
		Format:    st.cfg.Format,
		Seq:       seq,
		Timestamp: time.Now(),
		TraceID:   uuid.New().String(),
	}

	for {
		select {
		case st.frames <- buf:
			return gst.FlowOK
		default:
		}
		select {
		case old := <-st.frames:
			old.Release()
			s.framesDropped.Add(1)
			slog.Debug("gstsource: replacing unclaimed frame", "seq", old.Seq, "trace_id", old.TraceID)
		default:
		}
	}
}

// monitorBus polls the pipeline bus and forwards fatal errors to Capture.
func (s *Source) monitorBus(ctx context.Context, st *stream) {
	bus := st.elements.Pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("gstsource: stopping bus monitor", "device", st.cfg.DevicePath)
			return
		default:
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			s.pushErr(st, fmt.Errorf("%w: end of stream", capturesource.ErrDevice))

		case gst.MessageError:
			gerr := msg.ParseError()
			category := classifyGStreamerError(gerr)
			s.busErrors.Add(1)
			slog.Error("gstsource: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", category.String(),
				"device", st.cfg.DevicePath,
			)
			s.pushErr(st, fmt.Errorf("%w: [%s] %s", capturesource.ErrDevice, category, gerr.Error()))

		case gst.MessageStateChanged:
			if msg.Source() == st.elements.Pipeline.GetName() {
				old, state := msg.ParseStateChanged()
				slog.Debug("gstsource: pipeline state changed", "from", old, "to", state)
			}
		}
	}
}

func (s *Source) pushErr(st *stream, err error) {
	select {
	case st.errs <- err:
	default:
	}
}

// sensorReport describes the frame from what the pipeline can observe. V4L2
// exposes no per-frame 3A status, so convergence is assumed after a short
// settling period.
func sensorReport(st *stream, controls metadata.Controls) metadata.SensorReport {
	settled := st.sinceOn.Load() > convergeFrames
	r := metadata.SensorReport{
		ExposureTime:  time.Second / time.Duration(st.cfg.FPS*2),
		Sensitivity:   100,
		FrameDuration: time.Second / time.Duration(st.cfg.FPS),
		AEConverged:   settled,
		AFFocused:     settled,
		AWBConverged:  settled,
	}
	if controls.AEMode == metadata.AEModeOff {
		if controls.ExposureTime > 0 {
			r.ExposureTime = controls.ExposureTime
		}
		if controls.Sensitivity > 0 {
			r.Sensitivity = controls.Sensitivity
		}
	}
	return r
}

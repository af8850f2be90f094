package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	bufferadapter "github.com/e7canasta/orion-care-sensor/modules/buffer-adapter"
	capturesource "github.com/e7canasta/orion-care-sensor/modules/capture-source"
	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

// resultPipelineDepth is reported in result metadata: capture, then convert.
const resultPipelineDepth = 2

// workerLoop claims frames in ascending frame-number order and drives one
// capture cycle per request. Exits once shutdown is set and the queue is
// empty.
func (s *Session) workerLoop() {
	defer s.wg.Done()

	slog.Debug("capture-session: worker started")

	for {
		s.mu.Lock()
		for !s.shutdown && (s.queue.len() == 0 || s.flushing > 0) {
			s.wake.Wait()
		}
		if s.shutdown && s.queue.len() == 0 {
			s.mu.Unlock()
			slog.Debug("capture-session: worker stopped")
			return
		}

		frame := s.queue.pop()
		s.inFlight = true
		s.inFlightFrame = frame.number
		s.mu.Unlock()

		for i, req := range frame.requests {
			result, notes := s.process(frame.number, req)
			s.deliver(req.pipeline, result, notes, i == len(frame.requests)-1)
		}
	}
}

// process runs one capture cycle without the session lock, except for the
// 3A update.
func (s *Session) process(frameNumber uint32, req queuedRequest) (*CaptureResult, []NotifyMessage) {
	p := req.pipeline
	result := &CaptureResult{
		FrameNumber: frameNumber,
		PipelineID:  p.id,
	}

	native, err := s.capture(p, req)
	if err != nil {
		slog.Warn("capture-session: capture failed",
			"frame_number", frameNumber,
			"pipeline_id", p.id,
			"error", err,
		)
		result.Err = fmt.Errorf("%w: %w", ErrCaptureFailed, err)
		result.OutputBuffers = failedBuffers(req.buffers, ErrCaptureFailed)

		s.mu.Lock()
		s.stats.captureFailures++
		s.mu.Unlock()

		return result, []NotifyMessage{{
			Type:        NotifyError,
			FrameNumber: frameNumber,
			PipelineID:  p.id,
			ErrorCode:   ErrorRequest,
		}}
	}
	defer native.Release()

	result.TraceID = native.TraceID
	notes := []NotifyMessage{{
		Type:        NotifyShutter,
		FrameNumber: frameNumber,
		PipelineID:  p.id,
		Timestamp:   native.Timestamp,
	}}

	convControls := req.settings
	convControls.CropRegion = scaleCrop(req.settings.CropRegion, p.chars.ActiveArray, native.Width, native.Height)

	failures := 0
	hasJPEG := false
	result.OutputBuffers = make([]StreamBuffer, 0, len(req.buffers))
	for _, ob := range req.buffers {
		hal, _ := p.halStream(ob.StreamID)
		if hal.OverrideFormat == metadata.FormatJPEG {
			hasJPEG = true
		}

		sb := StreamBuffer{StreamID: ob.StreamID, BufferID: ob.BufferID, Data: ob.Data}
		n, err := bufferadapter.Convert(native, &bufferadapter.Target{
			Width:  hal.Width,
			Height: hal.Height,
			Format: hal.OverrideFormat,
			Data:   ob.Data,
		}, convControls, p.scratch[ob.StreamID])
		if err != nil {
			failures++
			sb.Status = BufferStatusError
			sb.Err = fmt.Errorf("%w: stream %d: %w", ErrBufferConversionFailed, ob.StreamID, err)
			notes = append(notes, NotifyMessage{
				Type:        NotifyError,
				FrameNumber: frameNumber,
				PipelineID:  p.id,
				ErrorCode:   ErrorBuffer,
				StreamID:    ob.StreamID,
			})
			slog.Warn("capture-session: buffer conversion failed",
				"frame_number", frameNumber,
				"stream_id", ob.StreamID,
				"error", err,
			)
		} else {
			sb.BytesUsed = n
		}
		result.OutputBuffers = append(result.OutputBuffers, sb)
	}

	md := &metadata.ResultMetadata{
		SensorTimestamp: native.Timestamp,
		ExposureTime:    native.Report.ExposureTime,
		Sensitivity:     native.Report.Sensitivity,
		FrameDuration:   native.Report.FrameDuration,
		FocalLength:     p.chars.FocalLength,
		FocusDistance:   native.Report.FocusDistance,
		CaptureIntent:   req.settings.CaptureIntent,
		ControlMode:     req.settings.ControlMode,
		CropRegion:      req.settings.CropRegion,
		PipelineDepth:   resultPipelineDepth,
	}
	if md.CropRegion.Width <= 0 || md.CropRegion.Height <= 0 {
		md.CropRegion = metadata.Rect{Width: p.chars.ActiveArray.Width, Height: p.chars.ActiveArray.Height}
	}
	if hasJPEG {
		md.JPEGQuality = req.settings.JPEGQuality
		md.JPEGOrientation = req.settings.JPEGOrientation
	}

	s.mu.Lock()
	s.auto.update(req.settings, native.Report)
	s.auto.apply(md)
	s.stats.bufferFailures += uint64(failures)
	s.mu.Unlock()

	result.Metadata = md

	slog.Debug("capture-session: frame captured",
		"frame_number", frameNumber,
		"pipeline_id", p.id,
		"seq", native.Seq,
		"trace_id", native.TraceID,
		"buffers", len(result.OutputBuffers),
		"failed_buffers", failures,
	)
	return result, notes
}

// capture opens the device in the right shape for the request and grabs one
// frame.
func (s *Session) capture(p *pipeline, req queuedRequest) (*capturesource.NativeBuffer, error) {
	shape := pickCaptureStream(p, req)
	devCfg := capturesource.DeviceConfig{
		DeviceID:    p.deviceID,
		DevicePath:  p.chars.DevicePath,
		Width:       shape.Width,
		Height:      shape.Height,
		Format:      p.chars.NativeFormat,
		FPS:         p.chars.ModeFPS(metadata.Size{Width: shape.Width, Height: shape.Height}),
		BufferCount: s.cfg.DeviceBufferCount,
	}
	if err := s.ensureDevice(devCfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.CaptureTimeout)
	defer cancel()
	native, err := s.cfg.Source.Capture(ctx, s.device.handle, req.settings)
	if errors.Is(err, capturesource.ErrDevice) {
		// a stream that hit EOS or a bus error never produces another frame
		slog.Warn("capture-session: device failed, reopening on next frame",
			"device_id", devCfg.DeviceID,
			"error", err,
		)
		s.closeDevice()
		s.device.stale = true
	}
	return native, err
}

// pickCaptureStream selects the stream whose shape the device is opened in:
// still for JPEG or still-intent requests, video for record intent, then
// preview, then the largest requested stream.
func pickCaptureStream(p *pipeline, req queuedRequest) HalStream {
	wantStill := req.settings.CaptureIntent == metadata.CaptureIntentStillCapture
	var largest HalStream
	for _, ob := range req.buffers {
		h, _ := p.halStream(ob.StreamID)
		if h.OverrideFormat == metadata.FormatJPEG {
			wantStill = true
		}
		if h.Width*h.Height > largest.Width*largest.Height {
			largest = h
		}
	}

	if wantStill {
		if h, ok := p.streamByUsage(metadata.UsageStillCapture); ok {
			return h
		}
	}
	if req.settings.CaptureIntent == metadata.CaptureIntentVideoRecord {
		if h, ok := p.streamByUsage(metadata.UsageVideoRecord); ok {
			return h
		}
	}
	if h, ok := p.streamByUsage(metadata.UsagePreview); ok && !wantStill {
		return h
	}
	return largest
}

// ensureDevice opens the source in cfg, closing a handle open in another
// shape first.
func (s *Session) ensureDevice(cfg capturesource.DeviceConfig) error {
	if s.device.open && s.device.cfg == cfg {
		return nil
	}
	reopen := s.device.stale
	if s.device.open {
		if err := s.cfg.Source.Close(s.device.handle); err != nil {
			slog.Warn("capture-session: device close failed", "error", err)
		}
		s.device.open = false
		reopen = true
	}
	if reopen {
		s.mu.Lock()
		s.stats.deviceReopens++
		s.mu.Unlock()
	}

	h, err := s.cfg.Source.Open(cfg)
	if err != nil {
		return fmt.Errorf("open %s %dx%d: %w", cfg.DevicePath, cfg.Width, cfg.Height, err)
	}
	s.device = deviceState{open: true, handle: h, cfg: cfg}

	slog.Debug("capture-session: device configured",
		"device_id", cfg.DeviceID,
		"resolution", cfg.Size().String(),
		"fps", cfg.FPS,
	)
	return nil
}

func (s *Session) closeDevice() {
	if !s.device.open {
		return
	}
	if err := s.cfg.Source.Close(s.device.handle); err != nil {
		slog.Warn("capture-session: device close failed", "error", err)
	}
	s.device.open = false
}

// deliver clears in-flight bookkeeping (for the frame's last request) and
// invokes the pipeline callback outside the lock.
func (s *Session) deliver(p *pipeline, result *CaptureResult, notes []NotifyMessage, last bool) {
	s.mu.Lock()
	if last {
		s.inFlight = false
	}
	s.delivering = true
	s.stats.resultsDelivered++
	s.stats.lastFrameNumber = result.FrameNumber
	s.mu.Unlock()

	if p.notifier != nil {
		for _, n := range notes {
			p.notifier.Notify(n)
		}
	}
	p.callback.ProcessPipelineResult(result)

	s.mu.Lock()
	s.delivering = false
	s.idle.Broadcast()
	s.mu.Unlock()
}

// deliverCancelled answers drained frames with RequestCancelled, ascending.
func (s *Session) deliverCancelled(frames []*pendingFrame) int {
	n := 0
	for _, f := range frames {
		for _, req := range f.requests {
			p := req.pipeline
			result := &CaptureResult{
				FrameNumber:   f.number,
				PipelineID:    p.id,
				OutputBuffers: failedBuffers(req.buffers, ErrRequestCancelled),
				Err:           ErrRequestCancelled,
			}
			if p.notifier != nil {
				p.notifier.Notify(NotifyMessage{
					Type:        NotifyError,
					FrameNumber: f.number,
					PipelineID:  p.id,
					ErrorCode:   ErrorRequest,
				})
			}
			p.callback.ProcessPipelineResult(result)
			n++
		}
	}

	if n > 0 {
		s.mu.Lock()
		s.stats.requestsCancelled += uint64(n)
		s.stats.resultsDelivered += uint64(n)
		s.mu.Unlock()
	}
	return n
}

func failedBuffers(buffers []OutputBuffer, err error) []StreamBuffer {
	out := make([]StreamBuffer, len(buffers))
	for i, b := range buffers {
		out[i] = StreamBuffer{
			StreamID: b.StreamID,
			BufferID: b.BufferID,
			Data:     b.Data,
			Status:   BufferStatusError,
			Err:      err,
		}
	}
	return out
}

// scaleCrop maps a crop region in active-array coordinates onto a w×h frame.
func scaleCrop(r metadata.Rect, active metadata.Size, w, h int) metadata.Rect {
	if r.Width <= 0 || r.Height <= 0 || active.Width <= 0 || active.Height <= 0 {
		return metadata.Rect{}
	}
	return metadata.Rect{
		X:      r.X * w / active.Width,
		Y:      r.Y * h / active.Height,
		Width:  r.Width * w / active.Width,
		Height: r.Height * h / active.Height,
	}
}

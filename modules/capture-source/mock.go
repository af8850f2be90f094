package capturesource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

// MockConfig tunes MockSource behaviour.
type MockConfig struct {
	// Latency is the simulated exposure+readout time per capture.
	Latency time.Duration

	// ConvergeAfter is the number of frames after Open before the sensor
	// reports 3A convergence.
	ConvergeAfter int

	// FailFunc, if set, is consulted before each capture; a non-nil error
	// fails that capture.
	FailFunc func(seq uint64) error

	// Hold, if set, blocks every capture until it is closed.
	Hold <-chan struct{}

	// Started, if set, receives the sequence number of each capture as it
	// begins (non-blocking send).
	Started chan<- uint64
}

// MockStats is a snapshot of MockSource counters.
type MockStats struct {
	Opens       uint64
	Closes      uint64
	Captures    uint64
	Failures    uint64
	Outstanding int64
	LastConfig  DeviceConfig
}

// MockSource generates synthetic YUYV colour-bar frames. Only one handle may
// be open at a time, like a single V4L2 node.
type MockSource struct {
	cfg MockConfig

	mu         sync.Mutex
	nextHandle Handle
	open       Handle
	devCfg     DeviceConfig
	sinceOpen  int
	pattern    []byte
	opens      uint64
	closes     uint64

	seq         atomic.Uint64
	captures    atomic.Uint64
	failures    atomic.Uint64
	outstanding atomic.Int64
}

// NewMockSource creates a mock source.
func NewMockSource(cfg MockConfig) *MockSource {
	return &MockSource{cfg: cfg}
}

// Open implements Source.
func (m *MockSource) Open(cfg DeviceConfig) (Handle, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	if cfg.Format != metadata.FormatYUYV {
		return 0, fmt.Errorf("capture-source: mock only produces yuyv, got %s", cfg.Format)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.open != 0 {
		return 0, ErrDeviceBusy
	}

	m.nextHandle++
	m.open = m.nextHandle
	m.devCfg = cfg
	m.sinceOpen = 0
	m.pattern = colorBars(cfg.Width, cfg.Height)
	m.opens++

	slog.Debug("capture-source: mock opened",
		"handle", m.open,
		"resolution", cfg.Size().String(),
		"fps", cfg.FPS,
	)
	return m.open, nil
}

// Close implements Source.
func (m *MockSource) Close(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h == 0 || m.open != h {
		return nil
	}
	m.open = 0
	m.pattern = nil
	m.closes++
	slog.Debug("capture-source: mock closed", "handle", h)
	return nil
}

// Capture implements Source.
func (m *MockSource) Capture(ctx context.Context, h Handle, controls metadata.Controls) (*NativeBuffer, error) {
	m.mu.Lock()
	if h == 0 || m.open != h {
		m.mu.Unlock()
		return nil, ErrInvalidHandle
	}
	cfg := m.devCfg
	pattern := m.pattern
	m.sinceOpen++
	sinceOpen := m.sinceOpen
	m.mu.Unlock()

	seq := m.seq.Add(1)
	m.captures.Add(1)

	if m.cfg.Started != nil {
		select {
		case m.cfg.Started <- seq:
		default:
		}
	}

	if m.cfg.Hold != nil {
		select {
		case <-m.cfg.Hold:
		case <-ctx.Done():
			m.failures.Add(1)
			return nil, wrapCtxErr(ctx.Err())
		}
	}

	if m.cfg.Latency > 0 {
		timer := time.NewTimer(m.cfg.Latency)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			m.failures.Add(1)
			return nil, wrapCtxErr(ctx.Err())
		}
	}

	if m.cfg.FailFunc != nil {
		if err := m.cfg.FailFunc(seq); err != nil {
			m.failures.Add(1)
			return nil, fmt.Errorf("%w: %v", ErrDevice, err)
		}
	}

	data := make([]byte, len(pattern))
	copy(data, pattern)

	converged := sinceOpen > m.cfg.ConvergeAfter
	report := metadata.SensorReport{
		ExposureTime:  10 * time.Millisecond,
		Sensitivity:   100,
		FrameDuration: time.Second / time.Duration(cfg.FPS),
		FocusDistance: 0.5,
		AEConverged:   converged,
		AFFocused:     converged,
		AWBConverged:  converged,
	}
	if controls.AEMode == metadata.AEModeOff {
		if controls.ExposureTime > 0 {
			report.ExposureTime = controls.ExposureTime
		}
		if controls.Sensitivity > 0 {
			report.Sensitivity = controls.Sensitivity
		}
		if controls.FrameDuration > 0 {
			report.FrameDuration = controls.FrameDuration
		}
	}

	buf := &NativeBuffer{
		Data:      data,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Stride:    cfg.Width * 2,
		Format:    metadata.FormatYUYV,
		Seq:       seq,
		Timestamp: time.Now(),
		TraceID:   uuid.New().String(),
		Report:    report,
	}
	m.outstanding.Add(1)
	buf.SetReleaseFunc(func() { m.outstanding.Add(-1) })

	return buf, nil
}

// Stats returns a counter snapshot.
func (m *MockSource) Stats() MockStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MockStats{
		Opens:       m.opens,
		Closes:      m.closes,
		Captures:    m.captures.Load(),
		Failures:    m.failures.Load(),
		Outstanding: m.outstanding.Load(),
		LastConfig:  m.devCfg,
	}
}

func wrapCtxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrCaptureTimeout, err)
	}
	return err
}

// barColors are the eight SMPTE-style bars as (Y, U, V).
var barColors = [8][3]byte{
	{235, 128, 128}, // white
	{210, 16, 146},  // yellow
	{170, 166, 16},  // cyan
	{145, 54, 34},   // green
	{106, 202, 222}, // magenta
	{81, 90, 240},   // red
	{41, 240, 110},  // blue
	{16, 128, 128},  // black
}

// colorBars renders a YUYV frame of vertical bars.
func colorBars(width, height int) []byte {
	stride := width * 2
	row := make([]byte, stride)
	for x := 0; x < width; x += 2 {
		c := barColors[(x*len(barColors))/width]
		i := x * 2
		row[i] = c[0]
		row[i+1] = c[1]
		row[i+2] = c[0]
		row[i+3] = c[2]
	}

	data := make([]byte, stride*height)
	for y := 0; y < height; y++ {
		copy(data[y*stride:], row)
	}
	return data
}

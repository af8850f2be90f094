package capturesource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

func vgaConfig() DeviceConfig {
	return DeviceConfig{Width: 640, Height: 480, Format: metadata.FormatYUYV, FPS: 30, BufferCount: 4}
}

func TestMockCaptureProducesYUYVFrame(t *testing.T) {
	src := NewMockSource(MockConfig{})

	h, err := src.Open(vgaConfig())
	require.NoError(t, err)
	defer src.Close(h)

	buf, err := src.Capture(context.Background(), h, metadata.Controls{})
	require.NoError(t, err)

	assert.Equal(t, 640*480*2, len(buf.Data))
	assert.Equal(t, 1280, buf.Stride)
	assert.Equal(t, metadata.FormatYUYV, buf.Format)
	assert.NotEmpty(t, buf.TraceID)
	assert.Equal(t, uint64(1), buf.Seq)

	// first bar is white
	assert.Equal(t, byte(235), buf.Data[0])
	assert.Equal(t, byte(128), buf.Data[1])

	assert.Equal(t, int64(1), src.Stats().Outstanding)
	buf.Release()
	buf.Release()
	assert.True(t, buf.Released())
	assert.Equal(t, int64(0), src.Stats().Outstanding, "double release must not underflow")
}

func TestMockSingleOpen(t *testing.T) {
	src := NewMockSource(MockConfig{})

	h, err := src.Open(vgaConfig())
	require.NoError(t, err)

	_, err = src.Open(vgaConfig())
	assert.True(t, errors.Is(err, ErrDeviceBusy))

	require.NoError(t, src.Close(h))
	require.NoError(t, src.Close(h))

	_, err = src.Capture(context.Background(), h, metadata.Controls{})
	assert.True(t, errors.Is(err, ErrInvalidHandle))

	h2, err := src.Open(vgaConfig())
	require.NoError(t, err)
	assert.NotEqual(t, h, h2)

	st := src.Stats()
	assert.Equal(t, uint64(2), st.Opens)
	assert.Equal(t, uint64(1), st.Closes)
}

func TestMockRejectsNonYUYV(t *testing.T) {
	cfg := vgaConfig()
	cfg.Format = metadata.FormatNV12
	_, err := NewMockSource(MockConfig{}).Open(cfg)
	assert.Error(t, err)

	cfg = vgaConfig()
	cfg.FPS = 0
	_, err = NewMockSource(MockConfig{}).Open(cfg)
	assert.Error(t, err)
}

func TestMockCaptureTimeout(t *testing.T) {
	hold := make(chan struct{})
	src := NewMockSource(MockConfig{Hold: hold})

	h, err := src.Open(vgaConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = src.Capture(ctx, h, metadata.Controls{})
	assert.True(t, errors.Is(err, ErrCaptureTimeout))
	assert.Equal(t, uint64(1), src.Stats().Failures)
}

func TestMockHoldAndStarted(t *testing.T) {
	hold := make(chan struct{})
	started := make(chan uint64, 1)
	src := NewMockSource(MockConfig{Hold: hold, Started: started})

	h, err := src.Open(vgaConfig())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		buf, err := src.Capture(context.Background(), h, metadata.Controls{})
		if err == nil {
			buf.Release()
		}
		done <- err
	}()

	select {
	case seq := <-started:
		assert.Equal(t, uint64(1), seq)
	case <-time.After(time.Second):
		t.Fatal("capture never started")
	}

	select {
	case <-done:
		t.Fatal("capture returned while held")
	case <-time.After(20 * time.Millisecond):
	}

	close(hold)
	require.NoError(t, <-done)
}

func TestMockFailureInjection(t *testing.T) {
	src := NewMockSource(MockConfig{
		FailFunc: func(seq uint64) error {
			if seq == 2 {
				return errors.New("sensor i2c nack")
			}
			return nil
		},
	})
	h, err := src.Open(vgaConfig())
	require.NoError(t, err)

	for seq := 1; seq <= 3; seq++ {
		buf, err := src.Capture(context.Background(), h, metadata.Controls{})
		if seq == 2 {
			assert.True(t, errors.Is(err, ErrDevice))
			continue
		}
		require.NoError(t, err)
		buf.Release()
	}
	assert.Equal(t, uint64(1), src.Stats().Failures)
}

func TestMockSensorReport(t *testing.T) {
	src := NewMockSource(MockConfig{ConvergeAfter: 2})
	h, err := src.Open(vgaConfig())
	require.NoError(t, err)

	var reports []metadata.SensorReport
	for i := 0; i < 3; i++ {
		buf, err := src.Capture(context.Background(), h, metadata.Controls{AEMode: metadata.AEModeOn})
		require.NoError(t, err)
		reports = append(reports, buf.Report)
		buf.Release()
	}
	assert.False(t, reports[0].AEConverged)
	assert.False(t, reports[1].AEConverged)
	assert.True(t, reports[2].AEConverged)
	assert.Equal(t, time.Second/30, reports[0].FrameDuration)

	manual := metadata.Controls{
		AEMode:        metadata.AEModeOff,
		ExposureTime:  5 * time.Millisecond,
		Sensitivity:   400,
		FrameDuration: 50 * time.Millisecond,
	}
	buf, err := src.Capture(context.Background(), h, manual)
	require.NoError(t, err)
	defer buf.Release()
	assert.Equal(t, 5*time.Millisecond, buf.Report.ExposureTime)
	assert.Equal(t, int32(400), buf.Report.Sensitivity)
	assert.Equal(t, 50*time.Millisecond, buf.Report.FrameDuration)
}

package framesaver

import (
	"bytes"
	"context"
	"image/jpeg"
	"image/png"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bufferadapter "github.com/e7canasta/orion-care-sensor/modules/buffer-adapter"
	capturesource "github.com/e7canasta/orion-care-sensor/modules/capture-source"
	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

func captureFrame(t *testing.T) *capturesource.NativeBuffer {
	t.Helper()
	src := capturesource.NewMockSource(capturesource.MockConfig{})
	h, err := src.Open(capturesource.DeviceConfig{
		DevicePath: "/dev/video0", Width: 320, Height: 240, Format: metadata.FormatYUYV, FPS: 30, BufferCount: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close(h) })

	native, err := src.Capture(context.Background(), h, metadata.Controls{})
	require.NoError(t, err)
	t.Cleanup(native.Release)
	return native
}

func TestSaveStill(t *testing.T) {
	native := captureFrame(t)
	buf := make([]byte, metadata.FormatJPEG.FrameSize(320, 240))
	_, err := bufferadapter.Convert(native, &bufferadapter.Target{
		Width: 320, Height: 240, Format: metadata.FormatJPEG, Data: buf,
	}, metadata.Controls{JPEGQuality: 80}, bufferadapter.NewScratch(320, 240, metadata.FormatJPEG))
	require.NoError(t, err)

	saver, err := New(t.TempDir(), 0)
	require.NoError(t, err)

	path, err := saver.SaveStill(12, time.Date(2025, 11, 5, 23, 45, 17, 123e6, time.UTC), buf)
	require.NoError(t, err)
	assert.Contains(t, path, "still_000012_20251105_234517.123.jpg")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())

	saved, dropped := saver.Stats()
	assert.Equal(t, uint64(1), saved)
	assert.Zero(t, dropped)
}

func TestSaveStillRejectsMissingTrailer(t *testing.T) {
	saver, err := New(t.TempDir(), 0)
	require.NoError(t, err)

	_, err = saver.SaveStill(1, time.Now(), make([]byte, 64))
	assert.Error(t, err)

	_, dropped := saver.Stats()
	assert.Equal(t, uint64(1), dropped)
}

func TestSavePreviewNV12(t *testing.T) {
	native := captureFrame(t)
	buf := make([]byte, metadata.FormatNV12.FrameSize(320, 240))
	_, err := bufferadapter.Convert(native, &bufferadapter.Target{
		Width: 320, Height: 240, Format: metadata.FormatNV12, Data: buf,
	}, metadata.Controls{}, nil)
	require.NoError(t, err)

	saver, err := New(t.TempDir(), 0)
	require.NoError(t, err)

	path, err := saver.SavePreviewNV12(3, time.Now(), buf, 320, 240)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	// leftmost bar is white
	r, g, b, _ := img.At(5, 5).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Greater(t, g>>8, uint32(200))
	assert.Greater(t, b>>8, uint32(200))

	_, err = saver.SavePreviewNV12(4, time.Now(), buf[:100], 320, 240)
	assert.Error(t, err)
}

func TestMaxFiles(t *testing.T) {
	saver, err := New(t.TempDir(), 2)
	require.NoError(t, err)

	buf := make([]byte, metadata.FormatNV12.FrameSize(16, 16))
	for i := uint32(0); i < 4; i++ {
		_, err := saver.SavePreviewNV12(i, time.Now(), buf, 16, 16)
		require.NoError(t, err)
	}

	saved, dropped := saver.Stats()
	assert.Equal(t, uint64(2), saved)
	assert.Equal(t, uint64(2), dropped)
}

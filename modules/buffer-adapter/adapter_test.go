package bufferadapter

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	capturesource "github.com/e7canasta/orion-care-sensor/modules/capture-source"
	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

// captureBars grabs one colour-bar frame from the mock source.
func captureBars(t *testing.T, w, h int) *capturesource.NativeBuffer {
	t.Helper()
	src := capturesource.NewMockSource(capturesource.MockConfig{})
	handle, err := src.Open(capturesource.DeviceConfig{Width: w, Height: h, Format: metadata.FormatYUYV, FPS: 30})
	require.NoError(t, err)
	t.Cleanup(func() { src.Close(handle) })

	buf, err := src.Capture(context.Background(), handle, metadata.Controls{})
	require.NoError(t, err)
	t.Cleanup(buf.Release)
	return buf
}

func newTarget(w, h int, f metadata.PixelFormat) *Target {
	return &Target{Width: w, Height: h, Format: f, Data: make([]byte, ResolveFormat(f).FrameSize(w, h))}
}

func TestConvertYUYVIdentity(t *testing.T) {
	src := captureBars(t, 64, 16)
	dst := newTarget(64, 16, metadata.FormatYUYV)

	n, err := Convert(src, dst, metadata.Controls{}, nil)
	require.NoError(t, err)
	assert.Equal(t, len(src.Data), n)
	assert.Equal(t, src.Data, dst.Data)
}

func TestConvertPlanarFormats(t *testing.T) {
	src := captureBars(t, 640, 480)

	tests := []struct {
		format  metadata.PixelFormat
		cbFirst bool
	}{
		{metadata.FormatNV12, true},
		{metadata.FormatNV21, false},
		{metadata.FormatImplementationDefined, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			dst := newTarget(320, 240, tt.format)
			n, err := Convert(src, dst, metadata.Controls{}, NewScratch(320, 240, tt.format))
			require.NoError(t, err)
			assert.Equal(t, 320*240*3/2, n)

			// top-left is the white bar
			assert.Equal(t, byte(235), dst.Data[0])
			// pixel 150 samples source x=300, the green bar
			assert.Equal(t, byte(145), dst.Data[150])
			uv := dst.Data[320*240+150:]
			if tt.cbFirst {
				assert.Equal(t, []byte{54, 34}, uv[:2])
			} else {
				assert.Equal(t, []byte{34, 54}, uv[:2])
			}
		})
	}
}

func TestConvertYV12(t *testing.T) {
	src := captureBars(t, 640, 480)
	dst := newTarget(640, 480, metadata.FormatYV12)

	_, err := Convert(src, dst, metadata.Controls{}, nil)
	require.NoError(t, err)

	cw, ch := 320, 240
	vPlane := dst.Data[640*480:]
	uPlane := dst.Data[640*480+cw*ch:]
	// yellow bar at x=100 → chroma column 50
	assert.Equal(t, byte(146), vPlane[50])
	assert.Equal(t, byte(16), uPlane[50])
}

func TestConvertRGBA(t *testing.T) {
	src := captureBars(t, 640, 480)
	dst := newTarget(640, 480, metadata.FormatRGBA)

	_, err := Convert(src, dst, metadata.Controls{}, nil)
	require.NoError(t, err)

	assert.Equal(t, []byte{235, 235, 235, 255}, dst.Data[:4], "white bar")
	last := dst.Data[len(dst.Data)-4:]
	assert.Equal(t, []byte{16, 16, 16, 255}, last, "black bar")
}

func TestConvertCrop(t *testing.T) {
	src := captureBars(t, 640, 480)
	dst := newTarget(320, 240, metadata.FormatNV12)

	controls := metadata.Controls{CropRegion: metadata.Rect{X: 320, Y: 0, Width: 320, Height: 240}}
	_, err := Convert(src, dst, controls, nil)
	require.NoError(t, err)

	// right half starts with the magenta bar
	assert.Equal(t, byte(106), dst.Data[0])
}

func TestConvertJPEG(t *testing.T) {
	src := captureBars(t, 640, 480)

	tests := []struct {
		name        string
		orientation int32
		wantW       int
		wantH       int
	}{
		{"upright", 0, 640, 480},
		{"rotated 90", 90, 480, 640},
		{"rotated 180", 180, 640, 480},
		{"rotated -90", -90, 480, 640},
	}

	scratch := NewScratch(640, 480, metadata.FormatJPEG)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := newTarget(640, 480, metadata.FormatJPEG)
			controls := metadata.Controls{JPEGQuality: 90, JPEGOrientation: tt.orientation}

			n, err := Convert(src, dst, controls, scratch)
			require.NoError(t, err)

			size, err := ParseBlobTrailer(dst.Data)
			require.NoError(t, err)
			assert.Equal(t, n, size)

			img, err := jpeg.Decode(bytes.NewReader(dst.Data[:size]))
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, img.Bounds().Dx())
			assert.Equal(t, tt.wantH, img.Bounds().Dy())
		})
	}
}

func TestConvertJPEGBufferTooSmall(t *testing.T) {
	src := captureBars(t, 640, 480)
	dst := &Target{Width: 640, Height: 480, Format: metadata.FormatJPEG, Data: make([]byte, 64)}

	_, err := Convert(src, dst, metadata.Controls{}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBufferTooSmall))

	var ce *ConversionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, metadata.FormatYUYV, ce.Src)
	assert.Equal(t, metadata.FormatJPEG, ce.Dst)
}

func TestConvertJPEGBadOrientation(t *testing.T) {
	src := captureBars(t, 64, 16)
	dst := newTarget(64, 16, metadata.FormatJPEG)

	_, err := Convert(src, dst, metadata.Controls{JPEGOrientation: 45}, nil)
	assert.True(t, errors.Is(err, ErrEncodeFailed))
}

func TestConvertErrors(t *testing.T) {
	src := captureBars(t, 64, 16)

	tests := []struct {
		name string
		src  *capturesource.NativeBuffer
		dst  *Target
		want error
	}{
		{"raw buffer too small", src, &Target{Width: 64, Height: 16, Format: metadata.FormatNV12, Data: make([]byte, 10)}, ErrBufferTooSmall},
		{"unknown destination", src, &Target{Width: 64, Height: 16, Format: "bayer", Data: make([]byte, 4096)}, ErrUnsupportedFormat},
		{"odd destination", src, &Target{Width: 63, Height: 16, Format: metadata.FormatNV12, Data: make([]byte, 4096)}, ErrUnsupportedFormat},
		{"rgba source", &capturesource.NativeBuffer{Width: 64, Height: 16, Format: metadata.FormatRGBA, Data: make([]byte, 64*16*4)}, newTarget(64, 16, metadata.FormatNV12), ErrUnsupportedFormat},
		{"truncated source", &capturesource.NativeBuffer{Width: 64, Height: 16, Format: metadata.FormatYUYV, Data: make([]byte, 100)}, newTarget(64, 16, metadata.FormatNV12), ErrBufferTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Convert(tt.src, tt.dst, metadata.Controls{}, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestParseBlobTrailerRejectsGarbage(t *testing.T) {
	_, err := ParseBlobTrailer([]byte{1, 2, 3})
	assert.Error(t, err)

	_, err = ParseBlobTrailer(make([]byte, 32))
	assert.Error(t, err, "zero id is not a trailer")

	buf := make([]byte, 16)
	writeBlobTrailer(buf, 100)
	_, err = ParseBlobTrailer(buf)
	assert.Error(t, err, "size larger than buffer")
}

func TestScratchSize(t *testing.T) {
	raw := NewScratch(640, 480, metadata.FormatNV12)
	assert.Equal(t, ScratchSize(640, 480, metadata.FormatNV12), raw.Size())

	still := NewScratch(2592, 1944, metadata.FormatJPEG)
	assert.GreaterOrEqual(t, still.Size(), ScratchSize(2592, 1944, metadata.FormatJPEG))
	assert.Greater(t, still.Size(), raw.Size())
}

// Package bufferadapter converts a captured native buffer into a
// caller-requested output buffer.
//
// Two conversions are supported:
//
//   - pixel-format remap with nearest-neighbour scaling between YUYV, NV12,
//     NV21, YV12 and RGBA
//   - JPEG encode, followed by an 8-byte BLOB trailer in the last bytes of
//     the destination buffer
//
// Convert writes only into the destination buffer and keeps no reference to
// either buffer after it returns. A Scratch may be passed to reuse working
// memory across calls; it is not safe for concurrent use.
package bufferadapter

import (
	"errors"
	"fmt"

	capturesource "github.com/e7canasta/orion-care-sensor/modules/capture-source"
	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

var (
	// ErrUnsupportedFormat is returned for a source or destination layout the
	// adapter cannot read or write.
	ErrUnsupportedFormat = errors.New("buffer-adapter: unsupported format")

	// ErrEncodeFailed is returned when JPEG encoding fails.
	ErrEncodeFailed = errors.New("buffer-adapter: encode failed")

	// ErrBufferTooSmall is returned when a buffer cannot hold the frame.
	ErrBufferTooSmall = errors.New("buffer-adapter: buffer too small")
)

// ConversionError describes a failed conversion.
type ConversionError struct {
	Src    metadata.PixelFormat
	Dst    metadata.PixelFormat
	Detail string
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%v (%s -> %s): %s", e.Err, e.Src, e.Dst, e.Detail)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Target describes a caller-owned destination buffer.
type Target struct {
	Width  int
	Height int
	Format metadata.PixelFormat
	Data   []byte
}

// ResolveFormat maps ImplementationDefined to the layout the adapter writes
// for it.
func ResolveFormat(f metadata.PixelFormat) metadata.PixelFormat {
	if f == metadata.FormatImplementationDefined {
		return metadata.FormatNV12
	}
	return f
}

// Convert fills dst from src. controls supplies the crop region (in source
// pixel coordinates; empty means the full frame) and, for JPEG, quality and
// orientation. It returns the number of payload bytes written; for JPEG that
// is the encoded size without the trailer.
func Convert(src *capturesource.NativeBuffer, dst *Target, controls metadata.Controls, scratch *Scratch) (int, error) {
	if src == nil || dst == nil {
		return 0, fmt.Errorf("%w: nil buffer", ErrUnsupportedFormat)
	}
	dstFormat := ResolveFormat(dst.Format)

	fail := func(err error, format string, args ...any) (int, error) {
		return 0, &ConversionError{
			Src:    src.Format,
			Dst:    dst.Format,
			Detail: fmt.Sprintf(format, args...),
			Err:    err,
		}
	}

	if dst.Width <= 0 || dst.Height <= 0 || dst.Width%2 != 0 || dst.Height%2 != 0 {
		return fail(ErrUnsupportedFormat, "destination size %dx%d must be positive and even", dst.Width, dst.Height)
	}

	smp, err := newSampler(src)
	if err != nil {
		base := errors.Unwrap(err)
		if base == nil {
			base = err
		}
		return fail(base, "%v", err)
	}
	crop := clampCrop(controls.CropRegion, src.Width, src.Height)

	if scratch == nil {
		scratch = &Scratch{}
	}

	switch dstFormat {
	case metadata.FormatJPEG:
		n, err := encodeJPEG(smp, crop, dst, controls, scratch)
		if err != nil {
			base := errors.Unwrap(err)
			if base == nil {
				base = err
			}
			return fail(base, "%v", err)
		}
		return n, nil

	case metadata.FormatYUYV, metadata.FormatNV12, metadata.FormatNV21, metadata.FormatYV12, metadata.FormatRGBA:
		need := dstFormat.FrameSize(dst.Width, dst.Height)
		if len(dst.Data) < need {
			return fail(ErrBufferTooSmall, "need %d bytes, have %d", need, len(dst.Data))
		}
		xmap, ymap := scratch.maps(crop, dst.Width, dst.Height)
		writeRaw(smp, dstFormat, dst, xmap, ymap)
		return need, nil

	default:
		return fail(ErrUnsupportedFormat, "cannot write %s", dst.Format)
	}
}

// clampCrop bounds r to the frame; an empty or disjoint region selects the
// whole frame.
func clampCrop(r metadata.Rect, width, height int) metadata.Rect {
	full := metadata.Rect{Width: width, Height: height}
	if r.Width <= 0 || r.Height <= 0 {
		return full
	}
	x0, y0 := max(r.X, 0), max(r.Y, 0)
	x1, y1 := min(r.X+r.Width, width), min(r.Y+r.Height, height)
	if x1-x0 < 2 || y1-y0 < 2 {
		return full
	}
	return metadata.Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Package metadata holds the camera vocabulary shared by the capture source,
// the properties store, the buffer adapter and the capture session: pixel
// formats, stream usages, request templates, 3A enums, request controls and
// result metadata.
package metadata

import (
	"fmt"
	"strings"
)

// PixelFormat identifies a buffer layout.
type PixelFormat string

const (
	// FormatYUYV is packed YUV 4:2:2 (Y0 U Y1 V), the sensor native format.
	FormatYUYV PixelFormat = "yuyv"
	// FormatNV12 is semi-planar YUV 4:2:0 (Y plane, interleaved UV plane).
	FormatNV12 PixelFormat = "nv12"
	// FormatNV21 is semi-planar YUV 4:2:0 (Y plane, interleaved VU plane).
	FormatNV21 PixelFormat = "nv21"
	// FormatYV12 is planar YUV 4:2:0 (Y plane, V plane, U plane).
	FormatYV12 PixelFormat = "yv12"
	// FormatRGBA is packed RGBA 8888.
	FormatRGBA PixelFormat = "rgba"
	// FormatJPEG is a compressed still image with a BLOB trailer.
	FormatJPEG PixelFormat = "jpeg"
	// FormatImplementationDefined lets the session pick the layout.
	FormatImplementationDefined PixelFormat = "implementation_defined"
)

// ParsePixelFormat maps a case-insensitive name to a PixelFormat.
func ParsePixelFormat(s string) (PixelFormat, error) {
	switch f := PixelFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatYUYV, FormatNV12, FormatNV21, FormatYV12, FormatRGBA, FormatJPEG, FormatImplementationDefined:
		return f, nil
	case "yuy2", "yuv422":
		return FormatYUYV, nil
	case "blob", "mjpeg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unknown pixel format %q", s)
	}
}

// FrameSize returns the number of bytes an uncompressed frame needs.
// JPEG returns the worst-case size used to size destination buffers.
func (f PixelFormat) FrameSize(width, height int) int {
	switch f {
	case FormatYUYV:
		return width * height * 2
	case FormatNV12, FormatNV21, FormatYV12, FormatImplementationDefined:
		return width*height + 2*((width+1)/2)*((height+1)/2)
	case FormatRGBA:
		return width * height * 4
	case FormatJPEG:
		return MaxJPEGSize(width, height)
	default:
		return 0
	}
}

// IsCompressed reports whether the format is an encoded still.
func (f PixelFormat) IsCompressed() bool {
	return f == FormatJPEG
}

// JPEGBlobTrailerSize is the size of the trailer written after a JPEG stream.
const JPEGBlobTrailerSize = 8

// MaxJPEGSize is the destination size advertised for JPEG streams: a raw
// YUV 4:2:0 frame plus header slack and the BLOB trailer.
func MaxJPEGSize(width, height int) int {
	return width*height*3/2 + 64*1024 + JPEGBlobTrailerSize
}

// StreamUsage classifies what a stream is for. A pipeline holds at most one
// stream per usage.
type StreamUsage int

const (
	UsagePreview StreamUsage = iota
	UsageVideoRecord
	UsageStillCapture
	UsageCallback
)

func (u StreamUsage) String() string {
	switch u {
	case UsagePreview:
		return "preview"
	case UsageVideoRecord:
		return "video_record"
	case UsageStillCapture:
		return "still_capture"
	case UsageCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Size is a width/height pair.
type Size struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Area returns width × height.
func (s Size) Area() int {
	return s.Width * s.Height
}

// Rect is a pixel rectangle.
type Rect struct {
	X      int `yaml:"x" json:"x"`
	Y      int `yaml:"y" json:"y"`
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

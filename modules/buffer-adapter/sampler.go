package bufferadapter

import (
	"fmt"

	capturesource "github.com/e7canasta/orion-care-sensor/modules/capture-source"
	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

// sampler reads Y/Cb/Cr at source pixel coordinates.
type sampler struct {
	data   []byte
	format metadata.PixelFormat
	width  int
	height int
	stride int

	// chroma plane layout for 4:2:0 sources
	uvOff   int
	vOff    int
	uOff    int
	cstride int
}

func newSampler(src *capturesource.NativeBuffer) (*sampler, error) {
	if src.Width <= 0 || src.Height <= 0 {
		return nil, fmt.Errorf("%w: source size %dx%d", ErrUnsupportedFormat, src.Width, src.Height)
	}

	s := &sampler{
		data:   src.Data,
		format: src.Format,
		width:  src.Width,
		height: src.Height,
		stride: src.Stride,
	}

	var need int
	switch src.Format {
	case metadata.FormatYUYV:
		if s.stride < s.width*2 {
			s.stride = s.width * 2
		}
		need = s.stride * s.height
	case metadata.FormatNV12, metadata.FormatNV21:
		if s.stride < s.width {
			s.stride = s.width
		}
		s.uvOff = s.stride * s.height
		need = s.uvOff + s.stride*((s.height+1)/2)
	case metadata.FormatYV12:
		s.stride = s.width
		s.cstride = (s.width + 1) / 2
		ch := (s.height + 1) / 2
		s.vOff = s.width * s.height
		s.uOff = s.vOff + s.cstride*ch
		need = s.uOff + s.cstride*ch
	default:
		return nil, fmt.Errorf("%w: cannot read %s", ErrUnsupportedFormat, src.Format)
	}

	if len(s.data) < need {
		return nil, fmt.Errorf("%w: source has %d bytes, %s %dx%d needs %d",
			ErrBufferTooSmall, len(s.data), src.Format, s.width, s.height, need)
	}
	return s, nil
}

func (s *sampler) luma(x, y int) byte {
	switch s.format {
	case metadata.FormatYUYV:
		return s.data[y*s.stride+x*2]
	default:
		return s.data[y*s.stride+x]
	}
}

func (s *sampler) chroma(x, y int) (cb, cr byte) {
	switch s.format {
	case metadata.FormatYUYV:
		i := y*s.stride + (x&^1)*2
		return s.data[i+1], s.data[i+3]
	case metadata.FormatNV12:
		i := s.uvOff + (y/2)*s.stride + (x &^ 1)
		return s.data[i], s.data[i+1]
	case metadata.FormatNV21:
		i := s.uvOff + (y/2)*s.stride + (x &^ 1)
		return s.data[i+1], s.data[i]
	default: // YV12
		i := (y/2)*s.cstride + x/2
		return s.data[s.uOff+i], s.data[s.vOff+i]
	}
}

// buildMap maps n destination positions onto [off, off+span) source
// positions.
func buildMap(dst []int, off, span int) {
	n := len(dst)
	for i := range dst {
		dst[i] = off + (i*span)/n
	}
}

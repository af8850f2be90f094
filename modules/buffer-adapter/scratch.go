package bufferadapter

import (
	"bytes"
	"image"

	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

// Scratch is per-stream working memory reused across conversions.
type Scratch struct {
	xmap []int
	ymap []int
	img  *image.YCbCr
	enc  bytes.Buffer
}

// ScratchSize returns the bytes NewScratch allocates for a stream.
func ScratchSize(width, height int, format metadata.PixelFormat) int {
	n := (width + height) * 8
	if ResolveFormat(format) == metadata.FormatJPEG {
		n += width*height + 2*((width+1)/2)*((height+1)/2)
		n += metadata.MaxJPEGSize(width, height)
	}
	return n
}

// NewScratch preallocates working memory for a width×height stream.
func NewScratch(width, height int, format metadata.PixelFormat) *Scratch {
	s := &Scratch{
		xmap: make([]int, width),
		ymap: make([]int, height),
	}
	if ResolveFormat(format) == metadata.FormatJPEG {
		s.img = image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio420)
		s.enc.Grow(metadata.MaxJPEGSize(width, height))
	}
	return s
}

// Size reports the bytes currently held.
func (s *Scratch) Size() int {
	n := (cap(s.xmap) + cap(s.ymap)) * 8
	if s.img != nil {
		n += len(s.img.Y) + len(s.img.Cb) + len(s.img.Cr)
	}
	return n + s.enc.Cap()
}

// maps returns destination→source coordinate tables for crop scaled to w×h.
func (s *Scratch) maps(crop metadata.Rect, w, h int) ([]int, []int) {
	if cap(s.xmap) < w {
		s.xmap = make([]int, w)
	}
	if cap(s.ymap) < h {
		s.ymap = make([]int, h)
	}
	xmap, ymap := s.xmap[:w], s.ymap[:h]
	buildMap(xmap, crop.X, crop.Width)
	buildMap(ymap, crop.Y, crop.Height)
	return xmap, ymap
}

func (s *Scratch) ycbcr(w, h int) *image.YCbCr {
	if s.img == nil || s.img.Rect.Dx() != w || s.img.Rect.Dy() != h {
		s.img = image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio420)
	}
	return s.img
}

package bufferadapter

import (
	"image/color"

	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

// writeRaw fills an uncompressed destination. Width and height are even.
func writeRaw(s *sampler, format metadata.PixelFormat, dst *Target, xmap, ymap []int) {
	w, h := dst.Width, dst.Height
	out := dst.Data

	switch format {
	case metadata.FormatYUYV:
		for y := 0; y < h; y++ {
			sy := ymap[y]
			row := out[y*w*2:]
			for x := 0; x < w; x += 2 {
				sx := xmap[x]
				cb, cr := s.chroma(sx, sy)
				i := x * 2
				row[i] = s.luma(sx, sy)
				row[i+1] = cb
				row[i+2] = s.luma(xmap[x+1], sy)
				row[i+3] = cr
			}
		}

	case metadata.FormatNV12, metadata.FormatNV21:
		writeLuma(s, out, w, h, xmap, ymap)
		uv := out[w*h:]
		for y := 0; y < h; y += 2 {
			sy := ymap[y]
			row := uv[(y/2)*w:]
			for x := 0; x < w; x += 2 {
				cb, cr := s.chroma(xmap[x], sy)
				if format == metadata.FormatNV21 {
					cb, cr = cr, cb
				}
				row[x] = cb
				row[x+1] = cr
			}
		}

	case metadata.FormatYV12:
		writeLuma(s, out, w, h, xmap, ymap)
		cw, ch := w/2, h/2
		vPlane := out[w*h:]
		uPlane := out[w*h+cw*ch:]
		for y := 0; y < ch; y++ {
			sy := ymap[y*2]
			for x := 0; x < cw; x++ {
				cb, cr := s.chroma(xmap[x*2], sy)
				vPlane[y*cw+x] = cr
				uPlane[y*cw+x] = cb
			}
		}

	case metadata.FormatRGBA:
		for y := 0; y < h; y++ {
			sy := ymap[y]
			row := out[y*w*4:]
			for x := 0; x < w; x++ {
				sx := xmap[x]
				cb, cr := s.chroma(sx, sy)
				r, g, b := color.YCbCrToRGB(s.luma(sx, sy), cb, cr)
				i := x * 4
				row[i] = r
				row[i+1] = g
				row[i+2] = b
				row[i+3] = 0xff
			}
		}
	}
}

func writeLuma(s *sampler, out []byte, w, h int, xmap, ymap []int) {
	for y := 0; y < h; y++ {
		sy := ymap[y]
		row := out[y*w : (y+1)*w]
		for x := range row {
			row[x] = s.luma(xmap[x], sy)
		}
	}
}

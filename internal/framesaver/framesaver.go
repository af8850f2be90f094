// Package framesaver writes delivered capture buffers to disk.
package framesaver

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	bufferadapter "github.com/e7canasta/orion-care-sensor/modules/buffer-adapter"
)

// Saver writes JPEG stills and PNG preview snapshots.
//
// Thread-safe: can be called from result callbacks concurrently.
type Saver struct {
	outputDir string
	maxFiles  uint64

	reserved atomic.Uint64
	saved    atomic.Uint64
	dropped  atomic.Uint64
}

// New creates the output directory. maxFiles caps how many files are written
// (0 = unlimited); frames past the cap are counted as dropped.
func New(outputDir string, maxFiles int) (*Saver, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Saver{outputDir: outputDir, maxFiles: uint64(maxFiles)}, nil
}

// fileName: still_{frame:06d}_{timestamp}.{ext}
func (s *Saver) fileName(kind string, frameNumber uint32, ts time.Time, ext string) string {
	return filepath.Join(s.outputDir, fmt.Sprintf("%s_%06d_%s.%s",
		kind, frameNumber, ts.Format("20060102_150405.000"), ext))
}

func (s *Saver) reserve() bool {
	if s.maxFiles == 0 {
		return true
	}
	if s.reserved.Add(1) > s.maxFiles {
		s.dropped.Add(1)
		return false
	}
	return true
}

// SaveStill writes the JPEG held in a BLOB buffer (encoded stream followed by
// the trailer in the last bytes). Returns the written path, or "" when the
// file cap has been reached.
func (s *Saver) SaveStill(frameNumber uint32, ts time.Time, buf []byte) (string, error) {
	size, err := bufferadapter.ParseBlobTrailer(buf)
	if err != nil {
		s.dropped.Add(1)
		return "", fmt.Errorf("invalid still buffer: %w", err)
	}
	if !s.reserve() {
		return "", nil
	}

	path := s.fileName("still", frameNumber, ts, "jpg")
	if err := os.WriteFile(path, buf[:size], 0o644); err != nil {
		s.dropped.Add(1)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	s.saved.Add(1)
	return path, nil
}

// SavePreviewNV12 writes an NV12 frame as PNG.
func (s *Saver) SavePreviewNV12(frameNumber uint32, ts time.Time, data []byte, width, height int) (string, error) {
	img, err := nv12ToYCbCr(data, width, height)
	if err != nil {
		s.dropped.Add(1)
		return "", err
	}
	if !s.reserve() {
		return "", nil
	}

	path := s.fileName("preview", frameNumber, ts, "png")
	file, err := os.Create(path)
	if err != nil {
		s.dropped.Add(1)
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		s.dropped.Add(1)
		return "", fmt.Errorf("PNG encode failed: %w", err)
	}
	s.saved.Add(1)
	return path, nil
}

// nv12ToYCbCr splits the interleaved UV plane into an image.YCbCr.
func nv12ToYCbCr(data []byte, width, height int) (*image.YCbCr, error) {
	cw, ch := (width+1)/2, (height+1)/2
	if want := width*height + 2*cw*ch; len(data) < want {
		return nil, fmt.Errorf("invalid NV12 data size: got %d, expected %d", len(data), want)
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio420)
	for y := 0; y < height; y++ {
		copy(img.Y[y*img.YStride:y*img.YStride+width], data[y*width:(y+1)*width])
	}
	uv := data[width*height:]
	for y := 0; y < ch; y++ {
		for x := 0; x < cw; x++ {
			img.Cb[y*img.CStride+x] = uv[(y*cw+x)*2]
			img.Cr[y*img.CStride+x] = uv[(y*cw+x)*2+1]
		}
	}
	return img, nil
}

// Stats returns current save statistics.
func (s *Saver) Stats() (saved, dropped uint64) {
	return s.saved.Load(), s.dropped.Load()
}

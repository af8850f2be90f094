package bufferadapter

import (
	"encoding/binary"
	"fmt"
	"image/jpeg"

	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

// BlobID marks a JPEG BLOB trailer.
const BlobID = 0x00FF

const defaultJPEGQuality = 90

// encodeJPEG samples the cropped source into a 4:2:0 image rotated by the
// requested orientation, encodes it and appends the BLOB trailer.
func encodeJPEG(s *sampler, crop metadata.Rect, dst *Target, controls metadata.Controls, scratch *Scratch) (int, error) {
	rot, err := normalizeOrientation(controls.JPEGOrientation)
	if err != nil {
		return 0, err
	}

	quality := int(controls.JPEGQuality)
	if quality == 0 {
		quality = defaultJPEGQuality
	}
	quality = min(quality, 100)

	w, h := dst.Width, dst.Height
	rw, rh := w, h
	if rot == 90 || rot == 270 {
		rw, rh = h, w
	}

	img := scratch.ycbcr(rw, rh)
	xmap, ymap := scratch.maps(crop, w, h)

	for ry := 0; ry < rh; ry++ {
		for rx := 0; rx < rw; rx++ {
			ux, uy := unrotate(rx, ry, rot, w, h)
			sx, sy := xmap[ux], ymap[uy]
			img.Y[ry*img.YStride+rx] = s.luma(sx, sy)
			if rx%2 == 0 && ry%2 == 0 {
				ci := (ry/2)*img.CStride + rx/2
				img.Cb[ci], img.Cr[ci] = s.chroma(sx, sy)
			}
		}
	}

	scratch.enc.Reset()
	if err := jpeg.Encode(&scratch.enc, img, &jpeg.Options{Quality: quality}); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}

	n := scratch.enc.Len()
	if n+metadata.JPEGBlobTrailerSize > len(dst.Data) {
		return 0, fmt.Errorf("%w: encoded %d bytes + trailer, buffer has %d",
			ErrBufferTooSmall, n, len(dst.Data))
	}
	copy(dst.Data, scratch.enc.Bytes())
	writeBlobTrailer(dst.Data, n)
	return n, nil
}

func normalizeOrientation(o int32) (int, error) {
	r := int(((o % 360) + 360) % 360)
	if r%90 != 0 {
		return 0, fmt.Errorf("%w: orientation %d is not a multiple of 90", ErrEncodeFailed, o)
	}
	return r, nil
}

// unrotate maps a pixel of the rotated image back to the w×h upright image.
// Rotation is clockwise.
func unrotate(rx, ry, rot, w, h int) (int, int) {
	switch rot {
	case 90:
		return ry, h - 1 - rx
	case 180:
		return w - 1 - rx, h - 1 - ry
	case 270:
		return w - 1 - ry, rx
	default:
		return rx, ry
	}
}

// writeBlobTrailer stores the trailer in the last 8 bytes of buf:
// uint16 id, 2 bytes padding, uint32 size, little endian.
func writeBlobTrailer(buf []byte, size int) {
	t := buf[len(buf)-metadata.JPEGBlobTrailerSize:]
	binary.LittleEndian.PutUint16(t[0:2], BlobID)
	t[2], t[3] = 0, 0
	binary.LittleEndian.PutUint32(t[4:8], uint32(size))
}

// ParseBlobTrailer returns the encoded JPEG size recorded in buf.
func ParseBlobTrailer(buf []byte) (int, error) {
	if len(buf) < metadata.JPEGBlobTrailerSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrBufferTooSmall, len(buf))
	}
	t := buf[len(buf)-metadata.JPEGBlobTrailerSize:]
	if id := binary.LittleEndian.Uint16(t[0:2]); id != BlobID {
		return 0, fmt.Errorf("buffer-adapter: no blob trailer (id 0x%04x)", id)
	}
	size := int(binary.LittleEndian.Uint32(t[4:8]))
	if size > len(buf)-metadata.JPEGBlobTrailerSize {
		return 0, fmt.Errorf("buffer-adapter: blob size %d exceeds buffer", size)
	}
	return size, nil
}

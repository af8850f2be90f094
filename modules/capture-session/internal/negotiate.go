package internal

import (
	"fmt"

	bufferadapter "github.com/e7canasta/orion-care-sensor/modules/buffer-adapter"
	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

// negotiateStreams validates requested streams against the device and
// returns the confirmed shapes.
func negotiateStreams(chars *metadata.Characteristics, streams []Stream, maxBuffers int) ([]HalStream, error) {
	if len(streams) == 0 {
		return nil, fmt.Errorf("%w: no streams", ErrInvalidStreamConfig)
	}

	ids := make(map[uint32]bool, len(streams))
	usages := make(map[metadata.StreamUsage]uint32, len(streams))
	hal := make([]HalStream, 0, len(streams))

	for _, s := range streams {
		if ids[s.ID] {
			return nil, fmt.Errorf("%w: stream id %d used twice", ErrInvalidStreamConfig, s.ID)
		}
		ids[s.ID] = true

		if other, dup := usages[s.Usage]; dup {
			return nil, fmt.Errorf("%w: streams %d and %d both have usage %s",
				ErrInvalidStreamConfig, other, s.ID, s.Usage)
		}
		usages[s.Usage] = s.ID

		size := metadata.Size{Width: s.Width, Height: s.Height}
		if s.Width <= 0 || s.Height <= 0 || !chars.SupportsMode(size) {
			return nil, fmt.Errorf("%w: stream %d: resolution %s not supported by %s",
				ErrInvalidStreamConfig, s.ID, size, chars.Name)
		}
		if !chars.SupportsOutput(s.Format) {
			return nil, fmt.Errorf("%w: stream %d: format %q not supported by %s",
				ErrInvalidStreamConfig, s.ID, s.Format, chars.Name)
		}

		hal = append(hal, HalStream{
			ID:             s.ID,
			Width:          s.Width,
			Height:         s.Height,
			Format:         s.Format,
			OverrideFormat: bufferadapter.ResolveFormat(s.Format),
			ProducerUsage:  s.Usage,
			MaxBuffers:     maxBuffers,
		})
	}
	return hal, nil
}

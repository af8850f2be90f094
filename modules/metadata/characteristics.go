package metadata

import "time"

// StreamCapability is one (format, size) pair the device can produce.
type StreamCapability struct {
	Format           PixelFormat   `yaml:"format"`
	Size             Size          `yaml:"size"`
	MinFrameDuration time.Duration `yaml:"min_frame_duration"`
}

// FPSRange is a [min, max] target frame-rate range.
type FPSRange struct {
	Min int32 `yaml:"min"`
	Max int32 `yaml:"max"`
}

// Characteristics are the static properties of one physical device.
type Characteristics struct {
	DeviceID    uint32 `yaml:"device_id"`
	Name        string `yaml:"name"`
	DevicePath  string `yaml:"device_path"`
	Facing      string `yaml:"facing"`
	Orientation int32  `yaml:"orientation"`

	NativeFormat  PixelFormat   `yaml:"native_format"`
	CaptureModes  []Size        `yaml:"capture_modes"`
	OutputFormats []PixelFormat `yaml:"output_formats"`

	ActiveArray    Size       `yaml:"active_array"`
	PhysicalWidth  float32    `yaml:"physical_width_mm"`
	PhysicalHeight float32    `yaml:"physical_height_mm"`
	FocalLength    float32    `yaml:"focal_length_mm"`
	FPSRanges      []FPSRange `yaml:"fps_ranges"`

	MinFrameDuration time.Duration `yaml:"min_frame_duration"`
	MaxFrameDuration time.Duration `yaml:"max_frame_duration"`
	MaxJPEGSize      int           `yaml:"max_jpeg_size"`

	// FullResFPS applies to the largest capture mode, DefaultFPS to the rest.
	FullResFPS int `yaml:"full_res_fps"`
	DefaultFPS int `yaml:"default_fps"`
}

// SupportsMode reports whether the device can capture at size.
func (c *Characteristics) SupportsMode(size Size) bool {
	for _, m := range c.CaptureModes {
		if m == size {
			return true
		}
	}
	return false
}

// SupportsOutput reports whether format is offered to callers.
func (c *Characteristics) SupportsOutput(format PixelFormat) bool {
	for _, f := range c.OutputFormats {
		if f == format {
			return true
		}
	}
	return false
}

// LargestMode returns the capture mode with the largest area.
func (c *Characteristics) LargestMode() Size {
	var best Size
	for _, m := range c.CaptureModes {
		if m.Area() > best.Area() {
			best = m
		}
	}
	return best
}

// ModeFPS returns the frame rate the sensor runs at for a capture mode.
func (c *Characteristics) ModeFPS(size Size) int {
	if size == c.LargestMode() && c.FullResFPS > 0 {
		return c.FullResFPS
	}
	if c.DefaultFPS > 0 {
		return c.DefaultFPS
	}
	return 30
}

// StreamCapabilities expands modes × output formats into a flat list.
func (c *Characteristics) StreamCapabilities() []StreamCapability {
	caps := make([]StreamCapability, 0, len(c.CaptureModes)*len(c.OutputFormats))
	for _, f := range c.OutputFormats {
		for _, m := range c.CaptureModes {
			fps := c.ModeFPS(m)
			caps = append(caps, StreamCapability{
				Format:           f,
				Size:             m,
				MinFrameDuration: time.Second / time.Duration(fps),
			})
		}
	}
	return caps
}

// Clone returns a deep copy.
func (c *Characteristics) Clone() *Characteristics {
	if c == nil {
		return nil
	}
	out := *c
	out.CaptureModes = append([]Size(nil), c.CaptureModes...)
	out.OutputFormats = append([]PixelFormat(nil), c.OutputFormats...)
	out.FPSRanges = append([]FPSRange(nil), c.FPSRanges...)
	return &out
}

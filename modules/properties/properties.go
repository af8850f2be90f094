// Package properties supplies static device characteristics and per-template
// default request controls to the capture session.
//
// The built-in profile describes the OV5640 MIPI-CSI sensor. Other devices are
// described in a YAML file loaded with LoadFile:
//
//	devices:
//	  - device_id: 0
//	    name: ov5640
//	    device_path: /dev/video0
//	    native_format: yuyv
//	    capture_modes: [{width: 640, height: 480}, {width: 2592, height: 1944}]
//	    output_formats: [yuyv, nv12, jpeg]
//	templates:
//	  preview:
//	    jpeg_quality: 90
package properties

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

// ErrUnknownDevice is returned for a device id the store does not describe.
var ErrUnknownDevice = errors.New("properties: unknown device")

// Provider is the metadata/properties collaborator consumed by the session.
type Provider interface {
	// GetStaticCharacteristics returns a copy of the device's static
	// properties.
	GetStaticCharacteristics(deviceID uint32) (*metadata.Characteristics, error)

	// GetDefaultControls returns the default request controls for a template.
	GetDefaultControls(kind metadata.TemplateKind) (metadata.Controls, error)
}

// Store is an in-memory Provider. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	devices   map[uint32]*metadata.Characteristics
	overrides map[metadata.TemplateKind]templateOverride
}

// fileFormat is the YAML document layout.
type fileFormat struct {
	Devices   []metadata.Characteristics  `yaml:"devices"`
	Templates map[string]templateOverride `yaml:"templates"`
}

// templateOverride replaces selected template defaults. Nil fields keep the
// built-in value.
type templateOverride struct {
	JPEGQuality            *uint8  `yaml:"jpeg_quality"`
	JPEGOrientation        *int32  `yaml:"jpeg_orientation"`
	AEExposureCompensation *int32  `yaml:"ae_exposure_compensation"`
	AETargetFPSRange       []int32 `yaml:"ae_target_fps_range"`
}

// NewStore returns a store describing the given devices.
func NewStore(devices ...metadata.Characteristics) *Store {
	s := &Store{
		devices:   make(map[uint32]*metadata.Characteristics),
		overrides: make(map[metadata.TemplateKind]templateOverride),
	}
	for i := range devices {
		s.Add(devices[i])
	}
	return s
}

// NewDefaultStore returns a store with the OV5640 profile as device 0.
func NewDefaultStore() *Store {
	return NewStore(OV5640(0, "/dev/video0"))
}

// LoadFile reads a YAML properties file.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read properties file: %w", err)
	}
	return Parse(data)
}

// Parse builds a store from YAML bytes. Every device must declare at least
// one capture mode and one output format.
func Parse(data []byte) (*Store, error) {
	var doc fileFormat
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse properties: %w", err)
	}
	if len(doc.Devices) == 0 {
		return nil, fmt.Errorf("properties: no devices defined")
	}

	s := NewStore()
	for i := range doc.Devices {
		dev := doc.Devices[i]
		if err := validateDevice(&dev); err != nil {
			return nil, err
		}
		if _, exists := s.devices[dev.DeviceID]; exists {
			return nil, fmt.Errorf("properties: device %d defined twice", dev.DeviceID)
		}
		s.Add(dev)
	}

	for name, ov := range doc.Templates {
		kind, err := ParseTemplateKind(name)
		if err != nil {
			return nil, err
		}
		if ov.AETargetFPSRange != nil && len(ov.AETargetFPSRange) != 2 {
			return nil, fmt.Errorf("properties: template %s: ae_target_fps_range must have 2 values", name)
		}
		s.overrides[kind] = ov
	}

	slog.Debug("properties: store loaded",
		"devices", len(s.devices),
		"template_overrides", len(s.overrides),
	)
	return s, nil
}

func validateDevice(dev *metadata.Characteristics) error {
	if len(dev.CaptureModes) == 0 {
		return fmt.Errorf("properties: device %d: capture_modes is required", dev.DeviceID)
	}
	if len(dev.OutputFormats) == 0 {
		return fmt.Errorf("properties: device %d: output_formats is required", dev.DeviceID)
	}
	for _, m := range dev.CaptureModes {
		if m.Width <= 0 || m.Height <= 0 || m.Width%2 != 0 {
			return fmt.Errorf("properties: device %d: invalid capture mode %s", dev.DeviceID, m)
		}
	}
	for _, f := range dev.OutputFormats {
		if _, err := metadata.ParsePixelFormat(string(f)); err != nil {
			return fmt.Errorf("properties: device %d: %w", dev.DeviceID, err)
		}
	}
	if dev.NativeFormat == "" {
		dev.NativeFormat = metadata.FormatYUYV
	}
	if dev.ActiveArray.Area() == 0 {
		dev.ActiveArray = dev.LargestMode()
	}
	if dev.MaxJPEGSize == 0 {
		largest := dev.LargestMode()
		dev.MaxJPEGSize = metadata.MaxJPEGSize(largest.Width, largest.Height)
	}
	if dev.DefaultFPS == 0 {
		dev.DefaultFPS = 30
	}
	if dev.FullResFPS == 0 {
		dev.FullResFPS = dev.DefaultFPS
	}
	if len(dev.FPSRanges) == 0 {
		dev.FPSRanges = []metadata.FPSRange{{Min: int32(dev.FullResFPS), Max: int32(dev.DefaultFPS)}}
	}
	if dev.MinFrameDuration == 0 {
		dev.MinFrameDuration = time.Second / time.Duration(dev.DefaultFPS)
	}
	if dev.MaxFrameDuration == 0 {
		dev.MaxFrameDuration = 30 * time.Second
	}
	return nil
}

// Add registers or replaces a device.
func (s *Store) Add(dev metadata.Characteristics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[dev.DeviceID] = dev.Clone()
}

// DeviceIDs lists the known devices.
func (s *Store) DeviceIDs() []uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint32, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	return ids
}

// GetStaticCharacteristics implements Provider.
func (s *Store) GetStaticCharacteristics(deviceID uint32) (*metadata.Characteristics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev, ok := s.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDevice, deviceID)
	}
	return dev.Clone(), nil
}

// GetDefaultControls implements Provider.
func (s *Store) GetDefaultControls(kind metadata.TemplateKind) (metadata.Controls, error) {
	c, err := DefaultControls(kind)
	if err != nil {
		return metadata.Controls{}, err
	}

	s.mu.RLock()
	ov, ok := s.overrides[kind]
	s.mu.RUnlock()
	if ok {
		if ov.JPEGQuality != nil {
			c.JPEGQuality = *ov.JPEGQuality
		}
		if ov.JPEGOrientation != nil {
			c.JPEGOrientation = *ov.JPEGOrientation
		}
		if ov.AEExposureCompensation != nil {
			c.AEExposureCompensation = *ov.AEExposureCompensation
		}
		if len(ov.AETargetFPSRange) == 2 {
			c.AETargetFPSRange = [2]int32{ov.AETargetFPSRange[0], ov.AETargetFPSRange[1]}
		}
	}
	return c, nil
}

// ParseTemplateKind maps a template name to its kind.
func ParseTemplateKind(name string) (metadata.TemplateKind, error) {
	for k := metadata.TemplatePreview; k <= metadata.TemplateManual; k++ {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("properties: unknown template %q", name)
}

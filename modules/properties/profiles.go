package properties

import (
	"fmt"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

// OV5640 returns the static profile of the OV5640 MIPI-CSI sensor. The sensor
// only streams YUYV; every other output format is produced by the buffer
// adapter.
func OV5640(deviceID uint32, devicePath string) metadata.Characteristics {
	return metadata.Characteristics{
		DeviceID:     deviceID,
		Name:         "ov5640",
		DevicePath:   devicePath,
		Facing:       "back",
		Orientation:  0,
		NativeFormat: metadata.FormatYUYV,
		CaptureModes: []metadata.Size{
			{Width: 640, Height: 480},
			{Width: 720, Height: 480},
			{Width: 1280, Height: 720},
			{Width: 1920, Height: 1080},
			{Width: 2592, Height: 1944},
		},
		OutputFormats: []metadata.PixelFormat{
			metadata.FormatYUYV,
			metadata.FormatNV12,
			metadata.FormatNV21,
			metadata.FormatYV12,
			metadata.FormatRGBA,
			metadata.FormatJPEG,
			metadata.FormatImplementationDefined,
		},
		ActiveArray:    metadata.Size{Width: 2592, Height: 1944},
		PhysicalWidth:  3.6288, // 2592 x 1.4um
		PhysicalHeight: 2.7216, // 1944 x 1.4um
		FocalLength:    3.37,
		FPSRanges: []metadata.FPSRange{
			{Min: 10, Max: 30},
			{Min: 30, Max: 30},
		},
		MinFrameDuration: 33331760 * time.Nanosecond,
		MaxFrameDuration: 30 * time.Second,
		MaxJPEGSize:      metadata.MaxJPEGSize(2592, 1944),
		FullResFPS:       15,
		DefaultFPS:       30,
	}
}

// DefaultControls returns the built-in controls for a request template.
func DefaultControls(kind metadata.TemplateKind) (metadata.Controls, error) {
	c := metadata.Controls{
		ControlMode:      metadata.ControlModeAuto,
		AEMode:           metadata.AEModeOn,
		AETargetFPSRange: [2]int32{10, 30},
		AWBMode:          metadata.AWBModeAuto,
		JPEGQuality:      90,
	}

	switch kind {
	case metadata.TemplatePreview:
		c.CaptureIntent = metadata.CaptureIntentPreview
		c.AFMode = metadata.AFModeContinuousPicture
	case metadata.TemplateStillCapture:
		c.CaptureIntent = metadata.CaptureIntentStillCapture
		c.AFMode = metadata.AFModeContinuousPicture
		c.JPEGQuality = 95
	case metadata.TemplateVideoRecord:
		c.CaptureIntent = metadata.CaptureIntentVideoRecord
		c.AFMode = metadata.AFModeContinuousVideo
		c.AETargetFPSRange = [2]int32{30, 30}
	case metadata.TemplateVideoSnapshot:
		c.CaptureIntent = metadata.CaptureIntentVideoSnapshot
		c.AFMode = metadata.AFModeContinuousVideo
		c.AETargetFPSRange = [2]int32{30, 30}
	case metadata.TemplateZeroShutterLag:
		c.CaptureIntent = metadata.CaptureIntentZeroShutterLag
		c.AFMode = metadata.AFModeContinuousPicture
	case metadata.TemplateManual:
		c.CaptureIntent = metadata.CaptureIntentManual
		c.ControlMode = metadata.ControlModeOff
		c.AEMode = metadata.AEModeOff
		c.AFMode = metadata.AFModeOff
		c.AWBMode = metadata.AWBModeOff
		c.ExposureTime = 10 * time.Millisecond
		c.Sensitivity = 100
		c.FrameDuration = 33 * time.Millisecond
	default:
		return metadata.Controls{}, fmt.Errorf("properties: unsupported template %d", kind)
	}
	return c, nil
}

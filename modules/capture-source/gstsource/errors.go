package gstsource

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory classifies GStreamer errors for telemetry.
type ErrorCategory int

const (
	// ErrCategoryDevice indicates the V4L2 node is missing or failed I/O.
	ErrCategoryDevice ErrorCategory = iota
	// ErrCategoryBusy indicates another process holds the device.
	ErrCategoryBusy
	// ErrCategoryFormat indicates caps negotiation failed.
	ErrCategoryFormat
	// ErrCategoryUnknown indicates unclassified errors.
	ErrCategoryUnknown
)

func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryBusy:
		return "busy"
	case ErrCategoryFormat:
		return "format"
	default:
		return "unknown"
	}
}

// classifyGStreamerError categorizes a bus error.
// go-gst's GError does not expose Domain(), so we rely on string matching.
func classifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return classifyMessage(gerr.Error(), gerr.DebugString())
}

func classifyMessage(errMsg, debugStr string) ErrorCategory {
	combined := strings.ToLower(errMsg + " " + debugStr)

	switch {
	case containsAny(combined, "busy", "ebusy", "in use"):
		return ErrCategoryBusy
	case containsAny(combined, "not-negotiated", "not negotiated", "caps", "format", "negotiation"):
		return ErrCategoryFormat
	case containsAny(combined, "no such file", "cannot identify device", "not a capture device",
		"v4l2", "ioctl", "failed to allocate", "resource"):
		return ErrCategoryDevice
	default:
		return ErrCategoryUnknown
	}
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

package gstsource

import (
	"testing"

	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

func TestBuildCaps(t *testing.T) {
	tests := []struct {
		name    string
		format  metadata.PixelFormat
		w, h    int
		fps     int
		want    string
		wantErr bool
	}{
		{"yuyv vga", metadata.FormatYUYV, 640, 480, 30, "video/x-raw,format=YUY2,width=640,height=480,framerate=30/1", false},
		{"nv12 full res", metadata.FormatNV12, 2592, 1944, 15, "video/x-raw,format=NV12,width=2592,height=1944,framerate=15/1", false},
		{"zero fps defaults", metadata.FormatRGBA, 1280, 720, 0, "video/x-raw,format=RGBA,width=1280,height=720,framerate=30/1", false},
		{"jpeg has no raw caps", metadata.FormatJPEG, 640, 480, 30, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildCaps(tt.format, tt.w, tt.h, tt.fps)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildCaps() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("buildCaps() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStride(t *testing.T) {
	if got := stride(metadata.FormatYUYV, 640); got != 1280 {
		t.Errorf("yuyv stride = %d", got)
	}
	if got := stride(metadata.FormatRGBA, 640); got != 2560 {
		t.Errorf("rgba stride = %d", got)
	}
	if got := stride(metadata.FormatNV12, 640); got != 640 {
		t.Errorf("nv12 stride = %d", got)
	}
}

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		msg, debug string
		want       ErrorCategory
	}{
		{"Device '/dev/video0' is busy", "", ErrCategoryBusy},
		{"Internal data stream error.", "streaming stopped, reason not-negotiated (-4)", ErrCategoryFormat},
		{"Cannot identify device '/dev/video9'.", "No such file or directory", ErrCategoryDevice},
		{"Something odd", "", ErrCategoryUnknown},
	}

	for _, tt := range tests {
		if got := classifyMessage(tt.msg, tt.debug); got != tt.want {
			t.Errorf("classifyMessage(%q) = %s, want %s", tt.msg, got, tt.want)
		}
	}
}

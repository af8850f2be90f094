package metadata

import (
	"testing"
	"time"
)

func TestParsePixelFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    PixelFormat
		wantErr bool
	}{
		{"yuyv", FormatYUYV, false},
		{"YUY2", FormatYUYV, false},
		{" nv12 ", FormatNV12, false},
		{"blob", FormatJPEG, false},
		{"MJPEG", FormatJPEG, false},
		{"implementation_defined", FormatImplementationDefined, false},
		{"h264", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParsePixelFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePixelFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePixelFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFrameSize(t *testing.T) {
	tests := []struct {
		format PixelFormat
		w, h   int
		want   int
	}{
		{FormatYUYV, 640, 480, 614400},
		{FormatNV12, 640, 480, 460800},
		{FormatNV21, 640, 480, 460800},
		{FormatYV12, 640, 480, 460800},
		{FormatRGBA, 640, 480, 1228800},
		{FormatJPEG, 640, 480, 460800 + 64*1024 + 8},
		{PixelFormat("bogus"), 640, 480, 0},
	}

	for _, tt := range tests {
		if got := tt.format.FrameSize(tt.w, tt.h); got != tt.want {
			t.Errorf("%s.FrameSize(%d, %d) = %d, want %d", tt.format, tt.w, tt.h, got, tt.want)
		}
	}

	if !FormatJPEG.IsCompressed() || FormatNV12.IsCompressed() {
		t.Error("only jpeg is compressed")
	}
}

func TestCharacteristicsHelpers(t *testing.T) {
	c := &Characteristics{
		CaptureModes:  []Size{{640, 480}, {2592, 1944}, {1280, 720}},
		OutputFormats: []PixelFormat{FormatYUYV, FormatJPEG},
		FullResFPS:    15,
		DefaultFPS:    30,
	}

	if got := c.LargestMode(); got != (Size{2592, 1944}) {
		t.Errorf("LargestMode() = %v", got)
	}
	if got := c.ModeFPS(Size{2592, 1944}); got != 15 {
		t.Errorf("ModeFPS(full res) = %d, want 15", got)
	}
	if got := c.ModeFPS(Size{640, 480}); got != 30 {
		t.Errorf("ModeFPS(vga) = %d, want 30", got)
	}

	caps := c.StreamCapabilities()
	if len(caps) != 6 {
		t.Fatalf("StreamCapabilities() len = %d, want 6", len(caps))
	}
	for _, sc := range caps {
		if sc.Size == (Size{2592, 1944}) && sc.MinFrameDuration != time.Second/15 {
			t.Errorf("full res min frame duration = %v", sc.MinFrameDuration)
		}
	}

	clone := c.Clone()
	clone.CaptureModes[0] = Size{1, 1}
	clone.OutputFormats[0] = FormatRGBA
	if c.CaptureModes[0] != (Size{640, 480}) || c.OutputFormats[0] != FormatYUYV {
		t.Error("Clone() shares slices with the original")
	}
}

func TestEnumStrings(t *testing.T) {
	if AEStatePrecapture.String() != "precapture" {
		t.Errorf("AEStatePrecapture = %q", AEStatePrecapture.String())
	}
	if AFStateFocusedLocked.String() != "focused_locked" {
		t.Errorf("AFStateFocusedLocked = %q", AFStateFocusedLocked.String())
	}
	if UsageStillCapture.String() != "still_capture" {
		t.Errorf("UsageStillCapture = %q", UsageStillCapture.String())
	}
	if !AFModeContinuousPicture.IsContinuous() || AFModeAuto.IsContinuous() {
		t.Error("IsContinuous mismatch")
	}
}

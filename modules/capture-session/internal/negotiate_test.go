package internal

import (
	"errors"
	"testing"

	"github.com/e7canasta/orion-care-sensor/modules/metadata"
	"github.com/e7canasta/orion-care-sensor/modules/properties"
)

func TestNegotiateStreams(t *testing.T) {
	chars := properties.OV5640(0, "/dev/video0")

	hal, err := negotiateStreams(&chars, []Stream{
		{ID: 1, Width: 640, Height: 480, Format: metadata.FormatImplementationDefined, Usage: metadata.UsagePreview},
		{ID: 2, Width: 2592, Height: 1944, Format: metadata.FormatJPEG, Usage: metadata.UsageStillCapture},
	}, 4)
	if err != nil {
		t.Fatalf("negotiateStreams() error = %v", err)
	}
	if len(hal) != 2 {
		t.Fatalf("got %d hal streams", len(hal))
	}
	if hal[0].OverrideFormat != metadata.FormatNV12 {
		t.Errorf("implementation defined negotiated to %s, want nv12", hal[0].OverrideFormat)
	}
	if hal[1].OverrideFormat != metadata.FormatJPEG || hal[1].MaxBuffers != 4 {
		t.Errorf("still stream = %+v", hal[1])
	}
}

func TestNegotiateStreamsRejects(t *testing.T) {
	chars := properties.OV5640(0, "/dev/video0")
	preview := Stream{ID: 1, Width: 640, Height: 480, Format: metadata.FormatNV12, Usage: metadata.UsagePreview}

	tests := []struct {
		name    string
		streams []Stream
	}{
		{"empty", nil},
		{"unsupported resolution", []Stream{{ID: 1, Width: 800, Height: 600, Format: metadata.FormatNV12}}},
		{"unsupported format", []Stream{{ID: 1, Width: 640, Height: 480, Format: "bayer"}}},
		{"duplicate id", []Stream{preview, {ID: 1, Width: 1280, Height: 720, Format: metadata.FormatNV12, Usage: metadata.UsageVideoRecord}}},
		{"duplicate usage", []Stream{preview, {ID: 2, Width: 1280, Height: 720, Format: metadata.FormatNV12, Usage: metadata.UsagePreview}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := negotiateStreams(&chars, tt.streams, 4)
			if !errors.Is(err, ErrInvalidStreamConfig) {
				t.Errorf("error = %v, want ErrInvalidStreamConfig", err)
			}
		})
	}
}

func TestScaleCrop(t *testing.T) {
	active := metadata.Size{Width: 2592, Height: 1944}

	got := scaleCrop(metadata.Rect{X: 1296, Y: 0, Width: 1296, Height: 972}, active, 640, 480)
	want := metadata.Rect{X: 320, Y: 0, Width: 320, Height: 240}
	if got != want {
		t.Errorf("scaleCrop() = %+v, want %+v", got, want)
	}

	if got := scaleCrop(metadata.Rect{}, active, 640, 480); got != (metadata.Rect{}) {
		t.Errorf("empty crop scaled to %+v", got)
	}
}

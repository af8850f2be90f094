package gstsource

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

// pipelineConfig contains configuration for GStreamer pipeline creation
type pipelineConfig struct {
	DevicePath  string
	Width       int
	Height      int
	FPS         int
	Format      metadata.PixelFormat
	BufferCount int
}

// pipelineElements holds references needed for callbacks and cleanup
type pipelineElements struct {
	Pipeline   *gst.Pipeline
	AppSink    *app.Sink
	Source     *gst.Element
	CapsFilter *gst.Element
}

// createPipeline builds a V4L2 capture pipeline:
//
//	v4l2src → videoconvert → videoscale → capsfilter → queue → appsink
//
// The pipeline is configured but NOT started (state remains NULL).
func createPipeline(cfg pipelineConfig) (*pipelineElements, error) {
	gst.Init(nil)

	capsStr, err := buildCaps(cfg.Format, cfg.Width, cfg.Height, cfg.FPS)
	if err != nil {
		return nil, err
	}

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("failed to create v4l2src: %w", err)
	}
	src.SetProperty("device", cfg.DevicePath)
	src.SetProperty("do-timestamp", true)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0)

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	queue, err := gst.NewElement("queue")
	if err != nil {
		return nil, fmt.Errorf("failed to create queue: %w", err)
	}
	bufferCount := cfg.BufferCount
	if bufferCount <= 0 {
		bufferCount = 4
	}
	queue.SetProperty("max-size-buffers", uint(bufferCount))
	queue.SetProperty("leaky", 2) // downstream: drop oldest

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)
	appsink.SetProperty("max-buffers", 1)
	appsink.SetProperty("drop", true)

	pipeline.AddMany(src, converter, scaler, capsfilter, queue, appsink.Element)
	if err := gst.ElementLinkMany(src, converter, scaler, capsfilter, queue, appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	slog.Debug("gstsource: pipeline created",
		"device", cfg.DevicePath,
		"caps", capsStr,
		"buffers", bufferCount,
	)

	return &pipelineElements{
		Pipeline:   pipeline,
		AppSink:    appsink,
		Source:     src,
		CapsFilter: capsfilter,
	}, nil
}

// destroyPipeline sets the pipeline to NULL. Safe on nil.
func destroyPipeline(elements *pipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}
	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	return nil
}

// gstFormat maps a pixel format to its GStreamer raw video format name.
func gstFormat(f metadata.PixelFormat) (string, error) {
	switch f {
	case metadata.FormatYUYV:
		return "YUY2", nil
	case metadata.FormatNV12:
		return "NV12", nil
	case metadata.FormatNV21:
		return "NV21", nil
	case metadata.FormatYV12:
		return "YV12", nil
	case metadata.FormatRGBA:
		return "RGBA", nil
	default:
		return "", fmt.Errorf("gstsource: no raw caps for format %s", f)
	}
}

// buildCaps builds the capsfilter string, e.g.
// "video/x-raw,format=YUY2,width=640,height=480,framerate=30/1".
func buildCaps(format metadata.PixelFormat, width, height, fps int) (string, error) {
	name, err := gstFormat(format)
	if err != nil {
		return "", err
	}
	if fps <= 0 {
		fps = 30
	}
	return fmt.Sprintf(
		"video/x-raw,format=%s,width=%d,height=%d,framerate=%d/1",
		name, width, height, fps,
	), nil
}

// stride returns the row pitch of the first plane.
func stride(format metadata.PixelFormat, width int) int {
	switch format {
	case metadata.FormatYUYV:
		return width * 2
	case metadata.FormatRGBA:
		return width * 4
	default:
		return width
	}
}

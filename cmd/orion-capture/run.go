package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/e7canasta/orion-care-sensor/internal/config"
	"github.com/e7canasta/orion-care-sensor/internal/framesaver"
	capturesession "github.com/e7canasta/orion-care-sensor/modules/capture-session"
	capturesource "github.com/e7canasta/orion-care-sensor/modules/capture-source"
	"github.com/e7canasta/orion-care-sensor/modules/capture-source/gstsource"
	"github.com/e7canasta/orion-care-sensor/modules/metadata"
	resultemitter "github.com/e7canasta/orion-care-sensor/modules/result-emitter"
)

const (
	previewStreamID uint32 = 0
	stillStreamID   uint32 = 1
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Frames        int
	OutputDir     string
	StatsInterval time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit capture requests until done or interrupted",
		Long: `Configure a preview (and optional still) pipeline, then keep a bounded
number of frames in flight against the capture source.

Example:
  orion-capture run --frames 100
  orion-capture run --config orion.yaml --output ./captures --debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("frames") {
				opts.cfg.Run.Frames = opts.Frames
			}
			if opts.OutputDir != "" {
				opts.cfg.Run.OutputDir = opts.OutputDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCapture(ctx, opts.cfg, opts.StatsInterval)
		},
	}

	cmd.Flags().IntVar(&opts.Frames, "frames", 0, "frames to capture (0 = until interrupted; overrides run.frames)")
	cmd.Flags().StringVarP(&opts.OutputDir, "output", "o", "", "directory to save stills (overrides run.output_dir)")
	cmd.Flags().DurationVar(&opts.StatsInterval, "stats-interval", 10*time.Second, "interval between stats reports")

	return cmd
}

func newSource(cfg *config.Config) capturesource.Source {
	if cfg.Source.Kind == "v4l2" {
		return gstsource.New()
	}
	return capturesource.NewMockSource(capturesource.MockConfig{
		Latency:       cfg.Source.Mock.Latency,
		ConvergeAfter: cfg.Source.Mock.ConvergeAfter,
	})
}

func runCapture(ctx context.Context, cfg *config.Config, statsInterval time.Duration) error {
	store, err := loadProperties(cfg)
	if err != nil {
		return err
	}

	sess, err := capturesession.New(capturesession.Config{
		CameraID:          cfg.CameraID,
		Source:            newSource(cfg),
		Properties:        store,
		CaptureTimeout:    cfg.Session.CaptureTimeout,
		ScratchBudget:     cfg.Session.ScratchBudgetMB << 20,
		DeviceBufferCount: cfg.Session.DeviceBufferCount,
	})
	if err != nil {
		return err
	}

	var closeFwd func()
	defer func() {
		sess.DestroyPipelines()
		// no result may arrive once the forwarder is closed
		if closeFwd != nil {
			closeFwd()
		}
	}()

	sink, err := newResultSink(cfg)
	if err != nil {
		return err
	}

	var cb capturesession.Callback = sink
	if cfg.MQTT.Enabled {
		fwd, closer, err := newForwarder(ctx, cfg, sink)
		if err != nil {
			return err
		}
		closeFwd = closer
		cb = fwd
	}

	streams := []capturesession.Stream{streamFromConfig(previewStreamID, cfg.Pipeline.Preview, metadata.UsagePreview)}
	if cfg.Pipeline.Still != nil {
		streams = append(streams, streamFromConfig(stillStreamID, *cfg.Pipeline.Still, metadata.UsageStillCapture))
	}

	pipelineID, hal, err := sess.ConfigurePipeline(cfg.CameraID, cb, streams)
	if err != nil {
		return err
	}
	if err := sess.BuildPipelines(); err != nil {
		return err
	}
	for _, h := range hal {
		slog.Info("orion-capture: stream configured",
			"stream_id", h.ID,
			"resolution", fmt.Sprintf("%dx%d", h.Width, h.Height),
			"format", h.OverrideFormat,
			"max_buffers", h.MaxBuffers,
		)
	}

	previewSettings, err := sess.ConstructDefaultRequestSettings(metadata.TemplatePreview)
	if err != nil {
		return err
	}
	stillSettings, err := sess.ConstructDefaultRequestSettings(metadata.TemplateStillCapture)
	if err != nil {
		return err
	}

	// one buffer set per in-flight slot; slots free in frame order
	ring := make([][]capturesession.OutputBuffer, cfg.Run.InFlight)
	for i := range ring {
		ring[i] = allocBuffers(hal)
	}

	if statsInterval <= 0 {
		statsInterval = 10 * time.Second
	}
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	start := time.Now()
	submitted := 0

loop:
	for n := uint32(1); cfg.Run.Frames == 0 || int(n) <= cfg.Run.Frames; n++ {
		select {
		case sink.slots <- struct{}{}:
		case <-ctx.Done():
			break loop
		}

		select {
		case <-ticker.C:
			logStats(sess, sink)
		default:
		}

		bufs := ring[int(n)%len(ring)]
		req := capturesession.CaptureRequest{
			PipelineID:    pipelineID,
			OutputBuffers: bufs[:1],
			Settings:      &previewSettings,
		}
		if len(bufs) > 1 && int(n)%cfg.Run.StillEvery == 0 {
			req.OutputBuffers = bufs
			req.Settings = &stillSettings
		}

		if err := sess.SubmitRequests(n, []capturesession.CaptureRequest{req}); err != nil {
			<-sink.slots
			if errors.Is(err, capturesession.ErrInvalidState) {
				break loop
			}
			return fmt.Errorf("submit frame %d: %w", n, err)
		}
		submitted++

		if cfg.Run.Interval > 0 {
			select {
			case <-time.After(cfg.Run.Interval):
			case <-ctx.Done():
				break loop
			}
		}
	}

	if ctx.Err() != nil {
		slog.Info("orion-capture: interrupted, flushing")
		if err := sess.Flush(); err != nil {
			return err
		}
	}
	// wait for every slot to come back
	for i := 0; i < cap(sink.slots); i++ {
		sink.slots <- struct{}{}
	}

	printSummary(sess.Stats(), sink, submitted, time.Since(start))
	return nil
}

func streamFromConfig(id uint32, s config.StreamConfig, usage metadata.StreamUsage) capturesession.Stream {
	return capturesession.Stream{
		ID:     id,
		Width:  s.Width,
		Height: s.Height,
		Format: metadata.PixelFormat(s.Format),
		Usage:  usage,
	}
}

func allocBuffers(hal []capturesession.HalStream) []capturesession.OutputBuffer {
	out := make([]capturesession.OutputBuffer, len(hal))
	for i, h := range hal {
		out[i] = capturesession.OutputBuffer{
			StreamID: h.ID,
			BufferID: uint64(i),
			Data:     make([]byte, h.OverrideFormat.FrameSize(h.Width, h.Height)),
		}
	}
	return out
}

func newForwarder(ctx context.Context, cfg *config.Config, inner capturesession.Callback) (*resultemitter.Forwarder, func(), error) {
	enc, err := resultemitter.ParseEncoding(cfg.MQTT.Encoding)
	if err != nil {
		return nil, nil, err
	}

	pub := resultemitter.NewMQTTPublisher(resultemitter.MQTTConfig{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
	})
	if err := pub.Connect(ctx); err != nil {
		return nil, nil, err
	}

	fwd := resultemitter.NewForwarder(inner, pub, resultemitter.Config{
		CameraID:    cfg.CameraID,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		QoS:         cfg.MQTT.QoS,
		Encoding:    enc,
	})
	return fwd, func() {
		fwd.Close()
		pub.Disconnect()
	}, nil
}

// resultSink is the pipeline callback used by run: saves stills and frees
// the in-flight slot of each answered frame.
type resultSink struct {
	slots chan struct{}
	saver *framesaver.Saver

	previewNV12 bool
	previewW    int
	previewH    int
	saveEvery   int

	ok        atomic.Uint64
	partial   atomic.Uint64
	failed    atomic.Uint64
	cancelled atomic.Uint64
	shutters  atomic.Uint64
}

func newResultSink(cfg *config.Config) (*resultSink, error) {
	s := &resultSink{
		slots:       make(chan struct{}, cfg.Run.InFlight),
		previewNV12: cfg.Pipeline.Preview.Format == string(metadata.FormatNV12),
		previewW:    cfg.Pipeline.Preview.Width,
		previewH:    cfg.Pipeline.Preview.Height,
		saveEvery:   cfg.Run.StillEvery,
	}
	if cfg.Run.OutputDir != "" {
		saver, err := framesaver.New(cfg.Run.OutputDir, cfg.Run.MaxSaved)
		if err != nil {
			return nil, err
		}
		s.saver = saver
		slog.Info("orion-capture: frame saving enabled", "directory", cfg.Run.OutputDir, "max_saved", cfg.Run.MaxSaved)
	}
	return s, nil
}

func (s *resultSink) ProcessPipelineResult(r *capturesession.CaptureResult) {
	defer func() { <-s.slots }()

	switch {
	case errors.Is(r.Err, capturesession.ErrRequestCancelled):
		s.cancelled.Add(1)
		return
	case r.Err != nil:
		s.failed.Add(1)
		slog.Warn("orion-capture: frame failed", "frame_number", r.FrameNumber, "error", r.Err)
		return
	}

	bad := 0
	for _, b := range r.OutputBuffers {
		if b.Status != capturesession.BufferStatusOK {
			bad++
			continue
		}
		s.save(r, b)
	}
	if bad > 0 {
		s.partial.Add(1)
	} else {
		s.ok.Add(1)
	}
}

func (s *resultSink) save(r *capturesession.CaptureResult, b capturesession.StreamBuffer) {
	if s.saver == nil {
		return
	}

	ts := time.Now()
	if r.Metadata != nil {
		ts = r.Metadata.SensorTimestamp
	}

	var (
		path string
		err  error
	)
	switch {
	case b.StreamID == stillStreamID:
		path, err = s.saver.SaveStill(r.FrameNumber, ts, b.Data)
	case s.previewNV12 && (int(r.FrameNumber)-1)%s.saveEvery == 0:
		path, err = s.saver.SavePreviewNV12(r.FrameNumber, ts, b.Data, s.previewW, s.previewH)
	default:
		return
	}
	if err != nil {
		slog.Warn("orion-capture: save failed", "frame_number", r.FrameNumber, "stream_id", b.StreamID, "error", err)
		return
	}
	if path != "" {
		slog.Debug("orion-capture: frame saved", "frame_number", r.FrameNumber, "path", path, "trace_id", r.TraceID)
	}
}

func (s *resultSink) Notify(msg capturesession.NotifyMessage) {
	if msg.Type == capturesession.NotifyShutter {
		s.shutters.Add(1)
	}
}

func logStats(sess capturesession.Session, sink *resultSink) {
	st := sess.Stats()
	slog.Info("orion-capture: stats",
		"frames_submitted", st.FramesSubmitted,
		"results_delivered", st.ResultsDelivered,
		"ok", sink.ok.Load(),
		"partial", sink.partial.Load(),
		"failed", sink.failed.Load(),
		"queue_depth", st.QueueDepth,
		"device_reopens", st.DeviceReopens,
	)
}

func printSummary(st capturesession.Stats, sink *resultSink, submitted int, elapsed time.Duration) {
	fps := 0.0
	if elapsed > 0 {
		fps = float64(sink.ok.Load()+sink.partial.Load()) / elapsed.Seconds()
	}

	fmt.Printf("\n")
	fmt.Printf("╭─────────────────────────────────────────────────────────╮\n")
	fmt.Printf("│ Capture Summary\n")
	fmt.Printf("├─────────────────────────────────────────────────────────┤\n")
	fmt.Printf("│ Frames Submitted:   %6d\n", submitted)
	fmt.Printf("│ Results OK:         %6d\n", sink.ok.Load())
	fmt.Printf("│ Results Partial:    %6d\n", sink.partial.Load())
	fmt.Printf("│ Results Failed:     %6d\n", sink.failed.Load())
	fmt.Printf("│ Results Cancelled:  %6d\n", sink.cancelled.Load())
	fmt.Printf("│ Device Reopens:     %6d\n", st.DeviceReopens)
	fmt.Printf("│ Duration:           %6.1f seconds\n", elapsed.Seconds())
	fmt.Printf("│ Throughput:         %6.2f fps\n", fps)
	if sink.saver != nil {
		saved, dropped := sink.saver.Stats()
		fmt.Printf("│ Files Saved:        %6d (dropped %d)\n", saved, dropped)
	}
	fmt.Printf("╰─────────────────────────────────────────────────────────╯\n")
}

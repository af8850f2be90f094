// Package resultemitter publishes capture result summaries to a message
// broker next to normal callback delivery.
//
// A Forwarder wraps a pipeline callback. Each result is handed to the inner
// callback first, then summarized and queued for publishing. The publish queue
// drops the newest summary when full, so a slow broker never stalls the
// capture worker.
//
//	fwd := resultemitter.NewForwarder(inner, mqttPublisher, resultemitter.Config{CameraID: 0})
//	defer fwd.Close()
//	id, _, err := sess.ConfigurePipeline(0, fwd, streams)
package resultemitter

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	capturesession "github.com/e7canasta/orion-care-sensor/modules/capture-session"
)

const (
	DefaultTopicPrefix = "orion/capture"
	DefaultQueueSize   = 64
)

// Config configures a Forwarder.
type Config struct {
	CameraID    uint32
	TopicPrefix string // default "orion/capture"
	QoS         byte
	Encoding    Encoding // default json
	QueueSize   int      // default 64
}

// Topic returns the results topic for the camera.
func (c Config) Topic() string {
	return fmt.Sprintf("%s/%d/results", c.TopicPrefix, c.CameraID)
}

// Stats is a Forwarder counter snapshot.
type Stats struct {
	Forwarded     uint64
	Published     uint64
	Dropped       uint64
	EncodeErrors  uint64
	PublishErrors uint64
}

// Forwarder implements capturesession.Callback and capturesession.Notifier.
type Forwarder struct {
	inner capturesession.Callback
	pub   Publisher
	cfg   Config
	topic string

	queue chan Summary
	done  chan struct{}

	// mu guards closed and the send on queue against Close.
	mu     sync.RWMutex
	closed bool

	forwarded     atomic.Uint64
	published     atomic.Uint64
	dropped       atomic.Uint64
	encodeErrors  atomic.Uint64
	publishErrors atomic.Uint64
}

// NewForwarder starts the publish goroutine. inner may be nil when only
// publishing is wanted.
func NewForwarder(inner capturesession.Callback, pub Publisher, cfg Config) *Forwarder {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingJSON
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	f := &Forwarder{
		inner: inner,
		pub:   pub,
		cfg:   cfg,
		topic: cfg.Topic(),
		queue: make(chan Summary, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	go f.publishLoop()
	return f
}

// ProcessPipelineResult forwards the result, then queues its summary.
func (f *Forwarder) ProcessPipelineResult(r *capturesession.CaptureResult) {
	if f.inner != nil {
		f.inner.ProcessPipelineResult(r)
	}
	f.forwarded.Add(1)

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		f.dropped.Add(1)
		slog.Debug("result-emitter: forwarder closed, summary dropped", "frame_number", r.FrameNumber)
		return
	}

	select {
	case f.queue <- NewSummary(f.cfg.CameraID, r):
	default:
		f.dropped.Add(1)
		slog.Debug("result-emitter: queue full, summary dropped",
			"frame_number", r.FrameNumber,
			"pipeline_id", r.PipelineID,
		)
	}
}

// Notify passes notifications through when the inner callback wants them.
func (f *Forwarder) Notify(msg capturesession.NotifyMessage) {
	if n, ok := f.inner.(capturesession.Notifier); ok {
		n.Notify(msg)
	}
}

func (f *Forwarder) publishLoop() {
	defer close(f.done)

	for s := range f.queue {
		payload, err := f.cfg.Encoding.Encode(s)
		if err != nil {
			f.encodeErrors.Add(1)
			slog.Warn("result-emitter: encode failed", "frame_number", s.FrameNumber, "error", err)
			continue
		}
		if err := f.pub.Publish(f.topic, f.cfg.QoS, payload); err != nil {
			f.publishErrors.Add(1)
			slog.Debug("result-emitter: publish failed",
				"topic", f.topic,
				"frame_number", s.FrameNumber,
				"error", err,
			)
			continue
		}
		f.published.Add(1)
	}
}

// Close publishes what is queued and stops the publish goroutine. Results
// arriving after Close still reach the inner callback; their summaries are
// counted as dropped.
func (f *Forwarder) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()

	<-f.done
	slog.Info("result-emitter: forwarder closed",
		"published", f.published.Load(),
		"dropped", f.dropped.Load(),
		"publish_errors", f.publishErrors.Load(),
	)
}

// Stats returns a counter snapshot.
func (f *Forwarder) Stats() Stats {
	return Stats{
		Forwarded:     f.forwarded.Load(),
		Published:     f.published.Load(),
		Dropped:       f.dropped.Load(),
		EncodeErrors:  f.encodeErrors.Load(),
		PublishErrors: f.publishErrors.Load(),
	}
}

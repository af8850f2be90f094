package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/metadata"
)

var clientIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// Validate checks if the configuration is valid and fills defaults
func Validate(cfg *Config) error {
	// Source
	switch cfg.Source.Kind {
	case "":
		cfg.Source.Kind = "mock"
	case "mock", "v4l2":
	default:
		return fmt.Errorf("source.kind must be mock or v4l2, got %q", cfg.Source.Kind)
	}
	if cfg.Source.Mock.Latency < 0 {
		return fmt.Errorf("source.mock.latency must be >= 0")
	}
	if cfg.Source.Kind == "mock" && cfg.Source.Mock.Latency == 0 {
		cfg.Source.Mock.Latency = 33 * time.Millisecond
	}

	// Session limits; zero keeps the session defaults
	if cfg.Session.CaptureTimeout < 0 || cfg.Session.ScratchBudgetMB < 0 || cfg.Session.DeviceBufferCount < 0 {
		return fmt.Errorf("session limits must be >= 0")
	}

	// Pipeline
	if cfg.Pipeline.Preview.Width == 0 && cfg.Pipeline.Preview.Height == 0 {
		cfg.Pipeline.Preview.Width, cfg.Pipeline.Preview.Height = 640, 480
	}
	if cfg.Pipeline.Preview.Format == "" {
		cfg.Pipeline.Preview.Format = string(metadata.FormatNV12)
	}
	if err := validateStream("pipeline.preview", &cfg.Pipeline.Preview); err != nil {
		return err
	}
	if cfg.Pipeline.Still != nil {
		if cfg.Pipeline.Still.Format == "" {
			cfg.Pipeline.Still.Format = string(metadata.FormatJPEG)
		}
		if err := validateStream("pipeline.still", cfg.Pipeline.Still); err != nil {
			return err
		}
	}

	// Run loop
	if cfg.Run.Frames < 0 || cfg.Run.StillEvery < 0 || cfg.Run.MaxSaved < 0 || cfg.Run.InFlight < 0 {
		return fmt.Errorf("run counters must be >= 0")
	}
	if cfg.Run.StillEvery == 0 {
		cfg.Run.StillEvery = 30
	}
	if cfg.Run.InFlight == 0 {
		cfg.Run.InFlight = 4
	}
	if cfg.Run.MaxSaved == 0 {
		cfg.Run.MaxSaved = 100
	}

	// MQTT
	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = fmt.Sprintf("orion-capture-%d", cfg.CameraID)
		}
		if !clientIDPattern.MatchString(cfg.MQTT.ClientID) {
			return fmt.Errorf("mqtt.client_id must match pattern [A-Za-z0-9_-]+")
		}
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "orion/capture"
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
	}
	switch strings.ToLower(cfg.MQTT.Encoding) {
	case "":
		cfg.MQTT.Encoding = "json"
	case "json", "cbor", "msgpack":
		cfg.MQTT.Encoding = strings.ToLower(cfg.MQTT.Encoding)
	default:
		return fmt.Errorf("mqtt.encoding must be json, cbor or msgpack, got %q", cfg.MQTT.Encoding)
	}

	// Logging
	switch strings.ToLower(cfg.Logging.Level) {
	case "":
		cfg.Logging.Level = "info"
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "":
		cfg.Logging.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	return nil
}

func validateStream(name string, s *StreamConfig) error {
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("%s: width and height must be > 0, got %dx%d", name, s.Width, s.Height)
	}
	f, err := metadata.ParsePixelFormat(s.Format)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	s.Format = string(f)
	return nil
}

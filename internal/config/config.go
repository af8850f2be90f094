// Package config loads the orion-capture service configuration.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete orion-capture configuration
type Config struct {
	CameraID       uint32         `yaml:"camera_id"`
	PropertiesFile string         `yaml:"properties_file"` // optional; built-in OV5640 profile otherwise
	Source         SourceConfig   `yaml:"source"`
	Session        SessionConfig  `yaml:"session"`
	Pipeline       PipelineConfig `yaml:"pipeline"`
	Run            RunConfig      `yaml:"run"`
	MQTT           MQTTConfig     `yaml:"mqtt"`
	Logging        LoggingConfig  `yaml:"logging"`
}

// SourceConfig selects the capture source
type SourceConfig struct {
	Kind       string     `yaml:"kind"`        // mock, v4l2
	DevicePath string     `yaml:"device_path"` // v4l2 only; default from properties
	Mock       MockConfig `yaml:"mock"`
}

// MockConfig tunes the synthetic source
type MockConfig struct {
	Latency       time.Duration `yaml:"latency"`
	ConvergeAfter int           `yaml:"converge_after"`
}

// SessionConfig mirrors capturesession.Config limits
type SessionConfig struct {
	CaptureTimeout    time.Duration `yaml:"capture_timeout"`
	ScratchBudgetMB   int           `yaml:"scratch_budget_mb"`
	DeviceBufferCount int           `yaml:"device_buffer_count"`
}

// StreamConfig is one output stream
type StreamConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Format string `yaml:"format"`
}

// PipelineConfig is the preview+still pipeline driven by `run`
type PipelineConfig struct {
	Preview StreamConfig  `yaml:"preview"`
	Still   *StreamConfig `yaml:"still,omitempty"` // nil disables stills
}

// RunConfig drives the request loop
type RunConfig struct {
	Frames     int           `yaml:"frames"`      // 0 = until interrupted
	Interval   time.Duration `yaml:"interval"`    // delay between submissions
	StillEvery int           `yaml:"still_every"` // add a still buffer every N frames
	OutputDir  string        `yaml:"output_dir"`  // empty disables saving
	MaxSaved   int           `yaml:"max_saved"`
	InFlight   int           `yaml:"in_flight"` // max frames submitted but not answered
}

// MQTTConfig contains MQTT broker settings
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Encoding    string `yaml:"encoding"` // json, cbor, msgpack
}

// LoggingConfig configures slog output
type LoggingConfig struct {
	Level    string         `yaml:"level"`  // debug, info, warn, error
	Format   string         `yaml:"format"` // text, json
	Output   string         `yaml:"output"` // stdout, stderr or a file path
	Rotation RotationConfig `yaml:"rotation"`
}

// RotationConfig enables lumberjack rotation for file outputs
type RotationConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// Default returns a validated configuration for the mock source.
func Default() *Config {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		panic(fmt.Sprintf("config: default configuration invalid: %v", err))
	}
	return cfg
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse expands environment references in data, decodes it and validates
// the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default}. An unset VAR without a
// default expands to the empty string.
func ExpandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := envPattern.FindStringSubmatch(m)
		if v, ok := os.LookupEnv(parts[1]); ok && v != "" {
			return v
		}
		return parts[3]
	})
}

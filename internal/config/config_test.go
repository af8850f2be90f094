package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "mock", cfg.Source.Kind)
	assert.Equal(t, 33*time.Millisecond, cfg.Source.Mock.Latency)
	assert.Equal(t, 640, cfg.Pipeline.Preview.Width)
	assert.Equal(t, "nv12", cfg.Pipeline.Preview.Format)
	assert.Nil(t, cfg.Pipeline.Still)
	assert.Equal(t, "orion/capture", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "json", cfg.MQTT.Encoding)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("ORION_TEST_BROKER", "broker.local:1883")

	path := filepath.Join(t.TempDir(), "orion.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
camera_id: 0
source:
  kind: v4l2
  device_path: ${ORION_TEST_DEVICE:-/dev/video2}
session:
  capture_timeout: 500ms
  scratch_budget_mb: 32
pipeline:
  preview: {width: 1280, height: 720, format: NV21}
  still: {width: 2592, height: 1944}
run:
  frames: 10
  still_every: 5
  output_dir: /tmp/stills
mqtt:
  enabled: true
  broker: ${ORION_TEST_BROKER}
  encoding: CBOR
  qos: 1
logging:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "v4l2", cfg.Source.Kind)
	assert.Equal(t, "/dev/video2", cfg.Source.DevicePath)
	assert.Equal(t, 500*time.Millisecond, cfg.Session.CaptureTimeout)
	assert.Equal(t, 32, cfg.Session.ScratchBudgetMB)
	assert.Equal(t, "nv21", cfg.Pipeline.Preview.Format)
	require.NotNil(t, cfg.Pipeline.Still)
	assert.Equal(t, "jpeg", cfg.Pipeline.Still.Format)
	assert.Equal(t, 5, cfg.Run.StillEvery)
	assert.Equal(t, 4, cfg.Run.InFlight)
	assert.Equal(t, "broker.local:1883", cfg.MQTT.Broker)
	assert.Equal(t, "orion-capture-0", cfg.MQTT.ClientID)
	assert.Equal(t, "cbor", cfg.MQTT.Encoding)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown source", "source: {kind: rtsp}"},
		{"bad preview format", "pipeline: {preview: {width: 640, height: 480, format: bayer}}"},
		{"zero still size", "pipeline: {still: {width: 0, height: 0}}"},
		{"mqtt without broker", "mqtt: {enabled: true}"},
		{"bad client id", "mqtt: {enabled: true, broker: b:1883, client_id: 'a b'}"},
		{"bad qos", "mqtt: {qos: 3}"},
		{"bad encoding", "mqtt: {encoding: protobuf}"},
		{"bad level", "logging: {level: trace}"},
		{"bad format", "logging: {format: xml}"},
		{"negative frames", "run: {frames: -1}"},
		{"negative timeout", "session: {capture_timeout: -1s}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("ORION_SET", "value")
	t.Setenv("ORION_EMPTY", "")

	assert.Equal(t, "value", ExpandEnv("${ORION_SET}"))
	assert.Equal(t, "value", ExpandEnv("${ORION_SET:-other}"))
	assert.Equal(t, "fallback", ExpandEnv("${ORION_EMPTY:-fallback}"))
	assert.Equal(t, "fallback", ExpandEnv("${ORION_UNSET_VAR:-fallback}"))
	assert.Equal(t, "", ExpandEnv("${ORION_UNSET_VAR}"))
	assert.Equal(t, "a-value-b", ExpandEnv("a-${ORION_SET}-b"))
	assert.Equal(t, "$PLAIN", ExpandEnv("$PLAIN"))
}

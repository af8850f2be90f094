package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "orion-capture "+version)
}

func TestCharacteristicsCommand(t *testing.T) {
	out, err := execute(t, "characteristics")
	require.NoError(t, err)
	assert.Contains(t, out, "name: ov5640")
	assert.Contains(t, out, "device_path: /dev/video0")
}

func TestRunWithStills(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "orion.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
source:
  kind: mock
  mock: {latency: 1ms}
pipeline:
  preview: {width: 640, height: 480, format: nv12}
  still: {width: 1280, height: 720, format: jpeg}
run:
  frames: 6
  still_every: 3
  in_flight: 2
  output_dir: `+filepath.Join(dir, "captures")+`
logging:
  level: error
  output: stderr
`), 0o644))

	_, err := execute(t, "run", "--config", cfgPath)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "captures"))
	require.NoError(t, err)

	stills := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "still_") {
			stills++
		}
	}
	assert.Equal(t, 2, stills, "frames 3 and 6 carry a still buffer")
}

func TestRunSavesEveryPreview(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "orion.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
source:
  kind: mock
  mock: {latency: 1ms}
pipeline:
  preview: {width: 640, height: 480, format: nv12}
run:
  frames: 3
  still_every: 1
  in_flight: 1
  output_dir: `+filepath.Join(dir, "captures")+`
logging:
  level: error
  output: stderr
`), 0o644))

	_, err := execute(t, "run", "--config", cfgPath)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "captures"))
	require.NoError(t, err)

	previews := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "preview_") {
			previews++
		}
	}
	assert.Equal(t, 3, previews, "still_every 1 saves a preview for every frame")
}

func TestRunRejectsBadConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("source: {kind: rtsp}\n"), 0o644))

	_, err := execute(t, "run", "--config", cfgPath)
	assert.Error(t, err)
}

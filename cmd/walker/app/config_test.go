package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roman-kulish/wifi-heatmap/internal/render"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
recording:
  target: "AA:BB:CC:DD:EE:FF"
  stepSize: 40
  sampleInterval: 1500ms
detector:
  minInterval: 250ms
scanner:
  type: sim
  seed: 7
  accessPoints:
    - ssid: home
      bssid: "aa:bb:cc:dd:ee:ff"
      frequency: 5180
      x: 600
      y: 800
motion:
  type: sim
  sim:
    stepPeriod: 500ms
    route:
      - heading: 0
        steps: 10
      - heading: 90
        steps: 4
render:
  theme: thermal
server:
  listen: "127.0.0.1:9000"
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, config.Settings.LogLevel)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", config.Recording.Target)
	assert.Equal(t, 40.0, config.Recording.StepSize)
	assert.Equal(t, 1500*time.Millisecond, config.Recording.SampleInterval.Duration())
	assert.Equal(t, PointConfig{X: 500, Y: 1000}, config.Recording.Anchor, "default kept")
	assert.Equal(t, 12.0, config.Detector.Threshold, "default kept")
	assert.Equal(t, 250*time.Millisecond, config.Detector.MinInterval.Duration())
	assert.Equal(t, ScannerSim, config.Scanner.Type)
	require.Len(t, config.Scanner.AccessPoints, 1)
	assert.Equal(t, 600.0, config.Scanner.AccessPoints[0].X)
	assert.Equal(t, []LegConfig{{Heading: 0, Steps: 10}, {Heading: 90, Steps: 4}}, config.Motion.Sim.Route)
	assert.Equal(t, render.ThermalTheme, config.Render.Theme)
	assert.Equal(t, "127.0.0.1:9000", config.Server.Listen)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown field",
			content: "settings:\n  verbose: true\n",
			wantErr: "field verbose not found",
		},
		{
			name:    "bad duration",
			content: "recording:\n  sampleInterval: soon\n",
			wantErr: "failed to parse",
		},
		{
			name:    "iw without interface",
			content: "scanner:\n  type: iw\n",
			wantErr: "scanner.interface is required",
		},
		{
			name:    "sim scanner without access points",
			content: "scanner:\n  type: sim\n",
			wantErr: "scanner.accessPoints is required",
		},
		{
			name:    "unknown motion type",
			content: "scanner:\n  type: iw\n  interface: wlan0\nmotion:\n  type: gps\n",
			wantErr: "unknown type 'gps'",
		},
		{
			name:    "mqtt without broker",
			content: "scanner:\n  type: iw\n  interface: wlan0\nmotion:\n  type: mqtt\n",
			wantErr: "motion.mqtt.broker is required",
		},
		{
			name:    "negative step size",
			content: "recording:\n  stepSize: -1\nscanner:\n  type: iw\n  interface: wlan0\n",
			wantErr: "recording.stepSize must be positive",
		},
		{
			name:    "inverted strength range",
			content: "scanner:\n  type: iw\n  interface: wlan0\nrender:\n  minStrength: -30\n  maxStrength: -90\n",
			wantErr: "maxStrength must be greater",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaultsOnlyNeedInterface(t *testing.T) {
	config := NewConfig()
	config.Scanner.Interface = "wlan0"

	assert.NoError(t, config.Validate())
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
ingestor:
  ip: 127.0.0.1
  gateway_port: 8888
  data_port_range_start: 42000
  data_port_range_end: 43000
jetson:
  ip: 127.0.0.1
  ingest_comm_port: 9000
  bmi_comm_port: 9001
bmi:
  ip: 127.0.0.1
  listen_port: 9100
  comm_port: 9101
buffer:
  buffer_length: 30
  framerate: 30
audio:
  channels: 1
  format: S16_LE
  rate: 48000
speaker:
  block_size: 256
  amplitude: 0.5
  channels: 1
sensor:
  i2c_addr: [64, 65]
camera:
  ident: [0, 1]
data_paths:
  sensor: /tmp/sensor
  camera: /tmp/camera
  audio: /tmp/audio
  logs: /tmp/logs
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeTemp(t, sampleYAML)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Ingestor.IP)
	assert.Equal(t, uint16(8888), cfg.Ingestor.GatewayPort)
	assert.Equal(t, 900, cfg.Buffer.Capacity())
}

func TestLoad_MissingSection(t *testing.T) {
	path := writeTemp(t, "buffer:\n  buffer_length: 1\n  framerate: 1\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidPortRange(t *testing.T) {
	bad := strings.Replace(sampleYAML, "data_port_range_end: 43000", "data_port_range_end: 41000", 1)
	path := writeTemp(t, bad)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/settings.yaml")
	assert.Error(t, err)
}

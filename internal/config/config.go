// Package config loads the YAML settings document described in
// spec.md §6, grounded on gopkg.in/yaml.v3 usage in the retrieval pack
// (doismellburning-samoyed, nishisan-dev-n-backup) and on the section
// layout of original_source/src/config.py's RatballConfig.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level settings document (spec.md §6).
type Config struct {
	Ingestor  IngestorConfig  `yaml:"ingestor"`
	Jetson    JetsonConfig    `yaml:"jetson"`
	BMI       BMIConfig       `yaml:"bmi"`
	Buffer    BufferConfig    `yaml:"buffer"`
	Audio     AudioConfig     `yaml:"audio"`
	Speaker   SpeakerConfig   `yaml:"speaker"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Camera    CameraConfig    `yaml:"camera"`
	Aux       AuxConfig       `yaml:"aux"`
	DataPaths DataPathsConfig `yaml:"data_paths"`
	Logging   LoggingConfig   `yaml:"logging"`
	Client    ClientConfig    `yaml:"client"`
}

// IngestorConfig configures the receiver node.
type IngestorConfig struct {
	IP                  string `yaml:"ip"`
	GatewayPort         uint16 `yaml:"gateway_port"`
	DataPortRangeStart  uint16 `yaml:"data_port_range_start"`
	DataPortRangeEnd    uint16 `yaml:"data_port_range_end"`
	MDNSName            string `yaml:"mdns_name"`
	ManifestDB          string `yaml:"manifest_db"`
	Archive             ArchiveConfig `yaml:"archive"`
	HTTPAddr            string `yaml:"http_addr"`
	DashboardAddr       string `yaml:"dashboard_addr"`
}

// ArchiveConfig controls optional post-session S3 archival
// (SPEC_FULL.md Supplemented Features).
type ArchiveConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// JetsonConfig configures the client (acquisition) node.
type JetsonConfig struct {
	IP              string `yaml:"ip"`
	IngestCommPort  uint16 `yaml:"ingest_comm_port"`
	BMICommPort     uint16 `yaml:"bmi_comm_port"`
}

// BMIConfig configures the controller (lifecycle driver) node.
type BMIConfig struct {
	IP         string `yaml:"ip"`
	ListenPort uint16 `yaml:"listen_port"`
	CommPort   uint16 `yaml:"comm_port"`
}

// BufferConfig sizes every governor's rings (spec.md §6: ring capacity =
// buffer_length_seconds * framerate).
type BufferConfig struct {
	BufferLength float64 `yaml:"buffer_length"`
	Framerate    float64 `yaml:"framerate"`

	// DropIfFull selects the DoubleBuffer.Put policy every governor's
	// producer uses (spec.md §4.2's put(item, drop_if_full=false)
	// default). false is the spec default: a full front ring swaps and
	// retries once, signaling buffer-full only if that also fails
	// (spec.md §7 Overload). true silently discards on a full front
	// ring instead, the policy spec.md §6 scenario 6 measures against.
	DropIfFull bool `yaml:"drop_if_full"`
}

// Capacity returns the ring capacity per the spec.md §6 formula.
func (b BufferConfig) Capacity() int {
	c := int(b.BufferLength * b.Framerate)
	if c <= 0 {
		c = 1
	}
	return c
}

// AudioConfig configures the microphone device.
type AudioConfig struct {
	Channels int    `yaml:"channels"`
	Format   string `yaml:"format"` // "S16_LE", "U8", "S32_LE"
	Rate     int    `yaml:"rate"`
}

// SpeakerConfig configures the speaker output device.
type SpeakerConfig struct {
	BlockSize int     `yaml:"block_size"`
	Amplitude float64 `yaml:"amplitude"`
	Channels  int     `yaml:"channels"`
}

// SensorConfig configures the two optical-odometry sensors.
type SensorConfig struct {
	I2CAddr [2]uint8 `yaml:"i2c_addr"`
}

// CameraConfig configures the camera devices. Width/Height/Channels fix
// the per-frame payload size (spec.md §3 invariant: len(payload) ==
// expected_size).
type CameraConfig struct {
	Ident    [2]uint8 `yaml:"ident"`
	Width    int      `yaml:"width"`
	Height   int      `yaml:"height"`
	Channels int      `yaml:"channels"`
	Overlay  bool     `yaml:"overlay"`
}

// AuxConfig configures the auxiliary scalar channels (spec.md §6's
// `aux1`..`aux4`). PSUAddrs is optional per channel: empty uses the
// simulated devices.AuxChannel, set uses devices.PSUAuxChannel against
// a real Keysight E3631A SCPI socket at that host:port.
type AuxConfig struct {
	Names    []string `yaml:"names"`
	PSUAddrs []string `yaml:"psu_addrs"`
}

// DataPathsConfig names the output file locations (spec.md §6).
type DataPathsConfig struct {
	Sensor string `yaml:"sensor"`
	Camera string `yaml:"camera"`
	Audio  string `yaml:"audio"`
	Logs   string `yaml:"logs"`
}

// LoggingConfig configures the ambient structured logger (SPEC_FULL.md
// AMBIENT STACK).
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
}

// ClientConfig configures client-only supplemented behavior
// (SPEC_FULL.md).
type ClientConfig struct {
	WaitForBeginExperiment bool   `yaml:"wait_for_begin"`
	GPIOStatusLine         string `yaml:"gpio_status_line"`
	CameraSHMTee           string `yaml:"camera_shm_tee"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// validate checks the invariants spec.md §7 classifies as Init errors:
// missing top-level sections or malformed values.
func (c *Config) validate() error {
	if c.Ingestor.IP == "" {
		return fmt.Errorf("missing required section: ingestor.ip")
	}
	if c.Ingestor.GatewayPort == 0 {
		return fmt.Errorf("missing required section: ingestor.gateway_port")
	}
	if c.Ingestor.DataPortRangeEnd <= c.Ingestor.DataPortRangeStart {
		return fmt.Errorf("invalid data port range [%d, %d)", c.Ingestor.DataPortRangeStart, c.Ingestor.DataPortRangeEnd)
	}
	if c.Buffer.Framerate <= 0 {
		return fmt.Errorf("buffer.framerate must be positive")
	}
	if c.Buffer.BufferLength <= 0 {
		return fmt.Errorf("buffer.buffer_length must be positive")
	}
	switch c.Audio.Format {
	case "S16_LE", "U8", "S32_LE", "":
	default:
		return fmt.Errorf("unrecognized audio.format: %s", c.Audio.Format)
	}
	return nil
}

package config

import (
	"strconv"
	"time"

	"github.com/muurk/farmlink/internal/feed"
	"github.com/muurk/farmlink/internal/serial"
	"github.com/muurk/farmlink/internal/stream"
)

// CurrentVersion is the config file format version
const CurrentVersion = 1

// Config represents the entire configuration file
type Config struct {
	Version   int             `yaml:"version"`
	LogLevel  string          `yaml:"log_level,omitempty"` // debug, info, warn, error; empty is silent
	Serial    SerialConfig    `yaml:"serial"`
	Stream    StreamConfig    `yaml:"stream"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
	Output    OutputConfig    `yaml:"output"`
	Journal   JournalConfig   `yaml:"journal"`
	Feed      FeedConfig      `yaml:"feed"`
	Capture   CaptureConfig   `yaml:"capture"`
}

// SerialConfig selects and opens the robot's serial port
type SerialConfig struct {
	Port        string             `yaml:"port,omitempty"` // Empty auto-detects via USBFilters
	Baud        int                `yaml:"baud"`
	ReadTimeout time.Duration      `yaml:"read_timeout"`
	USBFilters  []serial.USBFilter `yaml:"usb_filters"`
}

// StreamConfig tunes the stream dispatcher
type StreamConfig struct {
	TelemetryWindow int  `yaml:"telemetry_window"` // Characters kept between position scans
	MaxFrameBuffer  int  `yaml:"max_frame_buffer"` // Bytes an unterminated frame may hold
	StrictHex       bool `yaml:"strict_hex"`       // Reject malformed hex instead of decoding leniently
}

// HeartbeatConfig controls the ping the robot expects from its host
type HeartbeatConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// OutputConfig is where completed transfers are written
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// JournalConfig controls the SQLite transfer/position history
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"` // Empty uses journal.db in the config directory
}

// FeedConfig controls the WebSocket event feed
type FeedConfig struct {
	Addr      string `yaml:"addr"`      // host:port to listen on
	Advertise bool   `yaml:"advertise"` // Register the feed over mDNS
	Instance  string `yaml:"instance,omitempty"`
}

// CaptureConfig is where raw session captures go
type CaptureConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns a configuration with every field at its default
func Default() *Config {
	opts := stream.DefaultOptions()
	filters := make([]serial.USBFilter, len(serial.DefaultFilters))
	copy(filters, serial.DefaultFilters)

	return &Config{
		Version: CurrentVersion,
		Serial: SerialConfig{
			Baud:        serial.DefaultBaudRate,
			ReadTimeout: serial.DefaultReadTimeout,
			USBFilters:  filters,
		},
		Stream: StreamConfig{
			TelemetryWindow: opts.TelemetryWindow,
			MaxFrameBuffer:  opts.MaxFrameBuffer,
			StrictHex:       opts.StrictHex,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:  true,
			Interval: serial.DefaultHeartbeatInterval,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Journal: JournalConfig{
			Enabled: true,
		},
		Feed: FeedConfig{
			Addr:      feedAddr(),
			Advertise: true,
		},
		Capture: CaptureConfig{
			Dir: ".",
		},
	}
}

func feedAddr() string {
	return ":" + strconv.Itoa(feed.DefaultPort)
}

// StreamOptions converts the stream section for the dispatcher
func (c *Config) StreamOptions() stream.Options {
	return stream.Options{
		TelemetryWindow: c.Stream.TelemetryWindow,
		MaxFrameBuffer:  c.Stream.MaxFrameBuffer,
		StrictHex:       c.Stream.StrictHex,
	}
}

// SerialOptions converts the serial section for serial.Open
func (c *Config) SerialOptions() serial.Options {
	return serial.Options{
		BaudRate:    c.Serial.Baud,
		ReadTimeout: c.Serial.ReadTimeout,
	}
}

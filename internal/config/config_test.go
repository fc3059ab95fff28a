package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/farmlink/internal/serial"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "farmlink") {
		t.Errorf("GetConfigDir() = %v, should contain 'farmlink'", configDir)
	}

	switch runtime.GOOS {
	case "darwin", "linux":
		if os.Getenv("XDG_CONFIG_HOME") == "" && !strings.Contains(configDir, ".config") {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if want := filepath.Join(dir, "farmlink"); got != want {
		t.Errorf("GetConfigDir() = %v, want %v", got, want)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Version != 1 {
		t.Errorf("Version = %v, want 1", cfg.Version)
	}
	if cfg.Serial.Baud != 115200 {
		t.Errorf("Serial.Baud = %v, want 115200", cfg.Serial.Baud)
	}
	if cfg.Serial.ReadTimeout != 500*time.Millisecond {
		t.Errorf("Serial.ReadTimeout = %v, want 500ms", cfg.Serial.ReadTimeout)
	}
	if len(cfg.Serial.USBFilters) != 2 {
		t.Errorf("Serial.USBFilters = %v, want 2 filters", cfg.Serial.USBFilters)
	}
	if cfg.Stream.TelemetryWindow != 200 {
		t.Errorf("Stream.TelemetryWindow = %v, want 200", cfg.Stream.TelemetryWindow)
	}
	if cfg.Stream.MaxFrameBuffer != 65536 {
		t.Errorf("Stream.MaxFrameBuffer = %v, want 65536", cfg.Stream.MaxFrameBuffer)
	}
	if !cfg.Heartbeat.Enabled || cfg.Heartbeat.Interval != 5*time.Second {
		t.Errorf("Heartbeat = %+v, want enabled every 5s", cfg.Heartbeat)
	}
	if cfg.Feed.Addr != ":8765" {
		t.Errorf("Feed.Addr = %v, want :8765", cfg.Feed.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	// Filters must be a copy
	cfg.Serial.USBFilters[0].VID = 1
	if serial.DefaultFilters[0].VID == 1 {
		t.Error("Default() shares USBFilters with serial.DefaultFilters")
	}
}

func TestLoad_Missing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Serial.Baud != 115200 {
		t.Errorf("Serial.Baud = %v, want default", cfg.Serial.Baud)
	}
}

func TestLoad_Partial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `version: 1
log_level: debug
serial:
  port: /dev/ttyACM0
  usb_filters:
    - vid: 0x1234
      pid: 0xABCD
stream:
  strict_hex: true
heartbeat:
  interval: 2s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.Serial.Port != "/dev/ttyACM0" {
		t.Errorf("Serial.Port = %v, want /dev/ttyACM0", cfg.Serial.Port)
	}
	if cfg.Serial.Baud != 115200 {
		t.Errorf("Serial.Baud = %v, want default 115200", cfg.Serial.Baud)
	}
	want := serial.USBFilter{VID: 0x1234, PID: 0xABCD}
	if len(cfg.Serial.USBFilters) != 1 || cfg.Serial.USBFilters[0] != want {
		t.Errorf("Serial.USBFilters = %v, want [%v]", cfg.Serial.USBFilters, want)
	}
	if !cfg.Stream.StrictHex {
		t.Error("Stream.StrictHex = false, want true")
	}
	if cfg.Stream.TelemetryWindow != 200 {
		t.Errorf("Stream.TelemetryWindow = %v, want default 200", cfg.Stream.TelemetryWindow)
	}
	if cfg.Heartbeat.Interval != 2*time.Second {
		t.Errorf("Heartbeat.Interval = %v, want 2s", cfg.Heartbeat.Interval)
	}
	if !cfg.Heartbeat.Enabled {
		t.Error("Heartbeat.Enabled = false, want default true")
	}

	opts := cfg.StreamOptions()
	if !opts.StrictHex || opts.TelemetryWindow != 200 {
		t.Errorf("StreamOptions() = %+v", opts)
	}
	if so := cfg.SerialOptions(); so.BaudRate != 115200 || so.ReadTimeout != 500*time.Millisecond {
		t.Errorf("SerialOptions() = %+v", so)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "version: [", "failed to parse"},
		{"wrong version", "version: 2\n", "unsupported config version"},
		{"zero baud", "version: 1\nserial:\n  baud: 0\n", "serial.baud"},
		{"bad window", "version: 1\nstream:\n  telemetry_window: -1\n", "telemetry_window"},
		{"short heartbeat", "version: 1\nheartbeat:\n  interval: 1ms\n", "heartbeat.interval"},
		{"bad feed addr", "version: 1\nfeed:\n  addr: localhost\n", "feed.addr"},
		{"bad log level", "version: 1\nlog_level: loud\n", "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := Default()
	cfg.Serial.Port = "COM3"
	cfg.Feed.Advertise = false
	cfg.Journal.Path = "/var/lib/farmlink/journal.db"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind after Save()")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# farmlink configuration") {
		t.Errorf("saved file is missing its header comment")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Serial.Port != "COM3" {
		t.Errorf("Serial.Port = %v, want COM3", loaded.Serial.Port)
	}
	if loaded.Feed.Advertise {
		t.Error("Feed.Advertise = true, want false")
	}
	if loaded.Serial.ReadTimeout != cfg.Serial.ReadTimeout {
		t.Errorf("Serial.ReadTimeout = %v, want %v", loaded.Serial.ReadTimeout, cfg.Serial.ReadTimeout)
	}
	if len(loaded.Serial.USBFilters) != len(cfg.Serial.USBFilters) {
		t.Errorf("Serial.USBFilters = %v, want %v", loaded.Serial.USBFilters, cfg.Serial.USBFilters)
	}
	if got, _ := loaded.JournalPath(); got != "/var/lib/farmlink/journal.db" {
		t.Errorf("JournalPath() = %v", got)
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	got, err := Init(path, false)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if got != path {
		t.Errorf("Init() = %v, want %v", got, path)
	}

	if _, err := Init(path, false); err == nil {
		t.Error("Init() over an existing file error = nil, want error")
	}
	if _, err := Init(path, true); err != nil {
		t.Errorf("Init(force) error = %v", err)
	}
}

func TestJournalPath_Default(t *testing.T) {
	got, err := Default().JournalPath()
	if err != nil {
		t.Fatalf("JournalPath() error = %v", err)
	}
	if filepath.Base(got) != "journal.db" {
		t.Errorf("JournalPath() = %v, want .../journal.db", got)
	}
}

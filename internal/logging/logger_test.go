package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	prev := GetLogger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })
	return logs
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"loud", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitialize_Silent(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	prev := GetLogger()
	t.Cleanup(func() { SetLogger(prev) })

	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("logger enabled without a level, want nop")
	}
}

func TestInitializeToFile(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() { SetLogger(prev) })

	path := t.TempDir() + "/farmlink.log"
	if err := InitializeToFile("warn", path); err != nil {
		t.Fatalf("InitializeToFile() error = %v", err)
	}
	core := GetLogger().Core()
	if core.Enabled(zapcore.InfoLevel) || !core.Enabled(zapcore.WarnLevel) {
		t.Error("file logger level is not warn")
	}
}

func TestLogFrame(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	LogFrame("Payload", 3, "FT,P,0,1,"+strings.Repeat("AB", 60))

	entries := logs.FilterMessage("Frame received").All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["type"] != "Payload" {
		t.Errorf("type = %v, want Payload", fields["type"])
	}
	raw, _ := fields["raw"].(string)
	if len(raw) != 83 || !strings.HasSuffix(raw, "...") {
		t.Errorf("raw = %q, want truncated to 80 bytes plus ellipsis", raw)
	}
}

func TestLogFragment_DebugOnly(t *testing.T) {
	logs := observe(t, zapcore.InfoLevel)
	LogFragment("rx", "hello")
	if logs.Len() != 0 {
		t.Errorf("logged %d entries at info level, want 0", logs.Len())
	}

	logs = observe(t, zapcore.DebugLevel)
	LogFragment("rx", "hi")
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["length"]; got != int64(2) {
		t.Errorf("length = %v (%T), want 2", got, got)
	}
}

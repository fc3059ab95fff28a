package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/muurk/farmlink/internal/protocol"
	"github.com/muurk/farmlink/internal/stream"
	"github.com/muurk/farmlink/internal/telemetry"
)

func TestFileTypeFor(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		explicit string
		want     protocol.FileType
		wantErr  bool
	}{
		{"json extension", "farm.json", "", protocol.FileTypeJSON, false},
		{"csv extension upper", "MOISTURE.CSV", "", protocol.FileTypeCSV, false},
		{"unknown extension", "image.png", "", protocol.FileTypeBinary, false},
		{"no extension", "blob", "", protocol.FileTypeBinary, false},
		{"explicit wins", "farm.json", "csv", protocol.FileTypeCSV, false},
		{"explicit bin", "farm.json", "bin", protocol.FileTypeBinary, false},
		{"explicit unknown", "farm.json", "xml", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fileTypeFor(tt.path, tt.explicit)
			if (err != nil) != tt.wantErr {
				t.Fatalf("fileTypeFor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("fileTypeFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSendCommandFor(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		pump    int
		mission int
		want    string
		wantErr bool
	}{
		{"preset", []string{"calibrate"}, 0, 0, "6", false},
		{"preset case", []string{"STOP"}, 0, 0, "STAP", false},
		{"literal", []string{" 20,1 "}, 0, 0, "20,1", false},
		{"pump", nil, 250, 0, "12,250", false},
		{"mission", nil, 0, 3, "5,3,0,0,0", false},
		{"nothing", nil, 0, 0, "", true},
		{"two sources", []string{"6"}, 100, 0, "", true},
		{"blank", []string{"   "}, 0, 0, "", true},
		{"negative pump", nil, -5, 0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sendPump, sendMission = tt.pump, tt.mission
			defer func() { sendPump, sendMission = 0, 0 }()

			got, err := sendCommandFor(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("sendCommandFor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("sendCommandFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConsoleHandler(t *testing.T) {
	var out bytes.Buffer
	var h stream.Handler = consoleHandler(&out, false)

	h.LogLine(stream.Line{Text: "Robot ready"})
	h.LogLine(stream.Line{Text: "Moisture reading: 41", Alert: true})
	h.PositionUpdate(telemetry.Event{X: 1, Y: 2})
	h.TransferComplete(&protocol.CompletedTransfer{
		Raw:        []byte("hello"),
		FileName:   "farm.json",
		FileType:   protocol.FileTypeJSON,
		Chunks:     1,
		ChecksumOK: false,
	})
	h.TransferFailed(errors.New("boom"))

	got := out.String()
	for _, want := range []string{
		"Robot ready\n",
		"! Moisture reading: 41\n",
		"-- received farm.json (JSON, 5 B, 1 chunks) [checksum mismatch]\n",
		"-- transfer failed: boom\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "position") {
		t.Errorf("positions printed while disabled:\n%s", got)
	}

	out.Reset()
	consoleHandler(&out, true).PositionUpdate(telemetry.Event{X: 10.5, Y: -3})
	if got, want := out.String(), "-- position (10.5, -3)\n"; got != want {
		t.Errorf("position output = %q, want %q", got, want)
	}
}

func TestDescribeTransfer_Unnamed(t *testing.T) {
	got := describeTransfer(&protocol.CompletedTransfer{
		Raw:        make([]byte, 2048),
		FileType:   protocol.FileTypeCSV,
		Chunks:     32,
		ChecksumOK: true,
	})
	if want := "unnamed file (CSV, 2.0 kB, 32 chunks)"; got != want {
		t.Errorf("describeTransfer() = %q, want %q", got, want)
	}
}

func TestIsConfigInit(t *testing.T) {
	if !isConfigInit(configInitCmd) {
		t.Error("isConfigInit(config init) = false, want true")
	}
	if isConfigInit(configShowCmd) {
		t.Error("isConfigInit(config show) = true, want false")
	}
	if isConfigInit(&cobra.Command{Use: "init"}) {
		t.Error("isConfigInit(orphan init) = true, want false")
	}
}

func TestRootCommands(t *testing.T) {
	want := []string{"config", "control", "decode", "encode", "feeds", "history", "listen", "ports", "send", "version"}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("root command %q not registered", name)
		}
	}
}

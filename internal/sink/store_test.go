package sink

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/muurk/farmlink/internal/protocol"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		name string
		in   protocol.CompletedTransfer
		want string
	}{
		{name: "json without extension", in: protocol.CompletedTransfer{FileName: "farm", FileType: protocol.FileTypeJSON}, want: "farm.json"},
		{name: "json with extension", in: protocol.CompletedTransfer{FileName: "farm.json", FileType: protocol.FileTypeJSON}, want: "farm.json"},
		{name: "csv default name", in: protocol.CompletedTransfer{FileType: protocol.FileTypeCSV}, want: "downloaded_file.csv"},
		{name: "binary keeps name", in: protocol.CompletedTransfer{FileName: "img.bin", FileType: protocol.FileTypeBinary}, want: "img.bin"},
		{name: "binary default name", in: protocol.CompletedTransfer{}, want: "downloaded_file"},
		{name: "path reduced to base", in: protocol.CompletedTransfer{FileName: "/sd/logs/../moisture.csv", FileType: protocol.FileTypeCSV}, want: "moisture.csv"},
		{name: "windows separators", in: protocol.CompletedTransfer{FileName: `data\water.csv`, FileType: protocol.FileTypeCSV}, want: "water.csv"},
		{name: "dot dot only", in: protocol.CompletedTransfer{FileName: "..", FileType: protocol.FileTypeCSV}, want: "downloaded_file.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileName(&tt.in); got != tt.want {
				t.Errorf("FileName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		in   protocol.CompletedTransfer
		want string
	}{
		{
			name: "json pretty printed",
			in: protocol.CompletedTransfer{
				FileType: protocol.FileTypeJSON,
				Data:     map[string]interface{}{"id": 1.0},
				Parsed:   true,
			},
			want: "{\n  \"id\": 1\n}\n",
		},
		{
			name: "json string value stays quoted",
			in:   protocol.CompletedTransfer{FileType: protocol.FileTypeJSON, Data: "hello", Parsed: true, Raw: []byte(`"hello"`)},
			want: "\"hello\"\n",
		},
		{
			name: "unparsed json without text falls back to raw",
			in:   protocol.CompletedTransfer{FileType: protocol.FileTypeJSON, Raw: []byte(`{"id":`)},
			want: `{"id":`,
		},
		{
			name: "unparsed json text kept",
			in:   protocol.CompletedTransfer{FileType: protocol.FileTypeJSON, Data: `{"id":`},
			want: `{"id":`,
		},
		{
			name: "csv verbatim",
			in:   protocol.CompletedTransfer{FileType: protocol.FileTypeCSV, Data: "a,b\n"},
			want: "a,b\n",
		},
		{
			name: "binary raw",
			in:   protocol.CompletedTransfer{FileType: protocol.FileTypeBinary, Raw: []byte{0x00, 0x01}},
			want: "\x00\x01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(&tt.in)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStore_SaveNeverOverwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := NewStore(dir)

	var saved []string
	s.OnSaved = func(path string) { saved = append(saved, path) }

	tr := &protocol.CompletedTransfer{FileName: "water.csv", FileType: protocol.FileTypeCSV, Data: "1,2\n"}
	s.TransferComplete(tr)
	s.TransferComplete(tr)
	s.TransferComplete(tr)

	want := []string{
		filepath.Join(dir, "water.csv"),
		filepath.Join(dir, "water-1.csv"),
		filepath.Join(dir, "water-2.csv"),
	}
	if len(saved) != len(want) {
		t.Fatalf("saved = %v, want %v", saved, want)
	}
	for i := range want {
		if saved[i] != want[i] {
			t.Errorf("saved[%d] = %q, want %q", i, saved[i], want[i])
		}
		data, err := os.ReadFile(want[i])
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if string(data) != "1,2\n" {
			t.Errorf("content = %q", data)
		}
	}
}

func TestStore_SaveUnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(filepath.Join(file, "sub"))
	if _, err := s.Save(&protocol.CompletedTransfer{}); err == nil {
		t.Error("Save() into a path below a file should fail")
	}
}

// shortWriter writes part of the data to f, then fails
type shortWriter struct{ f *os.File }

func (w shortWriter) Write(p []byte) (int, error) {
	n, _ := w.f.Write(p[:len(p)/2])
	return n, errors.New("disk full")
}

func (w shortWriter) Close() error { return w.f.Close() }

func TestWriteNew_RemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	path, f, err := createUnique(dir, "farm.json")
	if err != nil {
		t.Fatalf("createUnique() error = %v", err)
	}

	if err := writeNew(path, shortWriter{f: f}, []byte(`{"plants":[]}`)); err == nil {
		t.Fatal("writeNew() error = nil, want write failure")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("partial file left at %s (stat err = %v)", path, err)
	}

	// The name is free again for the next transfer
	saved, err := NewStore(dir).Save(&protocol.CompletedTransfer{FileName: "farm.json", FileType: protocol.FileTypeJSON, Raw: []byte("{}")})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved != path {
		t.Errorf("Save() = %q, want %q", saved, path)
	}
}

package protocol

import (
	"bytes"
	"strings"
	"testing"
)

func TestBuildHeaderFrame(t *testing.T) {
	tests := []struct {
		name     string
		ft       FileType
		chunks   int
		size     uint32
		checksum byte
		want     string
		wantErr  bool
	}{
		{
			name:     "json header",
			ft:       FileTypeJSON,
			chunks:   3,
			size:     0x01020304,
			checksum: 0x7F,
			want:     "FT,H,010103040302017F",
		},
		{
			name:   "empty binary header",
			ft:     FileTypeBinary,
			chunks: 0,
			want:   "FT,H,0100000000000000",
		},
		{
			name:    "too many chunks",
			ft:      FileTypeCSV,
			chunks:  MaxChunks + 1,
			wantErr: true,
		},
		{
			name:    "negative chunks",
			chunks:  -1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildHeaderFrame(tt.ft, tt.chunks, tt.size, tt.checksum)
			if (err != nil) != tt.wantErr {
				t.Fatalf("BuildHeaderFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("BuildHeaderFrame() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildPayloadFrame(t *testing.T) {
	got := BuildPayloadFrame(1, 3, []byte("AB"))
	want := "FT,P,1,3,02414283"
	if got != want {
		t.Errorf("BuildPayloadFrame() = %q, want %q", got, want)
	}

	if got := BuildPayloadFrame(0, 1, nil); got != "FT,P,0,1,0200" {
		t.Errorf("BuildPayloadFrame(empty) = %q, want %q", got, "FT,P,0,1,0200")
	}
}

func TestBuildEndFrame(t *testing.T) {
	if got := BuildEndFrame("a.csv"); got != "FT,L,03612E637376" {
		t.Errorf("BuildEndFrame() = %q", got)
	}
	if got := BuildEndFrame(""); got != "FT,L,03" {
		t.Errorf("BuildEndFrame(\"\") = %q, want FT,L,03", got)
	}
}

func TestBuildErrorFrame(t *testing.T) {
	if got := BuildErrorFrame("sd card missing"); got != "FT,ERR,sd card missing" {
		t.Errorf("BuildErrorFrame() = %q", got)
	}
}

func TestEncodeTransfer(t *testing.T) {
	tests := []struct {
		name       string
		size       int
		chunkSize  int
		wantChunks int
		wantErr    bool
	}{
		{name: "default chunk size", size: 300, wantChunks: 5},
		{name: "exact multiple", size: 128, chunkSize: 64, wantChunks: 2},
		{name: "empty file sends one chunk", size: 0, wantChunks: 1},
		{name: "chunk size grows to fit", size: MaxChunks*DefaultChunkSize + 1, wantChunks: 128},
		{name: "explicit chunk size too small", size: 300, chunkSize: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Repeat([]byte{'x'}, tt.size)
			frames, err := EncodeTransfer(data, FileTypeBinary, "f.bin", tt.chunkSize)
			if (err != nil) != tt.wantErr {
				t.Fatalf("EncodeTransfer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(frames) != tt.wantChunks+2 {
				t.Fatalf("len(frames) = %d, want %d", len(frames), tt.wantChunks+2)
			}
			if !strings.HasPrefix(frames[0], "FT,H,") {
				t.Errorf("first frame = %q, want header", frames[0])
			}
			if !strings.HasPrefix(frames[len(frames)-1], "FT,L,03") {
				t.Errorf("last frame = %q, want end frame", frames[len(frames)-1])
			}
			for i, f := range frames[1 : len(frames)-1] {
				if !strings.HasPrefix(f, "FT,P,") {
					t.Errorf("frame %d = %q, want payload", i+1, f)
				}
			}
		})
	}
}

func BenchmarkEncodeTransfer(b *testing.B) {
	data := bytes.Repeat([]byte("0123456789"), 1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = EncodeTransfer(data, FileTypeCSV, "bench.csv", 0)
	}
}

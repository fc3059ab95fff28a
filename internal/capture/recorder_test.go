package capture

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type nopSender struct{ sent []string }

func (s *nopSender) Send(cmd string) error {
	s.sent = append(s.sent, cmd)
	return nil
}

func TestRecorder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	rec.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	// 26 bytes read 10 at a time: three fragments
	tapped := rec.Reader(strings.NewReader("FT,H,0101\nMoved to (1,2)\n\xff"))
	chunk := make([]byte, 10)
	for {
		_, err := tapped.Read(chunk)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}

	s := &nopSender{}
	if err := rec.Sender(s).Send("20,1"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(s.sent) != 1 {
		t.Errorf("command was not forwarded")
	}

	var fragments []string
	n, err := Replay(&buf, func(f string) { fragments = append(fragments, f) })
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if n != 3 || len(fragments) != 3 {
		t.Fatalf("Replay() = %d fragments (%d delivered), want 3", n, len(fragments))
	}
	if fragments[0] != "FT,H,0101\n" || fragments[2] != "1,2)\n\xff" {
		t.Errorf("fragments = %q", fragments)
	}
	if got := strings.Join(fragments, ""); got != "FT,H,0101\nMoved to (1,2)\n\xff" {
		t.Errorf("replayed = %q", got)
	}
}

func TestRecorder_SequenceNumbers(t *testing.T) {
	var buf bytes.Buffer
	rec := NewRecorder(&buf)
	rec.Record(DirectionRx, []byte("a"))
	rec.Record(DirectionRx, nil)
	rec.Record(DirectionTx, []byte("b"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("records = %d, want 2 (empty fragments skipped)", len(lines))
	}
	var r Record
	if err := jsonAPI.Unmarshal([]byte(lines[1]), &r); err != nil {
		t.Fatal(err)
	}
	if r.Seq != 2 || r.Direction != DirectionTx || r.Hex != "62" || r.Length != 1 {
		t.Errorf("record = %+v", r)
	}
}

func TestReplay_PlainText(t *testing.T) {
	text := strings.Repeat("x", plainChunk*2+10)
	var fragments []string
	n, err := Replay(strings.NewReader(text), func(f string) { fragments = append(fragments, f) })
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if n != 3 {
		t.Errorf("fragments = %d, want 3", n)
	}
	if strings.Join(fragments, "") != text {
		t.Error("plain replay lost data")
	}
}

func TestReplay_Empty(t *testing.T) {
	n, err := Replay(strings.NewReader(""), func(string) { t.Error("unexpected fragment") })
	if err != nil || n != 0 {
		t.Errorf("Replay(empty) = %d, %v", n, err)
	}
}

func TestReplay_CorruptRecord(t *testing.T) {
	input := `{"direction":"robot->host","text":"ok"}` + "\n{broken\n"
	n, err := Replay(strings.NewReader(input), func(string) {})
	if err == nil {
		t.Fatal("Replay() should fail on a corrupt line")
	}
	if n != 1 {
		t.Errorf("fragments before failure = %d, want 1", n)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error = %v, want line number", err)
	}
}

func TestCreate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "captures")
	rec, err := Create(dir)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	rec.Record(DirectionRx, []byte("hello"))
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if !strings.HasPrefix(filepath.Base(rec.Path()), "capture-") {
		t.Errorf("Path() = %q", rec.Path())
	}
	data, err := os.ReadFile(rec.Path())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"text":"hello"`) {
		t.Errorf("capture content = %s", data)
	}
}

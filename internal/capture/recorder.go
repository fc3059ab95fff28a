// Package capture records the raw serial stream to JSON Lines files and
// replays them, so decoding problems seen in the field can be reproduced
// with the exact fragmentation the port delivered.
package capture

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/muurk/farmlink/internal/logging"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Directions recorded in a capture
const (
	DirectionRx = "robot->host"
	DirectionTx = "host->robot"
)

// Record is one line of a capture file
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Seq       int       `json:"seq"`
	Direction string    `json:"direction"`
	Length    int       `json:"length"`
	Text      string    `json:"text"`
	Hex       string    `json:"hex"`
}

// Recorder appends records to a capture. It is safe for concurrent use, so
// the read loop and command senders can share one.
type Recorder struct {
	mu   sync.Mutex
	w    io.Writer
	c    io.Closer
	seq  int
	path string
	now  func() time.Time
}

// NewRecorder records to w
func NewRecorder(w io.Writer) *Recorder {
	r := &Recorder{w: w, now: time.Now}
	if c, ok := w.(io.Closer); ok {
		r.c = c
	}
	return r
}

// Create starts a new capture-<timestamp>.jsonl file in dir
func Create(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create capture directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("capture-%s.jsonl", time.Now().Format("20060102-150405")))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file: %w", err)
	}

	r := NewRecorder(f)
	r.path = path
	logging.Info("Capturing serial stream", zap.String("filename", path))
	return r, nil
}

// Path returns the capture file path, if the recorder owns a file
func (r *Recorder) Path() string {
	return r.path
}

// Record appends one fragment. Failures are logged, never returned; a
// broken capture must not stop the link.
func (r *Recorder) Record(direction string, data []byte) {
	if len(data) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	rec := Record{
		Timestamp: r.now(),
		Seq:       r.seq,
		Direction: direction,
		Length:    len(data),
		Text:      string(data),
		Hex:       hex.EncodeToString(data),
	}

	line, err := jsonAPI.Marshal(rec)
	if err != nil {
		logging.Error("Failed to marshal capture record", zap.Error(err))
		return
	}
	if _, err := r.w.Write(append(line, '\n')); err != nil {
		logging.Error("Failed to write capture record",
			zap.String("filename", r.path),
			zap.Error(err),
		)
	}
}

// Close closes the underlying file, if any
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c == nil {
		return nil
	}
	err := r.c.Close()
	r.c = nil
	return err
}

// Reader returns a reader that records everything read through it
func (r *Recorder) Reader(src io.Reader) io.Reader {
	return &tapReader{src: src, rec: r}
}

type tapReader struct {
	src io.Reader
	rec *Recorder
}

func (t *tapReader) Read(p []byte) (int, error) {
	n, err := t.src.Read(p)
	if n > 0 {
		t.rec.Record(DirectionRx, p[:n])
	}
	return n, err
}

// Sender is the command side of the link
type Sender interface {
	Send(cmd string) error
}

// Sender wraps s so that every command sent is recorded
func (r *Recorder) Sender(s Sender) Sender {
	return &tapSender{next: s, rec: r}
}

type tapSender struct {
	next Sender
	rec  *Recorder
}

func (t *tapSender) Send(cmd string) error {
	t.rec.Record(DirectionTx, []byte(cmd))
	return t.next.Send(cmd)
}

// plainChunk is the fragment size used when replaying plain text
const plainChunk = 256

// Replay feeds a capture back through fn, one call per received fragment.
// Files that are not JSON Lines are treated as raw text and fed in fixed
// size chunks. Sent commands are skipped.
func Replay(src io.Reader, fn func(fragment string)) (int, error) {
	br := bufio.NewReader(src)

	first, err := peekFirstNonSpace(br)
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if first != '{' {
		return replayPlain(br, fn)
	}
	return replayRecords(br, fn)
}

func peekFirstNonSpace(br *bufio.Reader) (byte, error) {
	for n := 1; ; n++ {
		b, err := br.Peek(n)
		if len(b) < n {
			if err == nil {
				err = io.EOF
			}
			return 0, err
		}
		switch c := b[n-1]; c {
		case ' ', '\t', '\r', '\n':
			if n >= br.Size() {
				return c, nil
			}
		default:
			return c, nil
		}
	}
}

func replayPlain(br *bufio.Reader, fn func(string)) (int, error) {
	buf := make([]byte, plainChunk)
	count := 0
	for {
		n, err := io.ReadFull(br, buf)
		if n > 0 {
			fn(string(buf[:n]))
			count++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("failed to read capture: %w", err)
		}
	}
}

func replayRecords(br *bufio.Reader, fn func(string)) (int, error) {
	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	count := 0
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := jsonAPI.Unmarshal(line, &rec); err != nil {
			return count, fmt.Errorf("capture line %d: %w", lineNum, err)
		}
		if rec.Direction == DirectionTx {
			continue
		}
		text := rec.Text
		if rec.Hex != "" {
			// Hex is authoritative; Text may have lost invalid UTF-8
			if raw, err := hex.DecodeString(rec.Hex); err == nil {
				text = string(raw)
			}
		}
		fn(text)
		count++
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("failed to read capture: %w", err)
	}
	return count, nil
}

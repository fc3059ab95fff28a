package protocol

import (
	"bytes"
	"strings"
)

// Extractor pulls complete FT frames out of an append-only text buffer.
// Fragments arrive with arbitrary boundaries; a frame is only yielded once
// its line terminator has been seen.
type Extractor struct {
	buf bytes.Buffer

	// MaxPending bounds how many bytes an unterminated frame may occupy
	// before it is dropped. Zero means unbounded.
	MaxPending int
}

// NewExtractor creates an extractor with the given pending-frame bound
func NewExtractor(maxPending int) *Extractor {
	return &Extractor{MaxPending: maxPending}
}

// Feed appends a fragment to the buffer
func (e *Extractor) Feed(fragment string) {
	e.buf.WriteString(fragment)
}

// Pending returns the number of buffered bytes not yet consumed
func (e *Extractor) Pending() int {
	return e.buf.Len()
}

// Reset discards everything buffered
func (e *Extractor) Reset() {
	e.buf.Reset()
}

// Next removes and returns the next complete frame from the front of the
// buffer. ok is false when no complete frame is available yet. A non-nil
// error reports a malformed frame (which has been consumed) or an overflow
// of MaxPending (which empties the buffer); callers should keep calling Next
// until it returns ok == false and a nil error.
func (e *Extractor) Next() (frame Frame, ok bool, err error) {
	data := e.buf.Bytes()

	start := bytes.Index(data, []byte(Marker))
	if start < 0 {
		e.keepTail(len(Marker) - 1)
		return Frame{}, false, nil
	}

	end := bytes.IndexByte(data[start:], '\n')
	if end < 0 {
		end = bytes.IndexByte(data[start:], '\r')
	}
	if end < 0 {
		if e.MaxPending > 0 && len(data)-start > e.MaxPending {
			pending := len(data) - start
			e.buf.Reset()
			return Frame{}, false, newError(ErrTypeFrameOverflow,
				"unterminated frame exceeded %d bytes (pending %d)", e.MaxPending, pending)
		}
		return Frame{}, false, nil
	}
	end += start

	text := strings.TrimSpace(string(data[start:end]))
	// Anything before the marker is noise and goes with the frame
	e.buf.Next(end + 1)

	frame, err = ParseFrame(text)
	if err != nil {
		return frame, false, err
	}
	return frame, true, nil
}

// keepTail drops all but the last n bytes; with no marker in the buffer only
// a split "FT" prefix can still matter.
func (e *Extractor) keepTail(n int) {
	if e.buf.Len() <= n {
		return
	}
	tail := string(e.buf.Bytes()[e.buf.Len()-n:])
	e.buf.Reset()
	e.buf.WriteString(tail)
}

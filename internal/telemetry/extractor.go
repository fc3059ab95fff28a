// Package telemetry extracts robot position updates from the free-form
// diagnostic text the firmware prints between file transfers.
package telemetry

import (
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/muurk/farmlink/internal/logging"
)

// DefaultWindow is how many characters of unmatched text are retained
// between fragments
const DefaultWindow = 200

// Visible is the z component of every event. The firmware only reports a
// planar position; z marks the robot as visible to the 3D view downstream.
const Visible = 1

var movedPattern = regexp.MustCompile(`Moved\s+to\s*\((-?\d+(?:\.\d+)?),\s*(-?\d+(?:\.\d+)?)\)`)

// Event is one position update
type Event struct {
	X float64
	Y float64
	Z float64
}

// Tuple returns the position in the array form the farm dashboard consumes:
// x, y, z and two reserved trailing slots.
func (e Event) Tuple() [5]interface{} {
	return [5]interface{}{e.X, e.Y, e.Z, nil, nil}
}

// Extractor scans a rolling text buffer for "Moved to (x, y)". It keeps its
// own buffer and never consumes anything another scanner needs.
type Extractor struct {
	Window int
	buf    string
}

// NewExtractor creates an extractor retaining at most window characters of
// unmatched text. A window <= 0 uses DefaultWindow.
func NewExtractor(window int) *Extractor {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Extractor{Window: window}
}

// Feed appends a fragment and returns one event per match, in stream order
func (e *Extractor) Feed(fragment string) []Event {
	e.buf += fragment

	matches := movedPattern.FindAllStringSubmatchIndex(e.buf, -1)
	var events []Event
	for _, m := range matches {
		x, errX := strconv.ParseFloat(e.buf[m[2]:m[3]], 64)
		y, errY := strconv.ParseFloat(e.buf[m[4]:m[5]], 64)
		if errX != nil || errY != nil {
			continue
		}
		ev := Event{X: x, Y: y, Z: Visible}
		events = append(events, ev)
		logging.Debug("Position update",
			zap.Float64("x", ev.X),
			zap.Float64("y", ev.Y),
		)
	}

	// Drop everything up to the end of the last match so it is not reported
	// again, then bound what is left.
	if n := len(matches); n > 0 {
		e.buf = e.buf[matches[n-1][1]:]
	}
	e.trim()
	return events
}

// Buffered returns the retained, not yet matched text
func (e *Extractor) Buffered() string {
	return e.buf
}

// Reset clears the buffer
func (e *Extractor) Reset() {
	e.buf = ""
}

func (e *Extractor) trim() {
	window := e.Window
	if window <= 0 {
		window = DefaultWindow
	}
	if len(e.buf) <= window {
		return
	}
	runes := []rune(e.buf)
	if len(runes) > window {
		e.buf = string(runes[len(runes)-window:])
	}
}

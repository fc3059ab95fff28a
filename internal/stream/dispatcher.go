// Package stream demultiplexes the robot's serial stream.
//
// One physical link carries file-transfer frames, free-form diagnostic text
// with embedded position reports, and J...X delimited JSON echo blocks. The
// Dispatcher feeds every fragment to three independent scanners, each with
// its own buffer, so none of them can consume or corrupt what another needs:
//
//	fragment -+-> protocol.Extractor -> protocol.Receiver -> TransferComplete / TransferFailed
//	          +-> telemetry.Extractor ---------------------> PositionUpdate
//	          +-> line classifier -------------------------> LogLine / JSONBlock
//
// A Dispatcher is driven by a single read loop (see Pump) and is not safe
// for concurrent use.
package stream

import (
	"errors"

	"go.uber.org/zap"

	"github.com/muurk/farmlink/internal/logging"
	"github.com/muurk/farmlink/internal/protocol"
	"github.com/muurk/farmlink/internal/telemetry"
)

// Options configures a Dispatcher
type Options struct {
	// TelemetryWindow bounds the position scanner's buffer, in characters
	TelemetryWindow int
	// MaxFrameBuffer bounds an unterminated frame or line, and a JSON
	// block, in bytes (0 = unbounded)
	MaxFrameBuffer int
	// StrictHex rejects malformed hex instead of decoding it leniently
	StrictHex bool
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		TelemetryWindow: telemetry.DefaultWindow,
		MaxFrameBuffer:  64 * 1024,
	}
}

// Dispatcher routes stream fragments to the frame, telemetry and line scanners
type Dispatcher struct {
	handler   Handler
	frames    *protocol.Extractor
	receiver  *protocol.Receiver
	positions *telemetry.Extractor
	lines     lineClassifier
}

// NewDispatcher creates a dispatcher delivering to h. A nil h discards
// everything.
func NewDispatcher(h Handler, opts Options) *Dispatcher {
	if h == nil {
		h = NopHandler{}
	}
	return &Dispatcher{
		handler:   h,
		frames:    protocol.NewExtractor(opts.MaxFrameBuffer),
		receiver:  protocol.NewReceiver(protocol.Options{StrictHex: opts.StrictHex}),
		positions: telemetry.NewExtractor(opts.TelemetryWindow),
		lines:     lineClassifier{maxPending: opts.MaxFrameBuffer},
	}
}

// Receiver exposes the transfer state machine, mainly for status displays
func (d *Dispatcher) Receiver() *protocol.Receiver {
	return d.receiver
}

// Feed processes one fragment to completion: every complete frame is
// handled, every position match reported and every complete line classified.
func (d *Dispatcher) Feed(fragment string) {
	if fragment == "" {
		return
	}
	logging.LogFragment("rx", fragment)

	d.frames.Feed(fragment)
	d.drainFrames()

	for _, ev := range d.positions.Feed(fragment) {
		d.handler.PositionUpdate(ev)
	}

	d.lines.feed(fragment, d)
}

// Flush emits a trailing unterminated line. Call it once the stream ends.
// A transfer still in progress is abandoned in place.
func (d *Dispatcher) Flush() {
	if d.lines.flush(d) {
		logging.Warn("Stream ended inside a JSON block, discarding it")
	}
	if p := d.receiver.Progress(); p.Active {
		logging.Warn("Stream ended during a file transfer",
			zap.Int("received_chunks", p.Received),
			zap.Int("expected_chunks", p.Expected),
		)
	}
}

func (d *Dispatcher) drainFrames() {
	for {
		frame, ok, err := d.frames.Next()
		if err != nil {
			d.frameError(err)
			continue
		}
		if !ok {
			return
		}
		d.handleFrame(frame)
	}
}

func (d *Dispatcher) frameError(err error) {
	if errors.Is(err, protocol.ErrFrameOverflow) {
		// The frame was dropped, so whatever transfer it belonged to is lost
		d.receiver.Reset()
		logging.Error("Frame buffer overflow, transfer abandoned", zap.Error(err))
		d.handler.TransferFailed(err)
		return
	}
	logging.Warn("Ignoring malformed frame", zap.Error(err))
}

func (d *Dispatcher) handleFrame(frame protocol.Frame) {
	logging.LogFrame(frame.TypeName(), len(frame.Fields), frame.Raw)

	done, err := d.receiver.Handle(frame)
	if err != nil {
		if !protocol.IsFatal(err) {
			logging.Warn("Ignoring frame", zap.String("frame", frame.String()), zap.Error(err))
			return
		}
		// Remote errors were already logged by the receiver
		if !errors.Is(err, protocol.ErrRemote) {
			logging.Error("File transfer failed", zap.Error(err))
		}
		d.handler.TransferFailed(err)
		return
	}

	if done != nil {
		d.handler.TransferComplete(done)
		return
	}

	switch frame.Type {
	case protocol.FrameHeader, protocol.FramePayload:
		d.handler.TransferProgress(d.receiver.Progress())
	}
}

func (d *Dispatcher) line(l Line) {
	if l.Alert {
		logging.Warn("Robot alert", zap.String("text", l.Text))
	} else {
		logging.Info("Received", zap.String("text", l.Text))
	}
	d.handler.LogLine(l)
}

func (d *Dispatcher) jsonBlock(b JSONBlock) {
	if !b.Valid {
		logging.Warn("Invalid JSON block", zap.Int("length", len(b.Text)))
	} else {
		logging.Debug("JSON block", zap.Int("length", len(b.Text)))
	}
	d.handler.JSONBlock(b)
}

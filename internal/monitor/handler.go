package monitor

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/farmlink/internal/protocol"
	"github.com/muurk/farmlink/internal/stream"
	"github.com/muurk/farmlink/internal/telemetry"
)

// Messages posted from the read loop
type (
	lineMsg      stream.Line
	blockMsg     stream.JSONBlock
	positionMsg  telemetry.Event
	progressMsg  protocol.Progress
	transferMsg  struct{ t *protocol.CompletedTransfer }
	failureMsg   struct{ err error }
	savedMsg     struct{ path string }
	streamEndMsg struct{ err error }
)

// commandResultMsg reports the outcome of a command typed into the monitor
type commandResultMsg struct {
	command string
	err     error
}

// Handler forwards stream events to a running program. Send on a
// tea.Program is safe from any goroutine.
type Handler struct {
	send func(tea.Msg)
}

// NewHandler returns a stream.Handler that posts to p
func NewHandler(p *tea.Program) *Handler {
	return &Handler{send: p.Send}
}

func (h *Handler) TransferComplete(t *protocol.CompletedTransfer) { h.send(transferMsg{t: t}) }
func (h *Handler) TransferFailed(err error)                        { h.send(failureMsg{err: err}) }
func (h *Handler) TransferProgress(p protocol.Progress)            { h.send(progressMsg(p)) }
func (h *Handler) PositionUpdate(ev telemetry.Event)               { h.send(positionMsg(ev)) }
func (h *Handler) LogLine(l stream.Line)                           { h.send(lineMsg(l)) }
func (h *Handler) JSONBlock(b stream.JSONBlock)                    { h.send(blockMsg(b)) }

// Saved reports a file written by the output store
func (h *Handler) Saved(path string) { h.send(savedMsg{path: path}) }

// StreamEnded reports that the read loop has stopped
func (h *Handler) StreamEnded(err error) { h.send(streamEndMsg{err: err}) }

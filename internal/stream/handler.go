package stream

import (
	"github.com/muurk/farmlink/internal/protocol"
	"github.com/muurk/farmlink/internal/telemetry"
)

// Handler receives everything the dispatcher extracts from the stream.
// Methods are called from the read loop and must not block for long.
type Handler interface {
	TransferComplete(t *protocol.CompletedTransfer)
	TransferFailed(err error)
	TransferProgress(p protocol.Progress)
	PositionUpdate(ev telemetry.Event)
	LogLine(l Line)
	JSONBlock(b JSONBlock)
}

// Line is one plain diagnostic line from the robot
type Line struct {
	Text  string
	Alert bool // Moisture reading or similar operator-facing notice
}

// JSONBlock is the text collected between a "J" line and an "X" line
type JSONBlock struct {
	Text  string
	Valid bool
}

// NopHandler ignores every event. Embed it to implement only part of Handler.
type NopHandler struct{}

func (NopHandler) TransferComplete(*protocol.CompletedTransfer) {}
func (NopHandler) TransferFailed(error)                         {}
func (NopHandler) TransferProgress(protocol.Progress)           {}
func (NopHandler) PositionUpdate(telemetry.Event)               {}
func (NopHandler) LogLine(Line)                                 {}
func (NopHandler) JSONBlock(JSONBlock)                          {}

// HandlerFuncs adapts plain functions to Handler; nil fields are skipped
type HandlerFuncs struct {
	OnTransferComplete func(*protocol.CompletedTransfer)
	OnTransferFailed   func(error)
	OnTransferProgress func(protocol.Progress)
	OnPositionUpdate   func(telemetry.Event)
	OnLogLine          func(Line)
	OnJSONBlock        func(JSONBlock)
}

func (h HandlerFuncs) TransferComplete(t *protocol.CompletedTransfer) {
	if h.OnTransferComplete != nil {
		h.OnTransferComplete(t)
	}
}

func (h HandlerFuncs) TransferFailed(err error) {
	if h.OnTransferFailed != nil {
		h.OnTransferFailed(err)
	}
}

func (h HandlerFuncs) TransferProgress(p protocol.Progress) {
	if h.OnTransferProgress != nil {
		h.OnTransferProgress(p)
	}
}

func (h HandlerFuncs) PositionUpdate(ev telemetry.Event) {
	if h.OnPositionUpdate != nil {
		h.OnPositionUpdate(ev)
	}
}

func (h HandlerFuncs) LogLine(l Line) {
	if h.OnLogLine != nil {
		h.OnLogLine(l)
	}
}

func (h HandlerFuncs) JSONBlock(b JSONBlock) {
	if h.OnJSONBlock != nil {
		h.OnJSONBlock(b)
	}
}

type multi []Handler

// Multi fans every event out to each handler in order
func Multi(handlers ...Handler) Handler {
	var m multi
	for _, h := range handlers {
		if h != nil {
			m = append(m, h)
		}
	}
	return m
}

func (m multi) TransferComplete(t *protocol.CompletedTransfer) {
	for _, h := range m {
		h.TransferComplete(t)
	}
}

func (m multi) TransferFailed(err error) {
	for _, h := range m {
		h.TransferFailed(err)
	}
}

func (m multi) TransferProgress(p protocol.Progress) {
	for _, h := range m {
		h.TransferProgress(p)
	}
}

func (m multi) PositionUpdate(ev telemetry.Event) {
	for _, h := range m {
		h.PositionUpdate(ev)
	}
}

func (m multi) LogLine(l Line) {
	for _, h := range m {
		h.LogLine(l)
	}
}

func (m multi) JSONBlock(b JSONBlock) {
	for _, h := range m {
		h.JSONBlock(b)
	}
}

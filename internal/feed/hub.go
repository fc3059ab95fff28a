package feed

import (
	"errors"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/muurk/farmlink/internal/logging"
	"github.com/muurk/farmlink/internal/protocol"
	"github.com/muurk/farmlink/internal/stream"
	"github.com/muurk/farmlink/internal/telemetry"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Event types
const (
	EventPosition       = "position"
	EventTransfer       = "transfer"
	EventTransferFailed = "transfer_failed"
	EventProgress       = "progress"
	EventLog            = "log"
	EventJSONBlock      = "json_block"
	EventCommandResult  = "command_result"
)

// Event is one message on the feed
type Event struct {
	Type string      `json:"type"`
	Time time.Time   `json:"time"`
	Data interface{} `json:"data"`
}

// PositionData is the payload of a position event
type PositionData struct {
	X     float64        `json:"x"`
	Y     float64        `json:"y"`
	Z     float64        `json:"z"`
	Tuple [5]interface{} `json:"tuple"`
}

// TransferData is the payload of a transfer event
type TransferData struct {
	FileName   string      `json:"file_name"`
	Kind       string      `json:"kind"`
	Size       int         `json:"size"`
	Chunks     int         `json:"chunks"`
	ChecksumOK bool        `json:"checksum_ok"`
	Parsed     bool        `json:"parsed"` // JSON decoded; otherwise data is the raw text
	Data       interface{} `json:"data"`
}

// FailureData is the payload of a transfer_failed event
type FailureData struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Missing []int  `json:"missing,omitempty"`
}

// ProgressData is the payload of a progress event
type ProgressData struct {
	Kind         string  `json:"kind"`
	Received     int     `json:"received"`
	Expected     int     `json:"expected"`
	DeclaredSize uint32  `json:"declared_size"`
	Fraction     float64 `json:"fraction"`
}

// LogData is the payload of a log event
type LogData struct {
	Text  string `json:"text"`
	Alert bool   `json:"alert"`
}

// BlockData is the payload of a json_block event
type BlockData struct {
	Text  string `json:"text"`
	Valid bool   `json:"valid"`
}

// CommandResult answers a client's command
type CommandResult struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// Sender delivers commands to the robot
type Sender interface {
	Send(cmd string) error
}

// clientQueue is how many events may wait for a slow client
const clientQueue = 64

// Hub fans stream events out to every connected client. It implements
// stream.Handler.
type Hub struct {
	sender Sender
	now    func() time.Time

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

var _ stream.Handler = (*Hub)(nil)

// NewHub creates a hub forwarding client commands to sender. A nil sender
// makes the feed read-only.
func NewHub(sender Sender) *Hub {
	return &Hub{
		sender:  sender,
		now:     time.Now,
		clients: make(map[*client]struct{}),
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	logging.LogConnection(c.remoteAddr, "feed_client_connected")
	logging.Debug("Feed clients", zap.Int("count", n))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	logging.LogConnection(c.remoteAddr, "feed_client_disconnected")
}

// closeAll disconnects every client
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// Publish broadcasts an event to every client
func (h *Hub) Publish(eventType string, data interface{}) {
	msg, err := jsonAPI.Marshal(Event{Type: eventType, Time: h.now(), Data: data})
	if err != nil {
		logging.Error("Failed to marshal feed event",
			zap.String("type", eventType),
			zap.Error(err),
		)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Queue full: drop the client, not the event for everyone else
			logging.Warn("Feed client too slow, disconnecting",
				zap.String("remote_addr", c.remoteAddr),
			)
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// sendTo queues an event for one client only
func (h *Hub) sendTo(c *client, eventType string, data interface{}) {
	msg, err := jsonAPI.Marshal(Event{Type: eventType, Time: h.now(), Data: data})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

// command runs one client command and reports the result to that client
func (h *Hub) command(c *client, cmd string) {
	result := CommandResult{Command: cmd, OK: true}
	switch {
	case h.sender == nil:
		result.OK = false
		result.Error = "feed is read-only"
	case cmd == "":
		result.OK = false
		result.Error = "empty command"
	default:
		if err := h.sender.Send(cmd); err != nil {
			result.OK = false
			result.Error = err.Error()
		}
	}
	logging.Info("Feed command",
		zap.String("remote_addr", c.remoteAddr),
		zap.String("command", cmd),
		zap.Bool("ok", result.OK),
	)
	h.sendTo(c, EventCommandResult, result)
}

// TransferComplete publishes a transfer event
func (h *Hub) TransferComplete(t *protocol.CompletedTransfer) {
	h.Publish(EventTransfer, TransferData{
		FileName:   t.FileName,
		Kind:       t.Kind(),
		Size:       len(t.Raw),
		Chunks:     t.Chunks,
		ChecksumOK: t.ChecksumOK,
		Parsed:     t.Parsed,
		Data:       t.Data,
	})
}

// TransferFailed publishes a transfer_failed event with the error kind and any missing chunks
func (h *Hub) TransferFailed(err error) {
	data := FailureData{Error: err.Error(), Missing: protocol.MissingChunksOf(err)}
	var te *protocol.TransferError
	if errors.As(err, &te) {
		data.Kind = te.Type.String()
	}
	h.Publish(EventTransferFailed, data)
}

// TransferProgress publishes a progress event
func (h *Hub) TransferProgress(p protocol.Progress) {
	h.Publish(EventProgress, ProgressData{
		Kind:         p.FileType.Kind(),
		Received:     p.Received,
		Expected:     p.Expected,
		DeclaredSize: p.DeclaredSize,
		Fraction:     p.Fraction(),
	})
}

// PositionUpdate publishes a position event
func (h *Hub) PositionUpdate(ev telemetry.Event) {
	h.Publish(EventPosition, PositionData{X: ev.X, Y: ev.Y, Z: ev.Z, Tuple: ev.Tuple()})
}

// LogLine publishes a log event
func (h *Hub) LogLine(l stream.Line) {
	h.Publish(EventLog, LogData{Text: l.Text, Alert: l.Alert})
}

// JSONBlock publishes a json_block event
func (h *Hub) JSONBlock(b stream.JSONBlock) {
	h.Publish(EventJSONBlock, BlockData{Text: b.Text, Valid: b.Valid})
}

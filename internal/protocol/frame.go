package protocol

import (
	"fmt"
	"strings"
)

// Marker introduces every file-transfer frame on the serial stream
const Marker = "FT,"

// Frame type tokens
const (
	FrameHeader  = "H"   // Transfer header
	FramePayload = "P"   // One payload chunk
	FrameLast    = "L"   // End of transfer, optional file name
	FrameError   = "ERR" // Robot-side abort
)

// Frame is one decoded FT,<type>,<fields...> line
type Frame struct {
	Type   string   // Type token (H, P, L, ERR, ...)
	Fields []string // Comma-separated fields after the type token
	Raw    string   // Trimmed frame text as received
}

// ParseFrame splits a complete frame line into its type token and fields
func ParseFrame(text string) (Frame, error) {
	parts := strings.Split(text, ",")
	if len(parts) < 2 || parts[0] != "FT" {
		return Frame{Raw: text}, newError(ErrTypeMalformedFrame, "invalid message format: %s", quoteShort(text))
	}
	return Frame{
		Type:   parts[1],
		Fields: parts[2:],
		Raw:    text,
	}, nil
}

// Field returns field i, or "" when the frame is too short
func (f Frame) Field(i int) string {
	if i < 0 || i >= len(f.Fields) {
		return ""
	}
	return f.Fields[i]
}

// TypeName returns a human-readable name for the frame type
func (f Frame) TypeName() string {
	switch f.Type {
	case FrameHeader:
		return "Header"
	case FramePayload:
		return "Payload"
	case FrameLast:
		return "Last"
	case FrameError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(%s)", f.Type)
	}
}

// String returns a debug representation of the frame
func (f Frame) String() string {
	return fmt.Sprintf("Frame{type=%s, fields=%d, len=%d}", f.TypeName(), len(f.Fields), len(f.Raw))
}

package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrorType represents the category of a file-transfer failure
type ErrorType int

const (
	// ErrTypeInvalidHeader indicates a header frame whose first byte is not 0x01
	ErrTypeInvalidHeader ErrorType = iota
	// ErrTypeInvalidChunkMarker indicates a payload frame whose first byte is not 0x02
	ErrTypeInvalidChunkMarker
	// ErrTypeChunkIndexOutOfRange indicates a payload index outside the declared chunk count
	ErrTypeChunkIndexOutOfRange
	// ErrTypeInvalidEndMarker indicates an end frame whose first byte is not 0x03
	ErrTypeInvalidEndMarker
	// ErrTypeNoActiveTransfer indicates an end frame with no header before it
	ErrTypeNoActiveTransfer
	// ErrTypeMissingChunks indicates an end frame arriving before every chunk
	ErrTypeMissingChunks
	// ErrTypeMalformedHex indicates a hex field that is not valid hex (strict mode only)
	ErrTypeMalformedHex
	// ErrTypeRemote indicates the robot aborted the transfer with an ERR frame
	ErrTypeRemote
	// ErrTypeMalformedFrame indicates a frame with the wrong prefix or too few fields
	ErrTypeMalformedFrame
	// ErrTypeUnknownFrame indicates a frame type token this receiver does not know
	ErrTypeUnknownFrame
	// ErrTypeFrameOverflow indicates a frame that never terminated within the buffer bound
	ErrTypeFrameOverflow
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeInvalidHeader:
		return "InvalidHeader"
	case ErrTypeInvalidChunkMarker:
		return "InvalidChunkMarker"
	case ErrTypeChunkIndexOutOfRange:
		return "ChunkIndexOutOfRange"
	case ErrTypeInvalidEndMarker:
		return "InvalidEndMarker"
	case ErrTypeNoActiveTransfer:
		return "NoActiveTransfer"
	case ErrTypeMissingChunks:
		return "MissingChunks"
	case ErrTypeMalformedHex:
		return "MalformedHex"
	case ErrTypeRemote:
		return "RemoteError"
	case ErrTypeMalformedFrame:
		return "MalformedFrame"
	case ErrTypeUnknownFrame:
		return "UnknownFrame"
	case ErrTypeFrameOverflow:
		return "FrameOverflow"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// TransferError describes why a frame could not be applied to a transfer
type TransferError struct {
	Type    ErrorType // Category of error
	Message string    // Human-readable detail
	Missing []int     // Missing chunk indices (MissingChunks only)
	Err     error     // Underlying error (if any)
}

// Error implements the error interface
func (e *TransferError) Error() string {
	msg := e.Type.String()
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *TransferError) Unwrap() error {
	return e.Err
}

// Is matches any TransferError of the same type, so the sentinels below work
// with errors.Is regardless of message or missing indices.
func (e *TransferError) Is(target error) bool {
	t, ok := target.(*TransferError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// Sentinels for errors.Is
var (
	ErrInvalidHeader        = &TransferError{Type: ErrTypeInvalidHeader}
	ErrInvalidChunkMarker   = &TransferError{Type: ErrTypeInvalidChunkMarker}
	ErrChunkIndexOutOfRange = &TransferError{Type: ErrTypeChunkIndexOutOfRange}
	ErrInvalidEndMarker     = &TransferError{Type: ErrTypeInvalidEndMarker}
	ErrNoActiveTransfer     = &TransferError{Type: ErrTypeNoActiveTransfer}
	ErrMissingChunks        = &TransferError{Type: ErrTypeMissingChunks}
	ErrMalformedHex         = &TransferError{Type: ErrTypeMalformedHex}
	ErrRemote               = &TransferError{Type: ErrTypeRemote}
	ErrMalformedFrame       = &TransferError{Type: ErrTypeMalformedFrame}
	ErrUnknownFrame         = &TransferError{Type: ErrTypeUnknownFrame}
	ErrFrameOverflow        = &TransferError{Type: ErrTypeFrameOverflow}
)

func newError(t ErrorType, format string, args ...interface{}) *TransferError {
	return &TransferError{Type: t, Message: fmt.Sprintf(format, args...)}
}

func missingChunksError(missing []int) *TransferError {
	parts := make([]string, len(missing))
	for i, idx := range missing {
		parts[i] = strconv.Itoa(idx)
	}
	return &TransferError{
		Type:    ErrTypeMissingChunks,
		Message: "missing chunks: " + strings.Join(parts, ", "),
		Missing: missing,
	}
}

// MissingChunksOf returns the missing chunk indices carried by err, or nil
func MissingChunksOf(err error) []int {
	var te *TransferError
	if errors.As(err, &te) && te.Type == ErrTypeMissingChunks {
		return te.Missing
	}
	return nil
}

// IsFatal reports whether err aborted the transfer in progress. Malformed and
// unknown frames are ignorable noise and leave the transfer untouched.
func IsFatal(err error) bool {
	var te *TransferError
	if !errors.As(err, &te) {
		return true
	}
	switch te.Type {
	case ErrTypeMalformedFrame, ErrTypeUnknownFrame:
		return false
	default:
		return true
	}
}

package protocol

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/muurk/farmlink/internal/logging"
)

// Frame body markers (first decoded byte of each hex field)
const (
	HeaderMarker = 0x01
	ChunkMarker  = 0x02
	EndMarker    = 0x03

	// HeaderSize is the decoded header length:
	// marker, file type, chunk count, 4-byte LE size, checksum
	HeaderSize = 8
)

// FileType is the file-type code carried in the header
type FileType byte

// Known file types; any other code is treated as opaque binary
const (
	FileTypeJSON   FileType = 0x01
	FileTypeCSV    FileType = 0x02
	FileTypeBinary FileType = 0x00
)

// Kind returns the file-kind tag handed to consumers: JSON, CSV or binary
func (ft FileType) Kind() string {
	switch ft {
	case FileTypeJSON:
		return "JSON"
	case FileTypeCSV:
		return "CSV"
	default:
		return "binary"
	}
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Transfer is the in-progress reconstruction state of one file
type Transfer struct {
	FileType         FileType
	ExpectedChunks   int
	DeclaredSize     uint32
	DeclaredChecksum byte
	Chunks           [][]byte // nil entry = not yet received
	FileName         string
	StartedAt        time.Time
}

// Received counts the chunk slots that have been filled
func (t *Transfer) Received() int {
	n := 0
	for _, c := range t.Chunks {
		if c != nil {
			n++
		}
	}
	return n
}

// Missing lists every chunk index not yet received, in order
func (t *Transfer) Missing() []int {
	var missing []int
	for i, c := range t.Chunks {
		if c == nil {
			missing = append(missing, i)
		}
	}
	return missing
}

func (t *Transfer) assemble() []byte {
	size := 0
	for _, c := range t.Chunks {
		size += len(c)
	}
	out := make([]byte, 0, size)
	for _, c := range t.Chunks {
		out = append(out, c...)
	}
	return out
}

// CompletedTransfer is a fully reassembled file
type CompletedTransfer struct {
	// Data is the decoded payload: a parsed JSON value (or the raw text if
	// it did not parse) for JSON, a string for CSV, []byte otherwise.
	Data       interface{}
	// Parsed reports whether a JSON payload decoded. A JSON document whose
	// top-level value is a string also leaves a string in Data.
	Parsed     bool
	Raw        []byte
	FileName   string
	FileType   FileType
	Chunks     int
	Declared   uint32 // Size announced in the header
	Checksum   byte   // Checksum announced in the header
	ChecksumOK bool
	ReceivedAt time.Time
}

// Kind returns JSON, CSV or binary
func (c *CompletedTransfer) Kind() string {
	return c.FileType.Kind()
}

// String returns a human-readable summary
func (c *CompletedTransfer) String() string {
	name := c.FileName
	if name == "" {
		name = "unnamed file"
	}
	return fmt.Sprintf("Transfer{name=%s, kind=%s, size=%d, chunks=%d, checksum_ok=%v}",
		name, c.Kind(), len(c.Raw), c.Chunks, c.ChecksumOK)
}

// Progress is a snapshot of the transfer in flight
type Progress struct {
	Active       bool
	FileType     FileType
	Received     int
	Expected     int
	DeclaredSize uint32
}

// Fraction returns received/expected in [0, 1]
func (p Progress) Fraction() float64 {
	if p.Expected == 0 {
		return 0
	}
	return float64(p.Received) / float64(p.Expected)
}

// Options tunes a Receiver
type Options struct {
	// StrictHex rejects malformed hex fields with ErrMalformedHex instead of
	// decoding them leniently.
	StrictHex bool
}

// Receiver is the file-transfer state machine. It owns at most one Transfer;
// a nil transfer means idle. Every structural error and every terminal frame
// returns it to idle.
type Receiver struct {
	opts    Options
	current *Transfer
	now     func() time.Time
}

// NewReceiver creates an idle receiver
func NewReceiver(opts Options) *Receiver {
	return &Receiver{
		opts: opts,
		now:  time.Now,
	}
}

// Active reports whether a transfer is in progress
func (r *Receiver) Active() bool {
	return r.current != nil
}

// Current returns the transfer in progress, or nil when idle
func (r *Receiver) Current() *Transfer {
	return r.current
}

// Reset abandons any transfer in progress
func (r *Receiver) Reset() {
	r.current = nil
}

// Progress returns a snapshot of the transfer in progress
func (r *Receiver) Progress() Progress {
	if r.current == nil {
		return Progress{}
	}
	return Progress{
		Active:       true,
		FileType:     r.current.FileType,
		Received:     r.current.Received(),
		Expected:     r.current.ExpectedChunks,
		DeclaredSize: r.current.DeclaredSize,
	}
}

// Handle applies one frame. It returns a CompletedTransfer when the frame
// finished a transfer. Errors from malformed or unknown frames leave the
// state untouched; every other error abandons the transfer.
func (r *Receiver) Handle(f Frame) (*CompletedTransfer, error) {
	result, err := r.dispatch(f)
	if err != nil && IsFatal(err) {
		r.current = nil
	}
	return result, err
}

func (r *Receiver) dispatch(f Frame) (*CompletedTransfer, error) {
	switch f.Type {
	case FrameHeader:
		if len(f.Fields) < 1 {
			return nil, newError(ErrTypeMalformedFrame, "header frame has no data field")
		}
		return nil, r.handleHeader(f.Field(0))

	case FramePayload:
		if len(f.Fields) < 3 {
			return nil, newError(ErrTypeMalformedFrame, "payload frame needs index, total and data fields, got %d fields", len(f.Fields))
		}
		return nil, r.handlePayload(f.Field(0), f.Field(1), f.Field(2))

	case FrameLast:
		if len(f.Fields) < 1 {
			return nil, newError(ErrTypeMalformedFrame, "end frame has no data field")
		}
		return r.handleEnd(f.Field(0))

	case FrameError:
		reason := strings.Join(f.Fields, ",")
		logging.Error("File transfer error reported by robot",
			zap.String("reason", reason),
		)
		return nil, &TransferError{Type: ErrTypeRemote, Message: reason}

	default:
		return nil, newError(ErrTypeUnknownFrame, "unknown message type %q", f.Type)
	}
}

func (r *Receiver) decode(field string) ([]byte, error) {
	if r.opts.StrictHex {
		return DecodeHexStrict(field)
	}
	return DecodeHex(field), nil
}

func (r *Receiver) handleHeader(field string) error {
	header, err := r.decode(field)
	if err != nil {
		return err
	}

	if len(header) == 0 || header[0] != HeaderMarker {
		return newError(ErrTypeInvalidHeader, "invalid header marker %s", firstByte(header))
	}
	if len(header) < HeaderSize {
		return newError(ErrTypeInvalidHeader, "header too short: %d bytes (minimum %d)", len(header), HeaderSize)
	}

	if prev := r.current; prev != nil {
		// A new header silently replaces the old transfer; surface it at least.
		logging.Warn("New transfer header discards transfer in progress",
			zap.Int("received_chunks", prev.Received()),
			zap.Int("expected_chunks", prev.ExpectedChunks),
		)
	}

	t := &Transfer{
		FileType:         FileType(header[1]),
		ExpectedChunks:   int(header[2]),
		DeclaredSize:     binary.LittleEndian.Uint32(header[3:7]),
		DeclaredChecksum: header[7],
		StartedAt:        r.now(),
	}
	t.Chunks = make([][]byte, t.ExpectedChunks)
	r.current = t

	logging.Info("Starting file transfer",
		zap.String("kind", t.FileType.Kind()),
		zap.Int("chunks", t.ExpectedChunks),
		zap.String("size", humanize.Bytes(uint64(t.DeclaredSize))),
	)
	return nil
}

func (r *Receiver) handlePayload(indexField, totalField, dataField string) error {
	index, convErr := strconv.Atoi(strings.TrimSpace(indexField))
	if r.current == nil {
		return newError(ErrTypeChunkIndexOutOfRange, "chunk index %s received with no transfer in progress", indexField)
	}
	if convErr != nil || index < 0 || index >= r.current.ExpectedChunks {
		return newError(ErrTypeChunkIndexOutOfRange, "chunk index %s out of range, expected chunks: %d",
			indexField, r.current.ExpectedChunks)
	}

	chunk, err := r.decode(dataField)
	if err != nil {
		return err
	}
	if len(chunk) == 0 || chunk[0] != ChunkMarker {
		return newError(ErrTypeInvalidChunkMarker, "invalid chunk marker %s at index %d", firstByte(chunk), index)
	}

	// Strip the marker and the trailing per-chunk checksum
	payload := []byte{}
	if len(chunk) >= 2 {
		payload = append(payload, chunk[1:len(chunk)-1]...)
	}

	if r.current.Chunks[index] != nil {
		logging.Debug("Chunk delivered again, keeping latest copy",
			zap.Int("index", index),
		)
	}
	r.current.Chunks[index] = payload

	if total, err := strconv.Atoi(strings.TrimSpace(totalField)); err == nil && total != r.current.ExpectedChunks {
		logging.Warn("Chunk total disagrees with header",
			zap.Int("frame_total", total),
			zap.Int("header_total", r.current.ExpectedChunks),
		)
	}

	logging.Debug("Received chunk",
		zap.Int("index", index),
		zap.Int("bytes", len(payload)),
		zap.Int("received", r.current.Received()),
		zap.Int("expected", r.current.ExpectedChunks),
	)
	return nil
}

func (r *Receiver) handleEnd(field string) (*CompletedTransfer, error) {
	end, err := r.decode(field)
	if err != nil {
		return nil, err
	}
	if len(end) == 0 || end[0] != EndMarker {
		return nil, newError(ErrTypeInvalidEndMarker, "invalid end marker %s", firstByte(end))
	}

	var fileName string
	if len(end) > 1 {
		fileName = decodeText(end[1:])
	}

	t := r.current
	if t == nil {
		return nil, newError(ErrTypeNoActiveTransfer, "no chunks received before end message")
	}
	t.FileName = fileName

	if missing := t.Missing(); len(missing) > 0 {
		return nil, missingChunksError(missing)
	}

	data := t.assemble()

	calculated := Checksum(data)
	checksumOK := calculated == t.DeclaredChecksum
	if !checksumOK {
		logging.Warn("Checksum verification failed",
			zap.Uint8("expected", t.DeclaredChecksum),
			zap.Uint8("calculated", calculated),
			zap.String("file_name", fileName),
		)
	}
	if uint32(len(data)) != t.DeclaredSize {
		logging.Warn("Reassembled size differs from header",
			zap.Uint32("declared", t.DeclaredSize),
			zap.Int("actual", len(data)),
		)
	}

	value, parsed := decodePayload(t.FileType, data)
	result := &CompletedTransfer{
		Data:       value,
		Parsed:     parsed,
		Raw:        data,
		FileName:   fileName,
		FileType:   t.FileType,
		Chunks:     t.ExpectedChunks,
		Declared:   t.DeclaredSize,
		Checksum:   t.DeclaredChecksum,
		ChecksumOK: checksumOK,
		ReceivedAt: r.now(),
	}
	r.current = nil

	logging.Info("Transfer complete",
		zap.String("file_name", result.FileName),
		zap.String("kind", result.Kind()),
		zap.String("size", humanize.Bytes(uint64(len(data)))),
		zap.Duration("elapsed", result.ReceivedAt.Sub(t.StartedAt)),
	)
	return result, nil
}

// decodePayload turns the reassembled bytes into the consumer-facing value.
// parsed is true only for JSON that decoded.
func decodePayload(ft FileType, data []byte) (value interface{}, parsed bool) {
	switch ft {
	case FileTypeJSON:
		text := decodeText(data)
		var v interface{}
		if err := jsonAPI.UnmarshalFromString(text, &v); err != nil {
			logging.Error("Error parsing JSON transfer, keeping text",
				zap.Error(err),
				zap.Int("length", len(text)),
			)
			return text, false
		}
		return v, true
	case FileTypeCSV:
		return decodeText(data), false
	default:
		return data, false
	}
}

// decodeText decodes UTF-8, dropping a leading BOM and replacing invalid
// sequences with U+FFFD
func decodeText(b []byte) string {
	s := strings.ToValidUTF8(string(b), "\uFFFD")
	return strings.TrimPrefix(s, "\uFEFF")
}

func firstByte(b []byte) string {
	if len(b) == 0 {
		return "(empty)"
	}
	return fmt.Sprintf("0x%02x", b[0])
}

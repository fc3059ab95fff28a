package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// Frame constructors mirroring what the robot firmware emits. The bridge
// never sends these itself; they drive tests, the encode command and bench
// setups that replay a file through a serial loopback.

const (
	// MaxChunks is the largest chunk count a header can declare
	MaxChunks = 255

	// DefaultChunkSize is the payload size per chunk used by the firmware
	DefaultChunkSize = 64
)

// BuildHeaderFrame constructs an FT,H frame
//
// Header Structure:
//
//	[0]     0x01           Header marker
//	[1]     file_type      0x01 JSON, 0x02 CSV, other binary
//	[2]     chunk_count    Number of payload frames
//	[3-6]   size           Total payload size (little-endian uint32)
//	[7]     checksum       Additive checksum of the payload
func BuildHeaderFrame(ft FileType, chunks int, size uint32, checksum byte) (string, error) {
	if chunks < 0 || chunks > MaxChunks {
		return "", fmt.Errorf("chunk count %d out of range (0-%d)", chunks, MaxChunks)
	}
	header := make([]byte, HeaderSize)
	header[0] = HeaderMarker
	header[1] = byte(ft)
	header[2] = byte(chunks)
	binary.LittleEndian.PutUint32(header[3:7], size)
	header[7] = checksum
	return Marker + FrameHeader + "," + EncodeHex(header), nil
}

// BuildPayloadFrame constructs an FT,P frame: 0x02, the chunk, then the
// chunk's own additive checksum
func BuildPayloadFrame(index, total int, chunk []byte) string {
	body := make([]byte, 0, len(chunk)+2)
	body = append(body, ChunkMarker)
	body = append(body, chunk...)
	body = append(body, Checksum(chunk))
	return Marker + FramePayload + "," + strconv.Itoa(index) + "," + strconv.Itoa(total) + "," + EncodeHex(body)
}

// BuildEndFrame constructs an FT,L frame carrying an optional file name
func BuildEndFrame(fileName string) string {
	body := append([]byte{EndMarker}, []byte(fileName)...)
	return Marker + FrameLast + "," + EncodeHex(body)
}

// BuildErrorFrame constructs an FT,ERR frame
func BuildErrorFrame(reason string) string {
	return Marker + FrameError + "," + reason
}

// EncodeTransfer splits data into chunks and returns every frame of the
// transfer in order, without line terminators. A chunkSize of zero picks
// DefaultChunkSize, grown as needed to stay within MaxChunks.
func EncodeTransfer(data []byte, ft FileType, fileName string, chunkSize int) ([]string, error) {
	if uint64(len(data)) > math.MaxUint32 {
		return nil, fmt.Errorf("file too large: %d bytes", len(data))
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
		for (len(data)+chunkSize-1)/chunkSize > MaxChunks {
			chunkSize *= 2
		}
	}

	chunks := (len(data) + chunkSize - 1) / chunkSize
	if chunks == 0 {
		// The firmware still sends one empty chunk for an empty file
		chunks = 1
	}
	if chunks > MaxChunks {
		return nil, fmt.Errorf("%d bytes need %d chunks of %d bytes (max %d chunks)", len(data), chunks, chunkSize, MaxChunks)
	}

	header, err := BuildHeaderFrame(ft, chunks, uint32(len(data)), Checksum(data))
	if err != nil {
		return nil, err
	}

	frames := make([]string, 0, chunks+2)
	frames = append(frames, header)
	for i := 0; i < chunks; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}
		frames = append(frames, BuildPayloadFrame(i, chunks, data[start:end]))
	}
	frames = append(frames, BuildEndFrame(fileName))
	return frames, nil
}

// Package protocol implements the robot's chunked file-transfer protocol.
//
// The robot shares one half-duplex serial line between diagnostic text and
// file transfers. A transfer is a run of text frames, each starting with the
// literal "FT," and ending at a line terminator:
//
//	FT,H,<hex: 01 | fileType | chunkCount | size (4 bytes LE) | checksum>
//	FT,P,<chunkIndex>,<totalChunks>,<hex: 02 | payload... | chunkChecksum>
//	FT,L,<hex: 03 | fileName (UTF-8)...>
//	FT,ERR,<reason>
//
// File types: 0x01 JSON, 0x02 CSV, anything else opaque binary.
//
// # Components
//
//   - DecodeHex / DecodeHexStrict: hex field decoding
//   - Checksum: additive modulo-256 checksum
//   - Extractor: pulls complete frames out of a growing text buffer
//   - Receiver: the transfer state machine (idle -> receiving -> idle)
//   - Build*Frame / EncodeTransfer: the robot side, for tests and tooling
//
// # Usage Example
//
//	ex := protocol.NewExtractor(64 * 1024)
//	rx := protocol.NewReceiver(protocol.Options{})
//
//	ex.Feed(fragment)
//	for {
//	    frame, ok, err := ex.Next()
//	    if err != nil {
//	        continue // malformed frame, already consumed
//	    }
//	    if !ok {
//	        break
//	    }
//	    done, err := rx.Handle(frame)
//	    ...
//	}
//
// # Error Handling
//
// Every failure is a *TransferError whose Type names the taxonomy entry
// (InvalidHeader, MissingChunks, ...). Use errors.Is with the Err* sentinels.
// Structural errors abandon the transfer; malformed and unknown frames are
// reported but leave the receiver untouched. A checksum mismatch is never an
// error: the transfer completes and a warning is logged.
//
// # Thread Safety
//
// Extractor and Receiver are not safe for concurrent use. They are driven by
// a single read loop.
package protocol

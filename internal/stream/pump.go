package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const readBufferSize = 4096

// Pump reads r until EOF or cancellation, feeding each read to d. Multi-byte
// characters split across reads are carried to the next read. Cancellation
// is checked once per read; a transfer in flight is abandoned in place.
//
// Pump returns nil on EOF and ctx.Err() when cancelled.
func Pump(ctx context.Context, r io.Reader, d *Dispatcher) error {
	buf := make([]byte, readBufferSize)
	var carry []byte

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			complete, tail := splitIncompleteRune(data)
			carry = append([]byte(nil), tail...)
			if len(complete) > 0 {
				d.Feed(strings.ToValidUTF8(string(complete), "\uFFFD"))
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if len(carry) > 0 {
					d.Feed(strings.ToValidUTF8(string(carry), "\uFFFD"))
				}
				d.Flush()
				return nil
			}
			return fmt.Errorf("read failed: %w", readErr)
		}
	}
}

// splitIncompleteRune separates a trailing, possibly incomplete UTF-8
// sequence from the rest of data
func splitIncompleteRune(data []byte) (complete, tail []byte) {
	// A rune is at most 4 bytes, so only the last 3 can start an incomplete one
	for i := 1; i <= 3 && i <= len(data); i++ {
		c := data[len(data)-i]
		if !utf8.RuneStart(c) {
			continue
		}
		if !utf8.FullRune(data[len(data)-i:]) {
			return data[:len(data)-i], data[len(data)-i:]
		}
		break
	}
	return data, nil
}

package protocol

import (
	"encoding/hex"
	"strings"
)

// DecodeHex converts a hex digit string into bytes, two digits per byte.
//
// Decoding is lenient: each pair is parsed on its own from its leading hex
// digits, so "1z" yields 0x01 and a pair with no hex digit at all yields
// 0x00. A trailing odd digit becomes a byte of its own. The robot firmware
// has always been decoded this way and garbage in gives garbage out; use
// DecodeHexStrict to reject malformed input instead.
func DecodeHex(text string) []byte {
	out := make([]byte, 0, (len(text)+1)/2)
	for i := 0; i < len(text); i += 2 {
		end := i + 2
		if end > len(text) {
			end = len(text)
		}
		out = append(out, parsePair(text[i:end]))
	}
	return out
}

func parsePair(pair string) byte {
	var v byte
	for j := 0; j < len(pair); j++ {
		d, ok := hexDigit(pair[j])
		if !ok {
			break
		}
		v = v<<4 | d
	}
	return v
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// DecodeHexStrict converts a hex digit string into bytes and fails with
// ErrMalformedHex on odd length or any non-hex digit.
func DecodeHexStrict(text string) ([]byte, error) {
	b, err := hex.DecodeString(text)
	if err != nil {
		return nil, &TransferError{Type: ErrTypeMalformedHex, Message: quoteShort(text), Err: err}
	}
	return b, nil
}

// EncodeHex renders bytes as upper-case hex, the way the robot sends them
func EncodeHex(data []byte) string {
	return strings.ToUpper(hex.EncodeToString(data))
}

func quoteShort(s string) string {
	if len(s) > 32 {
		s = s[:32] + "..."
	}
	return "\"" + s + "\""
}

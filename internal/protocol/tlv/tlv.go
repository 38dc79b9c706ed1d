// Package tlv decodes the nested tag/length/value convention the channel
// payloads share: a varint tag carrying field number and wire type,
// followed by a varint value, a length-prefixed byte string, or a fixed
// 32-bit word.
package tlv

import (
	"errors"
	"fmt"

	"github.com/openg2/g2ctl/internal/protocol/varint"
)

var (
	ErrTruncated       = errors.New("tlv: truncated field")
	ErrUnsupportedWire = errors.New("tlv: unsupported wire type")
)

// Wire types observed on the link. Fixed32 carries the IEEE-754 floats of
// the display-region table.
const (
	WireVarint  = 0
	WireBytes   = 2
	WireFixed32 = 5
)

// Field is one decoded field.
type Field struct {
	Number  int
	Wire    int
	Varint  uint64 // WireVarint
	Fixed32 uint32 // WireFixed32
	Bytes   []byte // WireBytes
}

// Parse walks payload and returns its fields in order. Payloads produced
// by the channel encoders always parse; device-originated payloads may
// not, so errors are data, not bugs.
func Parse(payload []byte) ([]Field, error) {
	var fields []Field
	for len(payload) > 0 {
		tag, n, err := varint.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: tag", ErrTruncated)
		}
		payload = payload[n:]

		f := Field{Number: int(tag >> 3), Wire: int(tag & 7)}
		switch f.Wire {
		case WireVarint:
			v, n, err := varint.Decode(payload)
			if err != nil {
				return nil, fmt.Errorf("%w: field %d varint", ErrTruncated, f.Number)
			}
			f.Varint = v
			payload = payload[n:]
		case WireBytes:
			l, n, err := varint.Decode(payload)
			if err != nil || uint64(len(payload)-n) < l {
				return nil, fmt.Errorf("%w: field %d length", ErrTruncated, f.Number)
			}
			f.Bytes = append([]byte(nil), payload[n:n+int(l)]...)
			payload = payload[n+int(l):]
		case WireFixed32:
			if len(payload) < 4 {
				return nil, fmt.Errorf("%w: field %d fixed32", ErrTruncated, f.Number)
			}
			f.Fixed32 = uint32(payload[0]) | uint32(payload[1])<<8 | uint32(payload[2])<<16 | uint32(payload[3])<<24
			payload = payload[4:]
		default:
			return nil, fmt.Errorf("%w: field %d wire %d", ErrUnsupportedWire, f.Number, f.Wire)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// GetField returns the first field with the given number.
func GetField(fields []Field, number int) (Field, bool) {
	for _, f := range fields {
		if f.Number == number {
			return f, true
		}
	}
	return Field{}, false
}

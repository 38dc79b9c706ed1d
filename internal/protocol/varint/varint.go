// Package varint implements the base-128 variable-length integer encoding
// used inside channel payloads.
package varint

import "errors"

// MaxLen is the longest valid encoding of a 64-bit value.
const MaxLen = 10

var ErrMalformed = errors.New("varint: malformed encoding")

// Append appends the encoding of v to dst and returns the extended slice.
func Append(dst []byte, v uint64) []byte {
	for v > 0x7F {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// Encode returns the encoding of v.
func Encode(v uint64) []byte {
	return Append(make([]byte, 0, MaxLen), v)
}

// Decode reads one varint from b and returns the value and the number of
// bytes consumed. It fails with ErrMalformed if the continuation bit never
// terminates within MaxLen bytes or the input is truncated.
func Decode(b []byte) (uint64, int, error) {
	var v uint64
	for i, c := range b {
		if i >= MaxLen {
			return 0, 0, ErrMalformed
		}
		v |= uint64(c&0x7F) << (7 * i)
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
	}
	return 0, 0, ErrMalformed
}

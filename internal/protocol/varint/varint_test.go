package varint

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 0x7F, 0x80, 0xFF, 0x100, 0x3FFF, 0x4000,
		1_700_000_000, math.MaxUint32, math.MaxUint64,
	}
	for _, v := range values {
		enc := Encode(v)
		got, n, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(Encode(%d)): %v", v, err)
		}
		if got != v {
			t.Fatalf("round trip %d: got %d", v, got)
		}
		if n != len(enc) {
			t.Fatalf("value %d: consumed %d of %d bytes", v, n, len(enc))
		}
	}
}

func TestEncodingIsMinimal(t *testing.T) {
	tests := []struct {
		v    uint64
		want int
	}{
		{0, 1}, {0x7F, 1}, {0x80, 2}, {0x3FFF, 2}, {0x4000, 3},
		{math.MaxUint64, 10},
	}
	for _, tc := range tests {
		if got := len(Encode(tc.v)); got != tc.want {
			t.Fatalf("len(Encode(%d)) = %d, want %d", tc.v, got, tc.want)
		}
	}
}

func TestKnownEncodings(t *testing.T) {
	if !bytes.Equal(Encode(300), []byte{0xAC, 0x02}) {
		t.Fatalf("Encode(300) = %x", Encode(300))
	}
	// The handshake transaction id is itself a varint-coded field value.
	txid := []byte{0xE8, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}
	v, n, err := Decode(txid)
	if err != nil || n != len(txid) {
		t.Fatalf("Decode(txid): v=%d n=%d err=%v", v, n, err)
	}
	if !bytes.Equal(Encode(v), txid) {
		t.Fatalf("txid does not round trip: %x", Encode(v))
	}
}

func TestDecodeMalformed(t *testing.T) {
	runaway := bytes.Repeat([]byte{0xFF}, 11)
	if _, _, err := Decode(runaway); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for runaway continuation, got %v", err)
	}
	truncated := []byte{0x80, 0x80}
	if _, _, err := Decode(truncated); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for truncated input, got %v", err)
	}
	if _, _, err := Decode(nil); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for empty input, got %v", err)
	}
}

func TestAppendExtends(t *testing.T) {
	dst := []byte{0x22}
	dst = Append(dst, 5)
	if !bytes.Equal(dst, []byte{0x22, 0x05}) {
		t.Fatalf("Append = %x", dst)
	}
}

// Package packet implements the shared G2 frame codec: an 8-byte header,
// a payload of at most 253 bytes, and a little-endian CRC-16/CCITT trailer
// computed over the payload only.
package packet

import (
	"encoding/binary"
	"errors"

	"github.com/openg2/g2ctl/internal/protocol/checksum"
)

const (
	magic0 = 0xAA
	magic1 = 0x21

	// HeaderLen is the fixed frame header size.
	HeaderLen = 8
	// TrailerLen is the CRC-16 trailer size.
	TrailerLen = 2
	// MaxPayload is bounded by the single-byte length field, which stores
	// len(payload)+TrailerLen.
	MaxPayload = 0xFF - TrailerLen
)

var (
	ErrPayloadTooLarge  = errors.New("packet: payload too large")
	ErrShortFrame       = errors.New("packet: short frame")
	ErrBadMagic         = errors.New("packet: bad magic")
	ErrLengthMismatch   = errors.New("packet: length field mismatch")
	ErrChecksumMismatch = errors.New("packet: checksum mismatch")
)

// Service is a 2-byte channel routing address.
type Service struct {
	Hi, Lo byte
}

var (
	// ServiceEvenAI routes the AI question/answer card channel.
	ServiceEvenAI = Service{0x07, 0x20}
	// ServiceTeleprompter routes teleprompter content and settings.
	ServiceTeleprompter = Service{0x06, 0x20}
	// ServiceDisplayConfig routes the teleprompter render-region table.
	ServiceDisplayConfig = Service{0x0E, 0x20}
	// ServiceControl and ServiceControlExt carry the handshake plus the
	// sync trigger and companion heartbeat messages.
	ServiceControl    = Service{0x80, 0x00}
	ServiceControlExt = Service{0x80, 0x20}
	// ServiceNotifyCtrl and ServiceNotifyData carry the notification
	// file transfer.
	ServiceNotifyCtrl = Service{0xC4, 0x00}
	ServiceNotifyData = Service{0xC5, 0x00}
)

// Packet is one outgoing frame. Immutable once built; written to the
// transport exactly once.
type Packet struct {
	Sequence    byte
	TotalCount  byte
	PacketIndex byte
	Service     Service
	Payload     []byte
}

// WireSize returns the marshaled frame length.
func (p Packet) WireSize() int {
	return HeaderLen + len(p.Payload) + TrailerLen
}

// Marshal produces the full frame bytes.
func (p Packet) Marshal() ([]byte, error) {
	if len(p.Payload) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	buf := make([]byte, 0, p.WireSize())
	buf = append(buf,
		magic0, magic1,
		p.Sequence,
		byte(len(p.Payload)+TrailerLen),
		p.TotalCount, p.PacketIndex,
		p.Service.Hi, p.Service.Lo,
	)
	buf = append(buf, p.Payload...)
	crc := checksum.CRC16CCITT(p.Payload)
	buf = binary.LittleEndian.AppendUint16(buf, crc)
	return buf, nil
}

// Parse decodes and validates one frame. Provided for symmetry with Marshal;
// the outbound path never consumes it, but device notifications share the
// same framing.
func Parse(b []byte) (Packet, error) {
	if len(b) < HeaderLen+TrailerLen {
		return Packet{}, ErrShortFrame
	}
	if b[0] != magic0 || b[1] != magic1 {
		return Packet{}, ErrBadMagic
	}
	payloadLen := int(b[3]) - TrailerLen
	if payloadLen < 0 || len(b) != HeaderLen+payloadLen+TrailerLen {
		return Packet{}, ErrLengthMismatch
	}
	payload := make([]byte, payloadLen)
	copy(payload, b[HeaderLen:HeaderLen+payloadLen])
	want := binary.LittleEndian.Uint16(b[len(b)-TrailerLen:])
	if checksum.CRC16CCITT(payload) != want {
		return Packet{}, ErrChecksumMismatch
	}
	return Packet{
		Sequence:    b[2],
		TotalCount:  b[4],
		PacketIndex: b[5],
		Service:     Service{Hi: b[6], Lo: b[7]},
		Payload:     payload,
	}, nil
}

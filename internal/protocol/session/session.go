// Package session owns the per-connection protocol state: the frame
// sequence counter, the shared message/magic id counter, and the endpoint
// identity. Channel encoders consume counters only through a Session, which
// also gates channel traffic on handshake completion.
package session

import (
	"errors"

	"github.com/openg2/g2ctl/internal/protocol/packet"
)

var ErrNotAuthenticated = errors.New("session: not authenticated")

// Endpoint identifies one physical glasses unit.
type Endpoint string

const (
	EndpointLeft  Endpoint = "left"
	EndpointRight Endpoint = "right"
)

// initialMessageID is where the firmware expects the message index series
// to start; the handshake consumes the first ids.
const initialMessageID = 0x0C

// Session is the mutable per-connection state. It is not safe for
// concurrent use; callers serialize per endpoint.
type Session struct {
	endpoint Endpoint
	seq      uint8
	msgID    uint8
	authed   bool
}

func New(endpoint Endpoint) *Session {
	return &Session{endpoint: endpoint, msgID: initialMessageID}
}

func (s *Session) Endpoint() Endpoint { return s.endpoint }

// NextSequence consumes the next frame sequence number. The series starts
// at 1 and wraps mod 256.
func (s *Session) NextSequence() byte {
	s.seq++
	return s.seq
}

// NextMessageID consumes the next message/magic id. The series starts at
// 0x0C and wraps mod 256.
func (s *Session) NextMessageID() byte {
	id := s.msgID
	s.msgID++
	return id
}

// MarkAuthenticated records handshake completion; channel frames are
// rejected until then.
func (s *Session) MarkAuthenticated() { s.authed = true }

func (s *Session) Authenticated() bool { return s.authed }

// Reset re-arms the session for re-authentication. Counters restart; the
// endpoint identity is kept.
func (s *Session) Reset() {
	s.seq = 0
	s.msgID = initialMessageID
	s.authed = false
}

// Frame builds a single-packet frame for svc, consuming the next sequence
// number.
func (s *Session) Frame(svc packet.Service, payload []byte) (packet.Packet, error) {
	return s.FrameN(svc, payload, 1, 1)
}

// FrameN builds one fragment of a multi-packet transfer. The caller supplies
// consistent total/index values across the fragment set.
func (s *Session) FrameN(svc packet.Service, payload []byte, total, index byte) (packet.Packet, error) {
	if !s.authed && !handshakeService(svc) {
		return packet.Packet{}, ErrNotAuthenticated
	}
	if len(payload) > packet.MaxPayload {
		return packet.Packet{}, packet.ErrPayloadTooLarge
	}
	return packet.Packet{
		Sequence:    s.NextSequence(),
		TotalCount:  total,
		PacketIndex: index,
		Service:     svc,
		Payload:     payload,
	}, nil
}

func handshakeService(svc packet.Service) bool {
	return svc == packet.ServiceControl || svc == packet.ServiceControlExt
}

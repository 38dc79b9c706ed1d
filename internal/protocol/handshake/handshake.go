// Package handshake builds the fixed authentication sequence each eye
// requires before its channels accept commands. Channels are
// per-physical-endpoint; left and right authenticate independently.
package handshake

import (
	"time"

	"github.com/openg2/g2ctl/internal/protocol/packet"
	"github.com/openg2/g2ctl/internal/protocol/session"
	"github.com/openg2/g2ctl/internal/protocol/varint"
)

// Suggested pacing. The firmware needs settle time between writes; the
// encoders do not enforce it, the caller must.
const (
	// PacketSettle is the minimum delay between handshake writes.
	PacketSettle = 100 * time.Millisecond
	// FinalSettle is the delay after the last handshake write before the
	// channels are usable.
	FinalSettle = 500 * time.Millisecond
)

// transactionID is the fixed value embedded in both time-sync packets.
// On the wire it is a varint-coded field value.
var transactionID = [10]byte{0xE8, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}

// TransactionID returns the fixed 10-byte handshake transaction id.
func TransactionID() [10]byte { return transactionID }

// Capability report modes requested from the firmware.
const (
	reportModeFull    = 0x02
	reportModeSummary = 0x01
)

// Packets builds the full 7-packet handshake used by the AI and
// teleprompter channels. The timestamp is refreshed on every run; message
// indices are consumed from the session counter.
func Packets(s *session.Session, now time.Time) ([]packet.Packet, error) {
	ts := uint64(now.Unix())

	q1 := s.NextMessageID()
	// The firmware's capability report consumes the next index.
	s.NextMessageID()
	r1 := s.NextMessageID()
	t1 := s.NextMessageID()
	q2 := s.NextMessageID()
	q3 := s.NextMessageID()
	r2 := s.NextMessageID()
	t2 := s.NextMessageID()

	steps := []struct {
		svc     packet.Service
		payload []byte
	}{
		{packet.ServiceControl, capabilityQuery(q1)},
		{packet.ServiceControlExt, capabilityReport(r1, reportModeFull)},
		{packet.ServiceControlExt, timeSync(t1, ts)},
		{packet.ServiceControl, capabilityQuery(q2)},
		{packet.ServiceControl, capabilityQuery(q3)},
		{packet.ServiceControlExt, capabilityReport(r2, reportModeSummary)},
		{packet.ServiceControlExt, timeSync(t2, ts)},
	}

	packets := make([]packet.Packet, 0, len(steps))
	for _, step := range steps {
		p, err := s.Frame(step.svc, step.payload)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
	}
	return packets, nil
}

// CompanionPackets builds the short 3-packet handshake the notification
// flow runs on each eye.
func CompanionPackets(s *session.Session, now time.Time) ([]packet.Packet, error) {
	ts := uint64(now.Unix())

	q := s.NextMessageID()
	r := s.NextMessageID()
	tID := s.NextMessageID()

	steps := []struct {
		svc     packet.Service
		payload []byte
	}{
		{packet.ServiceControl, capabilityQuery(q)},
		{packet.ServiceControlExt, capabilityReport(r, reportModeFull)},
		{packet.ServiceControlExt, timeSync(tID, ts)},
	}

	packets := make([]packet.Packet, 0, len(steps))
	for _, step := range steps {
		p, err := s.Frame(step.svc, step.payload)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
	}
	return packets, nil
}

// capabilityQuery asks for the capability set: type 4, then a nested
// (version=1, mask=4) query message.
func capabilityQuery(id byte) []byte {
	payload := []byte{0x08, 0x04, 0x10}
	payload = varint.Append(payload, uint64(id))
	return append(payload, 0x1A, 0x04, 0x08, 0x01, 0x10, 0x04)
}

// capabilityReport requests a capability response: type 5, then a nested
// single-byte mode message.
func capabilityReport(id, mode byte) []byte {
	payload := []byte{0x08, 0x05, 0x10}
	payload = varint.Append(payload, uint64(id))
	return append(payload, 0x22, 0x02, 0x08, mode)
}

// timeSync embeds the current Unix timestamp and the fixed transaction id:
// type 128, then a nested (timestamp, transaction) message.
func timeSync(id byte, ts uint64) []byte {
	inner := varint.Append([]byte{0x08}, ts)
	inner = append(inner, 0x10)
	inner = append(inner, transactionID[:]...)

	payload := []byte{0x08, 0x80, 0x01, 0x10}
	payload = varint.Append(payload, uint64(id))
	payload = append(payload, 0x82, 0x08)
	payload = varint.Append(payload, uint64(len(inner)))
	return append(payload, inner...)
}

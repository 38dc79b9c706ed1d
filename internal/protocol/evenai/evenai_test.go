package evenai

import (
	"bytes"
	"errors"
	"testing"

	"github.com/openg2/g2ctl/internal/protocol/packet"
	"github.com/openg2/g2ctl/internal/protocol/session"
)

func authedSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(session.EndpointRight)
	s.MarkAuthenticated()
	return s
}

func TestEnterPayloadLayout(t *testing.T) {
	s := authedSession(t)
	p, err := Enter(s)
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	want := []byte{0x08, 0x01, 0x10, 0x0C, 0x1A, 0x02, 0x08, 0x02}
	if !bytes.Equal(p.Payload, want) {
		t.Fatalf("enter payload %x, want %x", p.Payload, want)
	}
	if p.Service != packet.ServiceEvenAI {
		t.Fatalf("service %+v", p.Service)
	}
}

func TestExitTogglesStatus(t *testing.T) {
	s := authedSession(t)
	p, err := Exit(s)
	if err != nil {
		t.Fatalf("exit: %v", err)
	}
	if p.Payload[len(p.Payload)-1] != 0x03 {
		t.Fatalf("exit status byte %#x, want 0x03", p.Payload[len(p.Payload)-1])
	}
}

func TestAskWrapsTextInNestedInfo(t *testing.T) {
	s := authedSession(t)
	p, err := Ask(s, "Hi")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	want := []byte{
		0x08, 0x03, // ASK
		0x10, 0x0C, // message id
		0x2A, 0x0A, // askInfo, 10 bytes
		0x08, 0x00, 0x10, 0x00, 0x18, 0x00, // zeroed flags
		0x22, 0x02, 'H', 'i',
	}
	if !bytes.Equal(p.Payload, want) {
		t.Fatalf("ask payload %x, want %x", p.Payload, want)
	}
}

func TestReplyUsesReplyInfoField(t *testing.T) {
	s := authedSession(t)
	p, err := Reply(s, "Hello")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if p.Payload[0] != 0x08 || p.Payload[1] != 0x05 {
		t.Fatalf("command bytes %x", p.Payload[:2])
	}
	if p.Payload[4] != 0x3A {
		t.Fatalf("info tag %#x, want 0x3A", p.Payload[4])
	}
	if !bytes.Contains(p.Payload, []byte("Hello")) {
		t.Fatalf("reply text missing: %x", p.Payload)
	}
}

func TestSequenceAndMessageIDAdvancePerCall(t *testing.T) {
	s := authedSession(t)
	enter, err := Enter(s)
	if err != nil {
		t.Fatalf("enter: %v", err)
	}
	ask, err := Ask(s, "Hi")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	reply, err := Reply(s, "Hello")
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if ask.Sequence != enter.Sequence+1 || reply.Sequence != ask.Sequence+1 {
		t.Fatalf("sequences %d,%d,%d are not consecutive", enter.Sequence, ask.Sequence, reply.Sequence)
	}
	// Message ids advance with the sequence counter: 0x0C, 0x0D, 0x0E.
	if ask.Payload[3] != 0x0D || reply.Payload[3] != 0x0E {
		t.Fatalf("message ids %#x,%#x", ask.Payload[3], reply.Payload[3])
	}
}

func TestEncodersRequireAuthentication(t *testing.T) {
	s := session.New(session.EndpointRight)
	if _, err := Enter(s); !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

package device

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openg2/g2ctl/internal/protocol/handshake"
	"github.com/openg2/g2ctl/internal/protocol/notify"
	"github.com/openg2/g2ctl/internal/protocol/packet"
	"github.com/openg2/g2ctl/internal/protocol/session"
	"github.com/openg2/g2ctl/internal/testutil/testlog"
	"github.com/openg2/g2ctl/internal/textpage"
	"github.com/openg2/g2ctl/internal/transport"
)

type write struct {
	char  transport.Characteristic
	frame []byte
}

type fakeTransport struct {
	mu     sync.Mutex
	writes []write
	subs   []transport.Characteristic
	failAt int // 1-based write index to fail on; 0 disables
}

func (f *fakeTransport) Write(_ context.Context, char transport.Characteristic, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt > 0 && len(f.writes)+1 == f.failAt {
		return errors.New("radio gone")
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	f.writes = append(f.writes, write{char: char, frame: frame})
	return nil
}

func (f *fakeTransport) Subscribe(_ context.Context, char transport.Characteristic, _ transport.NotifyFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, char)
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) frames(t *testing.T, char transport.Characteristic) []packet.Packet {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []packet.Packet
	for _, w := range f.writes {
		if w.char != char {
			continue
		}
		p, err := packet.Parse(w.frame)
		if err != nil {
			t.Fatalf("unparseable frame %x: %v", w.frame, err)
		}
		out = append(out, p)
	}
	return out
}

var testPacing = Pacing{WriteInterval: time.Microsecond, SettleScale: 0}

func newTestController(t *testing.T) (*Controller, *fakeTransport, *fakeTransport) {
	t.Helper()
	testlog.Start(t)
	left := &fakeTransport{}
	right := &fakeTransport{}
	c := New(left, right, Options{Pacing: testPacing, Logger: zerolog.Nop()})
	return c, left, right
}

func TestAuthenticateSendsFullHandshake(t *testing.T) {
	c, _, right := newTestController(t)
	if err := c.Authenticate(context.Background(), session.EndpointRight); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	frames := right.frames(t, transport.CharWrite)
	if len(frames) != 7 {
		t.Fatalf("handshake wrote %d frames, want 7", len(frames))
	}
	for i, p := range frames {
		if p.Sequence != byte(i+1) {
			t.Fatalf("frame %d sequence %d", i, p.Sequence)
		}
		if p.TotalCount != 1 || p.PacketIndex != 1 {
			t.Fatalf("frame %d total/index %d/%d", i, p.TotalCount, p.PacketIndex)
		}
	}
	txid := handshake.TransactionID()
	for _, i := range []int{2, 6} {
		if !strings.Contains(string(frames[i].Payload), string(txid[:])) {
			t.Fatalf("frame %d missing transaction id: %x", i, frames[i].Payload)
		}
	}
}

func TestShowQARequiresAuthentication(t *testing.T) {
	c, _, _ := newTestController(t)
	err := c.ShowQA(context.Background(), session.EndpointRight, "q", "a")
	if !errors.Is(err, session.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestShowQASendsEnterAskReply(t *testing.T) {
	c, _, right := newTestController(t)
	ctx := context.Background()
	if err := c.Authenticate(ctx, session.EndpointRight); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := c.ShowQA(ctx, session.EndpointRight, "What is 2+2?", "Four."); err != nil {
		t.Fatalf("show qa: %v", err)
	}

	frames := right.frames(t, transport.CharWrite)[7:]
	if len(frames) != 3 {
		t.Fatalf("qa wrote %d frames, want 3", len(frames))
	}
	for i, wantCmd := range []byte{0x01, 0x03, 0x05} {
		if frames[i].Service != packet.ServiceEvenAI {
			t.Fatalf("frame %d service %+v", i, frames[i].Service)
		}
		if frames[i].Payload[1] != wantCmd {
			t.Fatalf("frame %d command %#x, want %#x", i, frames[i].Payload[1], wantCmd)
		}
	}
	if !strings.Contains(string(frames[1].Payload), "What is 2+2?") {
		t.Fatalf("question missing: %x", frames[1].Payload)
	}
}

func TestShowQATruncatesOversizedTexts(t *testing.T) {
	c, _, right := newTestController(t)
	ctx := context.Background()
	if err := c.Authenticate(ctx, session.EndpointRight); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	long := strings.Repeat("q", 500)
	if err := c.ShowQA(ctx, session.EndpointRight, long, long); err != nil {
		t.Fatalf("show qa: %v", err)
	}
	frames := right.frames(t, transport.CharWrite)[7:]
	ask, reply := frames[1], frames[2]
	if !strings.Contains(string(ask.Payload), "...") || !strings.Contains(string(reply.Payload), "...") {
		t.Fatalf("truncation ellipsis missing")
	}
	if len(ask.Payload) > packet.MaxPayload || len(reply.Payload) > packet.MaxPayload {
		t.Fatalf("payloads still oversized: %d / %d", len(ask.Payload), len(reply.Payload))
	}
}

func TestRunTeleprompterInterleavesControlMessages(t *testing.T) {
	c, left, _ := newTestController(t)
	ctx := context.Background()
	if err := c.Authenticate(ctx, session.EndpointLeft); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if err := c.RunTeleprompter(ctx, session.EndpointLeft, "hello world", textpage.Latin, true); err != nil {
		t.Fatalf("teleprompter: %v", err)
	}

	frames := left.frames(t, transport.CharWrite)[7:]
	// config + init + 10 pages + marker + 2 pages + sync + 2 pages
	if len(frames) != 18 {
		t.Fatalf("teleprompter wrote %d frames, want 18", len(frames))
	}
	if frames[0].Service != packet.ServiceDisplayConfig {
		t.Fatalf("first frame service %+v", frames[0].Service)
	}
	if frames[1].Service != packet.ServiceTeleprompter || frames[1].Payload[1] != 0x01 {
		t.Fatalf("init frame %x", frames[1].Payload)
	}
	for i := 2; i < 12; i++ {
		if frames[i].Payload[1] != 0x03 {
			t.Fatalf("frame %d is not a content page: %x", i, frames[i].Payload[:2])
		}
	}
	if frames[12].Payload[1] != 0xFF || frames[12].Payload[2] != 0x01 {
		t.Fatalf("marker out of place: %x", frames[12].Payload[:3])
	}
	if frames[15].Service != packet.ServiceControl || frames[15].Payload[1] != 0x0E {
		t.Fatalf("sync out of place: %+v %x", frames[15].Service, frames[15].Payload[:2])
	}
}

func TestPushNotificationFlowsAndHeartbeat(t *testing.T) {
	c, left, right := newTestController(t)
	ctx := context.Background()
	if err := c.Authenticate(ctx, session.EndpointRight); err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	n := notify.Notification{Title: "Ping", Message: "hello", AppIdentifier: "dev.g2ctl", DisplayName: "g2ctl"}
	if err := c.PushNotification(ctx, n, time.Unix(1750000000, 0)); err != nil {
		t.Fatalf("push: %v", err)
	}

	transfer := right.frames(t, transport.CharNotifWrite)
	if len(transfer) != 4 {
		t.Fatalf("transfer wrote %d frames, want 4", len(transfer))
	}
	wantServices := []packet.Service{
		packet.ServiceNotifyCtrl, packet.ServiceNotifyCtrl,
		packet.ServiceNotifyData, packet.ServiceNotifyCtrl,
	}
	for i, svc := range wantServices {
		if transfer[i].Service != svc {
			t.Fatalf("transfer frame %d service %+v, want %+v", i, transfer[i].Service, svc)
		}
	}
	if !strings.Contains(string(transfer[2].Payload), `"android_notification"`) {
		t.Fatalf("data frame missing record: %s", transfer[2].Payload)
	}

	// The companion eye gets the short handshake, then the heartbeat.
	companion := left.frames(t, transport.CharWrite)
	if len(companion) != 4 {
		t.Fatalf("companion wrote %d frames, want 4", len(companion))
	}
	heartbeat := companion[3]
	if heartbeat.Service != packet.ServiceControlExt || heartbeat.Payload[1] != 0x0E {
		t.Fatalf("heartbeat frame %+v %x", heartbeat.Service, heartbeat.Payload)
	}
}

func TestWriteErrorsPropagate(t *testing.T) {
	left := &fakeTransport{}
	right := &fakeTransport{failAt: 3}
	c := New(left, right, Options{Pacing: testPacing, Logger: zerolog.Nop()})
	err := c.Authenticate(context.Background(), session.EndpointRight)
	if err == nil || !strings.Contains(err.Error(), "radio gone") {
		t.Fatalf("expected wrapped write error, got %v", err)
	}
}

func TestUnknownEndpoint(t *testing.T) {
	right := &fakeTransport{}
	c := New(nil, right, Options{Pacing: testPacing, Logger: zerolog.Nop()})
	if err := c.Authenticate(context.Background(), session.EndpointLeft); !errors.Is(err, ErrUnknownEndpoint) {
		t.Fatalf("expected ErrUnknownEndpoint, got %v", err)
	}
}

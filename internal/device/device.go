// Package device orchestrates the protocol against connected glasses: it
// owns one session and transport per eye, paces writes, and sequences the
// per-channel flows (handshake, Q&A card, teleprompter run, notification
// push).
package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openg2/g2ctl/internal/observability"
	"github.com/openg2/g2ctl/internal/protocol/evenai"
	"github.com/openg2/g2ctl/internal/protocol/handshake"
	"github.com/openg2/g2ctl/internal/protocol/notify"
	"github.com/openg2/g2ctl/internal/protocol/packet"
	"github.com/openg2/g2ctl/internal/protocol/session"
	"github.com/openg2/g2ctl/internal/protocol/teleprompter"
	"github.com/openg2/g2ctl/internal/textpage"
	"github.com/openg2/g2ctl/internal/transport"
)

// ErrUnknownEndpoint is returned when an operation names an eye the
// controller was not built with.
var ErrUnknownEndpoint = errors.New("device: unknown endpoint")

// Pacing spaces consecutive BLE writes. The per-step settle delays on top
// of this come from the channel encoders, scaled by SettleScale; a zero
// scale skips them entirely.
type Pacing struct {
	WriteInterval time.Duration
	SettleScale   float64
}

// DefaultPacing keeps writes a radio-buffer-safe distance apart.
var DefaultPacing = Pacing{WriteInterval: 20 * time.Millisecond, SettleScale: 1.0}

// Event describes one frame written to a device, for observers such as the
// websocket event feed.
type Event struct {
	Endpoint session.Endpoint
	Service  packet.Service
	Sequence uint8
	Bytes    int
}

type eye struct {
	session *session.Session
	tr      transport.Transport
	pacer   *transport.Pacer
}

// Controller drives one pair of glasses.
type Controller struct {
	eyes   map[session.Endpoint]*eye
	pacing Pacing
	log    zerolog.Logger
	onSend func(Event)
}

// Options configures a Controller.
type Options struct {
	Pacing Pacing
	Logger zerolog.Logger
	// OnSend, when set, is invoked after every successful write.
	OnSend func(Event)
}

// New builds a Controller over per-eye transports. A nil transport leaves
// that eye unavailable; operations touching it fail with
// ErrUnknownEndpoint.
func New(left, right transport.Transport, opts Options) *Controller {
	if opts.Pacing == (Pacing{}) {
		opts.Pacing = DefaultPacing
	}
	c := &Controller{
		eyes:   make(map[session.Endpoint]*eye),
		pacing: opts.Pacing,
		log:    opts.Logger,
		onSend: opts.OnSend,
	}
	if left != nil {
		c.eyes[session.EndpointLeft] = &eye{
			session: session.New(session.EndpointLeft),
			tr:      left,
			pacer:   transport.NewPacer(opts.Pacing.WriteInterval),
		}
	}
	if right != nil {
		c.eyes[session.EndpointRight] = &eye{
			session: session.New(session.EndpointRight),
			tr:      right,
			pacer:   transport.NewPacer(opts.Pacing.WriteInterval),
		}
	}
	return c
}

func (c *Controller) eyeFor(ep session.Endpoint) (*eye, error) {
	e, ok := c.eyes[ep]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, ep)
	}
	return e, nil
}

// send paces, writes one packet, and sleeps the settle delay.
func (c *Controller) send(ctx context.Context, e *eye, char transport.Characteristic, p packet.Packet, settle time.Duration) error {
	frame, err := p.Marshal()
	if err != nil {
		return err
	}
	if err := e.pacer.Wait(ctx); err != nil {
		return err
	}

	service := fmt.Sprintf("%02x%02x", p.Service.Hi, p.Service.Lo)
	err = e.tr.Write(ctx, char, frame)
	observability.RecordBLEWrite(string(e.session.Endpoint()), service, len(frame), err == nil)
	if err != nil {
		return fmt.Errorf("device: write %s seq %d: %w", service, p.Sequence, err)
	}

	c.log.Debug().
		Str("endpoint", string(e.session.Endpoint())).
		Str("service", service).
		Uint8("seq", p.Sequence).
		Int("bytes", len(frame)).
		Msg("frame written")
	if c.onSend != nil {
		c.onSend(Event{
			Endpoint: e.session.Endpoint(),
			Service:  p.Service,
			Sequence: p.Sequence,
			Bytes:    len(frame),
		})
	}
	return sleepCtx(ctx, c.scaled(settle))
}

func (c *Controller) scaled(d time.Duration) time.Duration {
	return time.Duration(float64(d) * c.pacing.SettleScale)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers the device's notification characteristics. The
// firmware stalls its UART stream until both are subscribed, even though
// this controller discards the inbound payloads.
func (c *Controller) Subscribe(ctx context.Context, ep session.Endpoint) error {
	e, err := c.eyeFor(ep)
	if err != nil {
		return err
	}
	if err := e.tr.Subscribe(ctx, transport.CharNotify, transport.DiscardNotifications); err != nil {
		return err
	}
	// The notification pair is absent on some firmware revisions.
	if err := e.tr.Subscribe(ctx, transport.CharNotifNotify, transport.DiscardNotifications); err != nil {
		c.log.Debug().Err(err).Str("endpoint", string(ep)).Msg("notification characteristic unavailable")
	}
	return nil
}

// Authenticate runs the full handshake on one eye, unlocking every channel
// on it. Re-running resets the session counters first.
func (c *Controller) Authenticate(ctx context.Context, ep session.Endpoint) error {
	e, err := c.eyeFor(ep)
	if err != nil {
		return err
	}
	e.session.Reset()

	packets, err := handshake.Packets(e.session, time.Now())
	if err != nil {
		observability.RecordHandshake(string(ep), false)
		return err
	}
	for _, p := range packets {
		if err := c.send(ctx, e, transport.CharWrite, p, handshake.PacketSettle); err != nil {
			observability.RecordHandshake(string(ep), false)
			return err
		}
	}
	if err := sleepCtx(ctx, c.scaled(handshake.FinalSettle-handshake.PacketSettle)); err != nil {
		return err
	}
	e.session.MarkAuthenticated()
	observability.RecordHandshake(string(ep), true)
	c.log.Info().Str("endpoint", string(ep)).Msg("authenticated")
	return nil
}

// ensureCompanion runs the short companion handshake on an eye that only
// needs to accept control-service traffic, leaving it authenticated.
func (c *Controller) ensureCompanion(ctx context.Context, e *eye) error {
	if e.session.Authenticated() {
		return nil
	}
	packets, err := handshake.CompanionPackets(e.session, time.Now())
	if err != nil {
		return err
	}
	for _, p := range packets {
		if err := c.send(ctx, e, transport.CharWrite, p, handshake.PacketSettle); err != nil {
			return err
		}
	}
	e.session.MarkAuthenticated()
	c.log.Info().Str("endpoint", string(e.session.Endpoint())).Msg("companion authenticated")
	return nil
}

// ShowQA renders a question/answer pair on the Even AI card. Texts beyond
// the card budgets are truncated with an ellipsis before encoding.
func (c *Controller) ShowQA(ctx context.Context, ep session.Endpoint, question, answer string) error {
	e, err := c.eyeFor(ep)
	if err != nil {
		return err
	}

	question = truncateForDisplay(question, evenai.QuestionBudget)
	answer = truncateForDisplay(answer, evenai.AnswerBudget)

	enter, err := evenai.Enter(e.session)
	if err != nil {
		return err
	}
	if err := c.send(ctx, e, transport.CharWrite, enter, evenai.EnterSettle); err != nil {
		return err
	}
	ask, err := evenai.Ask(e.session, question)
	if err != nil {
		return err
	}
	if err := c.send(ctx, e, transport.CharWrite, ask, evenai.AskSettle); err != nil {
		return err
	}
	reply, err := evenai.Reply(e.session, answer)
	if err != nil {
		return err
	}
	return c.send(ctx, e, transport.CharWrite, reply, 0)
}

// DismissQA leaves the Even AI card.
func (c *Controller) DismissQA(ctx context.Context, ep session.Endpoint) error {
	e, err := c.eyeFor(ep)
	if err != nil {
		return err
	}
	exit, err := evenai.Exit(e.session)
	if err != nil {
		return err
	}
	return c.send(ctx, e, transport.CharWrite, exit, 0)
}

// RunTeleprompter paginates text and streams it to one eye: display config,
// stream init, the first ten pages, the mid-stream marker, two more pages,
// the render sync, then the remainder. The firmware depends on this exact
// interleaving.
func (c *Controller) RunTeleprompter(ctx context.Context, ep session.Endpoint, text string, profile textpage.Profile, manualMode bool) error {
	e, err := c.eyeFor(ep)
	if err != nil {
		return err
	}

	pages, err := textpage.Format(text, profile, teleprompter.MaxPageText)
	if err != nil {
		return err
	}
	totalLines := len(strings.Split(strings.ReplaceAll(text, `\n`, "\n"), "\n"))

	cfg, err := teleprompter.DisplayConfig(e.session)
	if err != nil {
		return err
	}
	if err := c.send(ctx, e, transport.CharWrite, cfg, teleprompter.ConfigSettle); err != nil {
		return err
	}
	init, err := teleprompter.Init(e.session, totalLines, manualMode)
	if err != nil {
		return err
	}
	if err := c.send(ctx, e, transport.CharWrite, init, teleprompter.InitSettle); err != nil {
		return err
	}

	sendPages := func(from, to int) error {
		for i := from; i < to && i < len(pages); i++ {
			p, err := teleprompter.ContentPage(e.session, i, pages[i].Render())
			if err != nil {
				return err
			}
			if err := c.send(ctx, e, transport.CharWrite, p, teleprompter.PageSettle); err != nil {
				return err
			}
		}
		return nil
	}

	if err := sendPages(0, 10); err != nil {
		return err
	}
	marker, err := teleprompter.Marker(e.session)
	if err != nil {
		return err
	}
	if err := c.send(ctx, e, transport.CharWrite, marker, teleprompter.PageSettle); err != nil {
		return err
	}
	if err := sendPages(10, 12); err != nil {
		return err
	}
	sync, err := teleprompter.Sync(e.session)
	if err != nil {
		return err
	}
	if err := c.send(ctx, e, transport.CharWrite, sync, teleprompter.PageSettle); err != nil {
		return err
	}
	if err := sendPages(12, len(pages)); err != nil {
		return err
	}

	c.log.Info().
		Str("endpoint", string(ep)).
		Int("pages", len(pages)).
		Int("lines", totalLines).
		Msg("teleprompter stream complete")
	return nil
}

// PushNotification delivers one notification: the record transfer goes to
// the primary eye, then the companion eye receives the commit heartbeat.
func (c *Controller) PushNotification(ctx context.Context, n notify.Notification, now time.Time) error {
	primary, err := c.eyeFor(session.EndpointRight)
	if err != nil {
		return err
	}

	record, truncated, err := notify.BuildRecord(n, now)
	if err != nil {
		return err
	}
	if truncated {
		c.log.Warn().Str("title", n.Title).Int("bytes", len(record)).Msg("notification truncated to fit")
	}

	fileCheck, err := notify.FileCheckPacket(primary.session, record)
	if err != nil {
		return err
	}
	if err := c.send(ctx, primary, transport.CharNotifWrite, fileCheck, notify.FileCheckSettle); err != nil {
		return err
	}
	start, err := notify.StartPacket(primary.session)
	if err != nil {
		return err
	}
	if err := c.send(ctx, primary, transport.CharNotifWrite, start, notify.StartSettle); err != nil {
		return err
	}
	data, err := notify.DataPacket(primary.session, record)
	if err != nil {
		return err
	}
	if err := c.send(ctx, primary, transport.CharNotifWrite, data, notify.DataSettle); err != nil {
		return err
	}
	end, err := notify.EndPacket(primary.session)
	if err != nil {
		return err
	}
	if err := c.send(ctx, primary, transport.CharNotifWrite, end, notify.EndSettle); err != nil {
		return err
	}

	companion, err := c.eyeFor(session.EndpointLeft)
	if err != nil {
		return err
	}
	if err := c.ensureCompanion(ctx, companion); err != nil {
		return err
	}
	heartbeat, err := notify.HeartbeatPacket(companion.session)
	if err != nil {
		return err
	}
	return c.send(ctx, companion, transport.CharWrite, heartbeat, 0)
}

// Close releases both transports.
func (c *Controller) Close() error {
	var firstErr error
	for _, e := range c.eyes {
		if err := e.tr.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// truncateForDisplay shortens text to at most maxBytes of UTF-8 with an
// ellipsis, cutting whole runes.
func truncateForDisplay(text string, maxBytes int) string {
	if len(text) <= maxBytes {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && len(string(runes)) > maxBytes-3 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

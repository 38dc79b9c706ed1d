// Package teleprompter encodes the scrolling teleprompter channel: a fixed
// display configuration, a stream initializer, numbered content pages, and
// the marker/sync control messages interleaved into a page stream.
package teleprompter

import (
	"time"

	"github.com/openg2/g2ctl/internal/protocol/packet"
	"github.com/openg2/g2ctl/internal/protocol/session"
	"github.com/openg2/g2ctl/internal/protocol/varint"
)

// Suggested settle delays after the corresponding write.
const (
	ConfigSettle = 300 * time.Millisecond
	InitSettle   = 500 * time.Millisecond
	PageSettle   = 100 * time.Millisecond
)

// Content height scaling is linear, anchored at a 140-line reference
// document the firmware renders at height 2665.
const (
	referenceLines  = 140
	referenceHeight = 2665
)

// Fixed render settings sent with every stream initializer.
const (
	totalHeight = 267  // field 4
	lineHeight  = 230  // field 6
	viewport    = 1294 // field 7
	fontSize    = 5    // field 8
)

// linesPerPage is fixed by the device's page table; pagination pads every
// page to exactly this many lines.
const linesPerPage = 10

// MaxPageText bounds the rendered page body so a content-page payload with
// its nested framing stays inside a single frame.
const MaxPageText = 238

// Message types on the teleprompter services.
const (
	typeInit          = 0x01
	typeDisplayConfig = 0x02
	typeContent       = 0x03
	typeSync          = 0x0E
	typeMarker        = 0xFF
)

// displayRegions is the render-region table sent with DisplayConfig,
// constant across all sessions. Five regions, each a nested message of
// (index, offset varint, two fixed32 floats, two zeroed flags); floats are
// little-endian IEEE-754 y/x coordinates. The trailing 0x18 0x00 closes the
// table.
var displayRegions = []byte{
	0x08, 0x01,
	// region 2: offset 10000, y=1191.0, x=0.0
	0x12, 0x13, 0x08, 0x02, 0x10, 0x90, 0x4E, 0x1D, 0x00, 0xE0, 0x94, 0x44,
	0x25, 0x00, 0x00, 0x00, 0x00, 0x28, 0x00, 0x30, 0x00,
	// region 3: offsets 13/15, y=1130.0, x=0.0
	0x12, 0x13, 0x08, 0x03, 0x10, 0x0D, 0x0F, 0x1D, 0x00, 0x40, 0x8D, 0x44,
	0x25, 0x00, 0x00, 0x00, 0x00, 0x28, 0x00, 0x30, 0x00,
	// region 4: y=68.0, x=0.0
	0x12, 0x12, 0x08, 0x04, 0x10, 0x00, 0x1D, 0x00, 0x00, 0x88, 0x42,
	0x25, 0x00, 0x00, 0x00, 0x00, 0x28, 0x00, 0x30, 0x00,
	// region 5: y=73.0, x=81.0
	0x12, 0x12, 0x08, 0x05, 0x10, 0x00, 0x1D, 0x00, 0x00, 0x92, 0x42,
	0x25, 0x00, 0x00, 0xA2, 0x42, 0x28, 0x00, 0x30, 0x00,
	// region 6: y=99.0, x=98.0
	0x12, 0x12, 0x08, 0x06, 0x10, 0x00, 0x1D, 0x00, 0x00, 0xC6, 0x42,
	0x25, 0x00, 0x00, 0xC4, 0x42, 0x28, 0x00, 0x30, 0x00,
	0x18, 0x00,
}

// DisplayConfig emits the render-region table on the display-config
// service. Must precede Init.
func DisplayConfig(s *session.Session) (packet.Packet, error) {
	payload := []byte{0x08, typeDisplayConfig, 0x10}
	payload = varint.Append(payload, uint64(s.NextMessageID()))
	payload = append(payload, 0x22)
	payload = varint.Append(payload, uint64(len(displayRegions)))
	payload = append(payload, displayRegions...)
	return s.Frame(packet.ServiceDisplayConfig, payload)
}

// ContentHeight returns the scaled scroll height for a document of
// totalLines lines.
func ContentHeight(totalLines int) int {
	h := totalLines * referenceHeight / referenceLines
	if h < 1 {
		h = 1
	}
	return h
}

// Init starts a teleprompter stream sized for totalLines. Manual mode
// leaves scrolling to the wearer; otherwise the firmware auto-scrolls.
func Init(s *session.Session, totalLines int, manualMode bool) (packet.Packet, error) {
	mode := byte(0x01)
	if manualMode {
		mode = 0x00
	}

	display := []byte{0x08, 0x01, 0x10, 0x00, 0x18, 0x00, 0x20}
	display = varint.Append(display, totalHeight)
	display = append(display, 0x28)
	display = varint.Append(display, uint64(ContentHeight(totalLines)))
	display = append(display, 0x30)
	display = varint.Append(display, lineHeight)
	display = append(display, 0x38)
	display = varint.Append(display, viewport)
	display = append(display, 0x40, fontSize, 0x48, mode)

	settings := []byte{0x08, 0x01, 0x12}
	settings = varint.Append(settings, uint64(len(display)))
	settings = append(settings, display...)

	payload := []byte{0x08, typeInit, 0x10}
	payload = varint.Append(payload, uint64(s.NextMessageID()))
	payload = append(payload, 0x1A)
	payload = varint.Append(payload, uint64(len(settings)))
	payload = append(payload, settings...)
	return s.Frame(packet.ServiceTeleprompter, payload)
}

// ContentPage emits one page of wrapped text. Pages are 0-indexed on the
// wire; the firmware requires the leading newline.
func ContentPage(s *session.Session, pageIndex int, text string) (packet.Packet, error) {
	body := []byte("\n" + text)

	inner := varint.Append([]byte{0x08}, uint64(pageIndex))
	inner = append(inner, 0x10, linesPerPage, 0x1A)
	inner = varint.Append(inner, uint64(len(body)))
	inner = append(inner, body...)

	payload := []byte{0x08, typeContent, 0x10}
	payload = varint.Append(payload, uint64(s.NextMessageID()))
	payload = append(payload, 0x2A)
	payload = varint.Append(payload, uint64(len(inner)))
	payload = append(payload, inner...)
	return s.Frame(packet.ServiceTeleprompter, payload)
}

// Marker emits the fixed mid-stream checkpoint the firmware expects between
// the first ten pages and the rest.
func Marker(s *session.Session) (packet.Packet, error) {
	payload := varint.Append([]byte{0x08}, typeMarker)
	payload = append(payload, 0x10)
	payload = varint.Append(payload, uint64(s.NextMessageID()))
	payload = append(payload, 0x6A, 0x04, 0x08, 0x00, 0x10, 0x06)
	return s.Frame(packet.ServiceTeleprompter, payload)
}

// Sync emits the trigger that makes the device render the buffered pages.
// The payload tail is an empty message.
func Sync(s *session.Session) (packet.Packet, error) {
	payload := []byte{0x08, typeSync, 0x10}
	payload = varint.Append(payload, uint64(s.NextMessageID()))
	payload = append(payload, 0x6A, 0x00)
	return s.Frame(packet.ServiceControl, payload)
}

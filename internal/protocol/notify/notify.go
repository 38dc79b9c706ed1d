// Package notify encodes the push-notification channel: a four-step file
// transfer (FILE_CHECK, START, DATA, END) on the primary eye followed by a
// heartbeat to the companion eye.
package notify

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/openg2/g2ctl/internal/protocol/checksum"
	"github.com/openg2/g2ctl/internal/protocol/packet"
	"github.com/openg2/g2ctl/internal/protocol/session"
	"github.com/openg2/g2ctl/internal/protocol/varint"
)

// MaxPayloadBytes is the single-BLE-packet ceiling for the DATA step.
// Records are truncated to fit BEFORE the FILE_CHECK step, so the declared
// size and checksum cover the final bytes.
const MaxPayloadBytes = 234

// Suggested settle delays after the corresponding write.
const (
	FileCheckSettle = 300 * time.Millisecond
	StartSettle     = 100 * time.Millisecond
	DataSettle      = 300 * time.Millisecond
	EndSettle       = 200 * time.Millisecond
)

const (
	fileCheckMagic   = 0x100
	filenameFieldLen = 80
	// The firmware treats the notification record as a whitelist file drop.
	transferFilename = "user/notify_whitelist.json"

	markerStart = 0x01
	markerEnd   = 0x02
)

const ellipsis = "..."

// Notification is the semantic input for one push notification.
type Notification struct {
	Title         string
	Subtitle      string
	Message       string
	AppIdentifier string
	DisplayName   string
}

// record mirrors the firmware's expected JSON field order.
type record struct {
	MsgID         int    `json:"msg_id"`
	Action        int    `json:"action"`
	AppIdentifier string `json:"app_identifier"`
	Title         string `json:"title"`
	Subtitle      string `json:"subtitle"`
	Message       string `json:"message"`
	TimeS         int64  `json:"time_s"`
	Date          string `json:"date"`
	DisplayName   string `json:"display_name"`
}

type envelope struct {
	AndroidNotification record `json:"android_notification"`
}

// BuildRecord serializes n, truncating to MaxPayloadBytes with priority
// title > subtitle > message: the message is cut first, the subtitle next,
// and the title only as a last resort, with an ellipsis when space allows.
// Reports whether truncation occurred.
func BuildRecord(n Notification, now time.Time) ([]byte, bool, error) {
	ts := now.Unix()
	marshal := func(title, subtitle, message string) ([]byte, error) {
		return json.Marshal(envelope{AndroidNotification: record{
			MsgID:         int(10000 + ts%10000),
			Action:        0,
			AppIdentifier: n.AppIdentifier,
			Title:         title,
			Subtitle:      subtitle,
			Message:       message,
			TimeS:         ts,
			Date:          now.Format("20060102T150405"),
			DisplayName:   n.DisplayName,
		}})
	}

	full, err := marshal(n.Title, n.Subtitle, n.Message)
	if err != nil {
		return nil, false, fmt.Errorf("notify: marshal record: %w", err)
	}
	if len(full) <= MaxPayloadBytes {
		return full, false, nil
	}

	empty, err := marshal("", "", "")
	if err != nil {
		return nil, false, fmt.Errorf("notify: marshal record: %w", err)
	}
	available := MaxPayloadBytes - len(empty)
	if available < 0 {
		available = 0
	}

	title, subtitle, message := n.Title, n.Subtitle, n.Message
	if encodedLen(title)+encodedLen(subtitle) > available {
		message = ""
		if encodedLen(title)+len(ellipsis) > available {
			subtitle = ""
			title = truncateField(title, available)
		} else {
			subtitle = truncateField(subtitle, available-encodedLen(title))
		}
	} else {
		message = truncateField(message, available-encodedLen(title)-encodedLen(subtitle))
	}

	out, err := marshal(title, subtitle, message)
	if err != nil {
		return nil, false, fmt.Errorf("notify: marshal record: %w", err)
	}
	return out, true, nil
}

// encodedLen is the number of bytes text occupies inside a JSON string:
// quotes, HTML-unsafe characters, and control characters all serialize
// wider than their raw form, and the budget has to count the wire bytes.
func encodedLen(text string) int {
	b, err := json.Marshal(text)
	if err != nil {
		return len(text)
	}
	return len(b) - 2
}

// truncateField shortens text until its serialized form fits in max bytes,
// cutting whole runes and appending an ellipsis when space allows.
func truncateField(text string, max int) string {
	if max < 0 {
		max = 0
	}
	if encodedLen(text) <= max {
		return text
	}
	if max <= len(ellipsis) {
		return trimToEncoded(text, max)
	}
	return trimToEncoded(text, max-len(ellipsis)) + ellipsis
}

// trimToEncoded drops trailing runes until the serialized form of text
// fits in max bytes.
func trimToEncoded(text string, max int) string {
	for text != "" && encodedLen(text) > max {
		_, size := utf8.DecodeLastRuneInString(text)
		text = text[:len(text)-size]
	}
	return text
}

// FileCheck describes the upcoming transfer. The bit packing is a
// firmware-defined contract: size is the byte count shifted into the high
// bytes, and the CRC straddles the checksum word and the extra byte.
type FileCheck struct {
	Size     uint32
	Checksum uint32
	Extra    byte
}

// FileCheckFor derives the transfer header fields for data.
func FileCheckFor(data []byte) FileCheck {
	crc := checksum.CRC32C(data)
	return FileCheck{
		Size:     uint32(len(data)) * 256,
		Checksum: crc << 8,
		Extra:    byte(crc >> 24),
	}
}

// FileCheckPacket declares the incoming record on the control service.
func FileCheckPacket(s *session.Session, data []byte) (packet.Packet, error) {
	fc := FileCheckFor(data)
	payload := make([]byte, 0, 13+filenameFieldLen)
	payload = binary.LittleEndian.AppendUint32(payload, fileCheckMagic)
	payload = binary.LittleEndian.AppendUint32(payload, fc.Size)
	payload = binary.LittleEndian.AppendUint32(payload, fc.Checksum)
	payload = append(payload, fc.Extra)
	payload = append(payload, transferFilename...)
	payload = append(payload, make([]byte, filenameFieldLen-len(transferFilename))...)
	return s.Frame(packet.ServiceNotifyCtrl, payload)
}

// StartPacket opens the transfer window.
func StartPacket(s *session.Session) (packet.Packet, error) {
	return s.Frame(packet.ServiceNotifyCtrl, []byte{markerStart})
}

// DataPacket carries the serialized record in a single packet. Records over
// MaxPayloadBytes must be truncated (BuildRecord does this) before the
// FILE_CHECK step; handing one in here is an error.
func DataPacket(s *session.Session, record []byte) (packet.Packet, error) {
	if len(record) > MaxPayloadBytes {
		return packet.Packet{}, fmt.Errorf("%w: notification record is %d bytes", packet.ErrPayloadTooLarge, len(record))
	}
	return s.FrameN(packet.ServiceNotifyData, record, 1, 1)
}

// EndPacket closes the transfer window.
func EndPacket(s *session.Session) (packet.Packet, error) {
	return s.Frame(packet.ServiceNotifyCtrl, []byte{markerEnd})
}

// HeartbeatPacket signals transfer completion to the companion eye. It must
// be sequenced after EndPacket, not parallelized; the firmware treats it as
// the commit.
func HeartbeatPacket(companion *session.Session) (packet.Packet, error) {
	payload := []byte{0x08, 0x0E, 0x10}
	payload = varint.Append(payload, uint64(companion.NextMessageID()))
	payload = append(payload, 0x6A, 0x00)
	return companion.Frame(packet.ServiceControlExt, payload)
}

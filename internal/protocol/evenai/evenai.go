// Package evenai encodes the AI question/answer card channel. Enter must be
// sent (and settle) before Ask/Reply will render.
package evenai

import (
	"time"

	"github.com/openg2/g2ctl/internal/protocol/packet"
	"github.com/openg2/g2ctl/internal/protocol/session"
	"github.com/openg2/g2ctl/internal/protocol/varint"
)

// Device-safe UTF-8 byte budgets for card text. The encoders do not
// truncate; callers shorten text before encoding.
const (
	QuestionBudget = 150
	AnswerBudget   = 200
)

// Suggested settle delays after the corresponding write.
const (
	EnterSettle = 300 * time.Millisecond
	AskSettle   = 500 * time.Millisecond
)

// Command ids on the AI service.
const (
	cmdCtrl  = 0x01
	cmdAsk   = 0x03
	cmdReply = 0x05
)

// Mode control statuses.
const (
	statusEnter = 0x02
	statusExit  = 0x03
)

// Field tags within the command message.
const (
	tagCommand   = 0x08 // varint
	tagMessageID = 0x10 // varint
	tagCtrl      = 0x1A // nested message
	tagAskInfo   = 0x2A // nested message
	tagReplyInfo = 0x3A // nested message
	tagText      = 0x22 // length-delimited text inside ask/reply info
)

// Enter switches the card into AI mode. Required before Ask or Reply.
func Enter(s *session.Session) (packet.Packet, error) {
	return ctrl(s, statusEnter)
}

// Exit leaves AI mode.
func Exit(s *session.Session) (packet.Packet, error) {
	return ctrl(s, statusExit)
}

func ctrl(s *session.Session, status byte) (packet.Packet, error) {
	payload := []byte{tagCommand, cmdCtrl, tagMessageID}
	payload = varint.Append(payload, uint64(s.NextMessageID()))
	payload = append(payload, tagCtrl, 0x02, 0x08, status)
	return s.Frame(packet.ServiceEvenAI, payload)
}

// Ask renders question text on the card.
func Ask(s *session.Session, text string) (packet.Packet, error) {
	return card(s, cmdAsk, tagAskInfo, text)
}

// Reply renders answer text on the card.
func Reply(s *session.Session, text string) (packet.Packet, error) {
	return card(s, cmdReply, tagReplyInfo, text)
}

func card(s *session.Session, cmd, infoTag byte, text string) (packet.Packet, error) {
	// cmdCnt, streamEnable, and textMode stay zeroed for one-shot cards.
	info := []byte{0x08, 0x00, 0x10, 0x00, 0x18, 0x00, tagText}
	info = varint.Append(info, uint64(len(text)))
	info = append(info, text...)

	payload := []byte{tagCommand, cmd, tagMessageID}
	payload = varint.Append(payload, uint64(s.NextMessageID()))
	payload = append(payload, infoTag)
	payload = varint.Append(payload, uint64(len(info)))
	payload = append(payload, info...)
	return s.Frame(packet.ServiceEvenAI, payload)
}

// Package transport defines the byte-buffer interface the protocol layer
// writes through, plus the GATT characteristic addresses of the device's
// UART-style service. Implementations own connection management; callers
// own framing and pacing.
package transport

import (
	"context"
	"errors"
)

// Characteristic identifies a GATT characteristic by its full UUID.
type Characteristic string

// The device exposes one proprietary service with a UART pair for protocol
// traffic and a second pair dedicated to notification file transfers.
const (
	CharWrite       Characteristic = "00002760-08c2-11e1-9073-0e8ac72e5401"
	CharNotify      Characteristic = "00002760-08c2-11e1-9073-0e8ac72e5402"
	CharNotifWrite  Characteristic = "00002760-08c2-11e1-9073-0e8ac72e7401"
	CharNotifNotify Characteristic = "00002760-08c2-11e1-9073-0e8ac72e7402"
)

// ErrNotConnected is returned by writes after Close or before a connection
// is established.
var ErrNotConnected = errors.New("transport: not connected")

// NotifyFunc receives the raw value of one device notification.
type NotifyFunc func(data []byte)

// Transport pushes byte buffers to one connected endpoint. Implementations
// must be safe for concurrent use; the protocol layer serializes per-device
// ordering itself.
type Transport interface {
	// Write sends data to the characteristic, without response.
	Write(ctx context.Context, char Characteristic, data []byte) error

	// Subscribe registers fn for notifications from the characteristic.
	// The subscription lives until Close.
	Subscribe(ctx context.Context, char Characteristic, fn NotifyFunc) error

	// Close tears down the connection. Subsequent writes fail with
	// ErrNotConnected.
	Close() error
}

// DiscardNotifications is a NotifyFunc for characteristics that must be
// subscribed for the firmware to talk, but whose payloads the caller
// ignores.
func DiscardNotifications([]byte) {}

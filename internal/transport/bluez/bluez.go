// Package bluez implements transport.Transport over the BlueZ D-Bus API.
// It assumes the device is already paired; it connects, waits for GATT
// service resolution, and resolves the protocol characteristics by UUID.
package bluez

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"github.com/openg2/g2ctl/internal/transport"
)

const (
	busName            = "org.bluez"
	deviceInterface    = "org.bluez.Device1"
	charInterface      = "org.bluez.GattCharacteristic1"
	propsInterface     = "org.freedesktop.DBus.Properties"
	objectManagerIface = "org.freedesktop.DBus.ObjectManager"
)

const (
	resolvePollInterval = 500 * time.Millisecond
	resolveTimeout      = 20 * time.Second
)

// ErrCharacteristicNotFound means the device's GATT database is missing one
// of the protocol characteristics, usually because service discovery has
// not finished or the wrong device was addressed.
var ErrCharacteristicNotFound = errors.New("bluez: characteristic not found")

// Client is one connected GATT device on the system bus.
type Client struct {
	conn       *dbus.Conn
	devicePath dbus.ObjectPath
	log        zerolog.Logger

	mu     sync.Mutex
	chars  map[transport.Characteristic]dbus.ObjectPath
	subs   map[dbus.ObjectPath]transport.NotifyFunc
	closed bool

	signals chan *dbus.Signal
	done    chan struct{}
}

// Connect dials the system bus, connects the device at address through the
// named adapter (e.g. "hci0"), waits for service resolution, and resolves
// the protocol characteristics.
func Connect(ctx context.Context, adapter, address string, log zerolog.Logger) (*Client, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("bluez: system bus: %w", err)
	}

	c := &Client{
		conn:       conn,
		devicePath: devicePath(adapter, address),
		log:        log.With().Str("device", address).Logger(),
		chars:      make(map[transport.Characteristic]dbus.ObjectPath),
		subs:       make(map[dbus.ObjectPath]transport.NotifyFunc),
		signals:    make(chan *dbus.Signal, 64),
		done:       make(chan struct{}),
	}

	if err := c.connectDevice(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if err := c.resolveCharacteristics(); err != nil {
		conn.Close()
		return nil, err
	}

	conn.Signal(c.signals)
	go c.dispatch()

	c.log.Info().Str("path", string(c.devicePath)).Msg("gatt connection established")
	return c, nil
}

// devicePath maps an adapter name and MAC address to the BlueZ object path.
func devicePath(adapter, address string) dbus.ObjectPath {
	mac := strings.ReplaceAll(strings.ToUpper(address), ":", "_")
	return dbus.ObjectPath("/org/bluez/" + adapter + "/dev_" + mac)
}

func (c *Client) connectDevice(ctx context.Context) error {
	dev := c.conn.Object(busName, c.devicePath)
	if err := dev.CallWithContext(ctx, deviceInterface+".Connect", 0).Err; err != nil {
		return fmt.Errorf("bluez: connect %s: %w", c.devicePath, err)
	}

	deadline := time.Now().Add(resolveTimeout)
	for {
		var resolved bool
		err := dev.CallWithContext(ctx, propsInterface+".Get", 0, deviceInterface, "ServicesResolved").Store(&resolved)
		if err == nil && resolved {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("bluez: services not resolved on %s", c.devicePath)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(resolvePollInterval):
		}
	}
}

// resolveCharacteristics walks the managed object tree and records the
// object path of every protocol characteristic under this device.
func (c *Client) resolveCharacteristics() error {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	root := c.conn.Object(busName, "/")
	if err := root.Call(objectManagerIface+".GetManagedObjects", 0).Store(&objects); err != nil {
		return fmt.Errorf("bluez: managed objects: %w", err)
	}

	want := map[string]transport.Characteristic{}
	for _, ch := range []transport.Characteristic{
		transport.CharWrite, transport.CharNotify,
		transport.CharNotifWrite, transport.CharNotifNotify,
	} {
		want[strings.ToLower(string(ch))] = ch
	}

	prefix := string(c.devicePath) + "/"
	for path, interfaces := range objects {
		if !strings.HasPrefix(string(path), prefix) {
			continue
		}
		charIface, ok := interfaces[charInterface]
		if !ok {
			continue
		}
		uuidVariant, ok := charIface["UUID"]
		if !ok {
			continue
		}
		uuid, _ := uuidVariant.Value().(string)
		if ch, ok := want[strings.ToLower(uuid)]; ok {
			c.chars[ch] = path
			c.log.Debug().Str("uuid", uuid).Str("path", string(path)).Msg("characteristic resolved")
		}
	}

	// The UART pair is mandatory; the notification pair is absent on some
	// firmware revisions and only checked at use.
	for _, ch := range []transport.Characteristic{transport.CharWrite, transport.CharNotify} {
		if _, ok := c.chars[ch]; !ok {
			return fmt.Errorf("%w: %s", ErrCharacteristicNotFound, ch)
		}
	}
	return nil
}

func (c *Client) charPath(char transport.Characteristic) (dbus.ObjectPath, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", transport.ErrNotConnected
	}
	path, ok := c.chars[char]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrCharacteristicNotFound, char)
	}
	return path, nil
}

// Write sends data as a write-without-response.
func (c *Client) Write(ctx context.Context, char transport.Characteristic, data []byte) error {
	path, err := c.charPath(char)
	if err != nil {
		return err
	}
	options := map[string]dbus.Variant{"type": dbus.MakeVariant("command")}
	obj := c.conn.Object(busName, path)
	if err := obj.CallWithContext(ctx, charInterface+".WriteValue", 0, data, options).Err; err != nil {
		return fmt.Errorf("bluez: write %s: %w", char, err)
	}
	return nil
}

// Subscribe enables notifications on the characteristic and routes value
// changes to fn until Close.
func (c *Client) Subscribe(ctx context.Context, char transport.Characteristic, fn transport.NotifyFunc) error {
	path, err := c.charPath(char)
	if err != nil {
		return err
	}

	if err := c.conn.AddMatchSignalContext(ctx,
		dbus.WithMatchInterface(propsInterface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchObjectPath(path),
	); err != nil {
		return fmt.Errorf("bluez: match signal: %w", err)
	}

	obj := c.conn.Object(busName, path)
	if err := obj.CallWithContext(ctx, charInterface+".StartNotify", 0).Err; err != nil {
		return fmt.Errorf("bluez: start notify %s: %w", char, err)
	}

	c.mu.Lock()
	c.subs[path] = fn
	c.mu.Unlock()
	return nil
}

// dispatch fans PropertiesChanged signals out to subscribers.
func (c *Client) dispatch() {
	for {
		select {
		case <-c.done:
			return
		case sig, ok := <-c.signals:
			if !ok {
				return
			}
			if sig.Name != propsInterface+".PropertiesChanged" || len(sig.Body) < 2 {
				continue
			}
			c.mu.Lock()
			fn := c.subs[sig.Path]
			c.mu.Unlock()
			if fn == nil {
				continue
			}
			changed, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				continue
			}
			if v, ok := changed["Value"]; ok {
				if data, ok := v.Value().([]byte); ok {
					fn(data)
				}
			}
		}
	}
}

// Close stops notifications, disconnects the device, and releases the bus
// connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	paths := make([]dbus.ObjectPath, 0, len(c.subs))
	for path := range c.subs {
		paths = append(paths, path)
	}
	c.mu.Unlock()

	close(c.done)
	for _, path := range paths {
		c.conn.Object(busName, path).Call(charInterface+".StopNotify", 0)
	}
	dev := c.conn.Object(busName, c.devicePath)
	if err := dev.Call(deviceInterface+".Disconnect", 0).Err; err != nil {
		c.log.Warn().Err(err).Msg("device disconnect failed")
	}
	return c.conn.Close()
}

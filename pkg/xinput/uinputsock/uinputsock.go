// Package uinputsock is the alternate xinput.Injector backend: it packs
// mouse/button/scroll events into a small fixed binary struct and writes
// them to a configured Unix-domain socket, for deployments that bridge
// into a uinput virtual device from a separate privileged process rather
// than talking to the X server directly. cmd/selkies-core dials this
// backend when a uinput socket path is configured.
package uinputsock

import (
	"encoding/binary"
	"fmt"
	"net"
)

// eventType mirrors a minimal Linux input_event-style type field.
const (
	eventMove   = 1
	eventButton = 2
	eventScroll = 3
)

// wireEvent is the fixed 9-byte frame written to the socket:
// [type uint8, a int32, b int32].
type wireEvent struct {
	Type byte
	A    int32
	B    int32
}

func (e wireEvent) marshal() []byte {
	buf := make([]byte, 9)
	buf[0] = e.Type
	binary.BigEndian.PutUint32(buf[1:5], uint32(e.A))
	binary.BigEndian.PutUint32(buf[5:9], uint32(e.B))
	return buf
}

// Injector writes packed mouse events to a Unix-domain socket. Keyboard
// events are not supported over this transport in the original deployment
// (the uinput bridge only virtualizes a mouse), so KeyDown/KeyUp return an
// error rather than silently doing nothing.
type Injector struct {
	conn net.Conn
}

// Dial connects to the uinput bridge's Unix-domain socket at path.
func Dial(path string) (*Injector, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial uinput socket %s: %w", path, err)
	}
	return &Injector{conn: conn}, nil
}

func (i *Injector) Close() error { return i.conn.Close() }

func (i *Injector) KeyDown(keysym uint32) error {
	return fmt.Errorf("uinputsock: keyboard injection not supported over this transport")
}

func (i *Injector) KeyUp(keysym uint32) error {
	return fmt.Errorf("uinputsock: keyboard injection not supported over this transport")
}

func (i *Injector) MoveAbsolute(x, y int) error {
	_, err := i.conn.Write(wireEvent{Type: eventMove, A: int32(x), B: int32(y)}.marshal())
	return err
}

func (i *Injector) MoveRelative(dx, dy int) error {
	_, err := i.conn.Write(wireEvent{Type: eventMove, A: int32(dx), B: int32(dy)}.marshal())
	return err
}

func (i *Injector) Button(button int, down bool) error {
	state := int32(0)
	if down {
		state = 1
	}
	_, err := i.conn.Write(wireEvent{Type: eventButton, A: int32(button), B: state}.marshal())
	return err
}

func (i *Injector) Scroll(direction int, magnitude int) error {
	_, err := i.conn.Write(wireEvent{Type: eventScroll, A: int32(direction), B: int32(magnitude)}.marshal())
	return err
}

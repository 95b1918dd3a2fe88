package gamepad

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/selkies-project/selkies-streamer-core/pkg/logger"
)

// configFrameSize is the fixed byte length of the initial configuration
// frame a connecting client receives: a 255-byte name field, two uint16
// counts, a 512-entry uint16 button map, and a 64-entry uint8 axis map.
const configFrameSize = 255 + 2 + 2 + 512*2 + 64

// eventFrameSize is the fixed byte length of one joystick event frame.
const eventFrameSize = 8

const (
	eventTypeButton = 1
	eventTypeAxis   = 2
)

// ErrClientGone indicates a write to a disconnected gamepad client;
// isolated to that one client, never fatal to the session.
type ErrClientGone struct{ Index int }

func (e *ErrClientGone) Error() string { return fmt.Sprintf("gamepad client %d gone", e.Index) }

// Server listens on one Unix-domain socket per gamepad index (0..3),
// writing the joystick-driver-compatible config frame on connect and then
// streaming event frames per button/axis update.
type Server struct {
	index    int
	mapper   *Mapper
	cfg      Config
	log      *logger.Logger
	listener net.Listener

	mu      sync.Mutex
	clients map[net.Conn]chan []byte

	startTime time.Time
}

// NewServer creates (but does not yet start listening on) a gamepad
// server for the given pad index and socket directory.
func NewServer(log *logger.Logger, socketDir string, index int, cfg Config) *Server {
	return &Server{
		index:     index,
		mapper:    NewMapper(cfg),
		cfg:       cfg,
		log:       log,
		clients:   make(map[net.Conn]chan []byte),
		startTime: time.Now(),
	}
}

func socketPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("js%d", index))
}

// Listen opens the Unix-domain socket and begins accepting clients in a
// background goroutine. Callers must call Close to remove the socket file.
func (s *Server) Listen(dir string) error {
	path := socketPath(dir, s.index)
	_ = os.Remove(path)

	l, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listen gamepad socket %s: %w", path, err)
	}
	s.listener = l

	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.serveClient(conn)
	}
}

func (s *Server) serveClient(conn net.Conn) {
	defer conn.Close()

	if _, err := conn.Write(s.buildConfigFrame()); err != nil {
		s.log.DebugGamepad("failed to write config frame", "pad_index", s.index, "error", err)
		return
	}

	ch := make(chan []byte, 64)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	time.Sleep(500 * time.Millisecond)
	for _, frame := range s.buildInitialEventFrames() {
		if _, err := conn.Write(frame); err != nil {
			return
		}
	}

	// FIFO per-client ordering: a single send goroutine drains this
	// client's buffered channel, so concurrent event sources never
	// interleave writes to one socket out of order.
	for frame := range ch {
		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

func (s *Server) buildConfigFrame() []byte {
	buf := make([]byte, configFrameSize)
	copy(buf[0:255], s.cfg.Name)
	binary.LittleEndian.PutUint16(buf[255:257], uint16(s.cfg.NumButtons))
	binary.LittleEndian.PutUint16(buf[257:259], uint16(s.cfg.NumAxes))

	btnMapOffset := 259
	for i := 0; i < s.cfg.NumButtons && i < 512; i++ {
		binary.LittleEndian.PutUint16(buf[btnMapOffset+i*2:btnMapOffset+i*2+2], uint16(s.mapper.RemapButton(i)))
	}

	axesMapOffset := btnMapOffset + 512*2
	for i := 0; i < s.cfg.NumAxes && i < 64; i++ {
		buf[axesMapOffset+i] = byte(s.mapper.RemapAxis(i))
	}

	return buf
}

func (s *Server) buildInitialEventFrames() [][]byte {
	var frames [][]byte
	for i := 0; i < s.cfg.NumButtons; i++ {
		frames = append(frames, s.encodeEvent(eventTypeButton, i, 0))
	}
	for i := 0; i < s.cfg.NumAxes; i++ {
		frames = append(frames, s.encodeEvent(eventTypeAxis, i, 0))
	}
	return frames
}

func (s *Server) encodeEvent(eventType byte, number int, value int16) []byte {
	buf := make([]byte, eventFrameSize)
	millis := uint32(time.Since(s.startTime).Milliseconds() % 1_000_000_000)
	binary.LittleEndian.PutUint32(buf[0:4], millis)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(value))
	buf[6] = eventType
	buf[7] = byte(number)
	return buf
}

// Button broadcasts a wire button update to the connected client. val is
// a press magnitude in [0, 1]: 1 for a digital press, a partial value
// for an analog trigger. Some wire button indices are remapped to axis
// events by the configured Mapper (see MapButton).
func (s *Server) Button(number int, val float64) error {
	ev := s.mapper.MapButton(number, val)
	return s.broadcast(s.encodeEvent(eventKindToByte(ev.Kind), ev.Number, ev.Value))
}

// Axis broadcasts a wire axis update to the connected client.
func (s *Server) Axis(number int, val float64) error {
	ev := s.mapper.MapAxis(number, val)
	return s.broadcast(s.encodeEvent(eventKindToByte(ev.Kind), ev.Number, ev.Value))
}

func eventKindToByte(k EventKind) byte {
	if k == EventAxis {
		return eventTypeAxis
	}
	return eventTypeButton
}

func (s *Server) broadcast(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.clients) == 0 {
		return &ErrClientGone{Index: s.index}
	}
	for _, ch := range s.clients {
		select {
		case ch <- frame:
		default:
			// Slow client; drop rather than block the whole server.
		}
	}
	return nil
}

// Close stops accepting new clients, closes every connected client, and
// removes the socket file, matching the original server's unlink-on-exit
// behavior.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	addr := s.listener.Addr().String()
	err := s.listener.Close()
	s.mu.Lock()
	for conn, ch := range s.clients {
		close(ch)
		conn.Close()
	}
	s.clients = make(map[net.Conn]chan []byte)
	s.mu.Unlock()
	_ = os.Remove(addr)
	return err
}

package gamepad

import (
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/selkies-project/selkies-streamer-core/pkg/logger"
)

func TestServerSendsConfigThenButtonAndAxisEvents(t *testing.T) {
	dir := t.TempDir()
	s := NewServer(logger.Default(), dir, 0, standardXPadLayout)
	if err := s.Listen(dir); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer s.Close()

	conn, err := net.DialTimeout("unix", filepath.Join(dir, "js0"), time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	cfg := make([]byte, configFrameSize)
	if _, err := readFull(conn, cfg); err != nil {
		t.Fatalf("read config frame: %v", err)
	}
	numButtons := binary.LittleEndian.Uint16(cfg[255:257])
	numAxes := binary.LittleEndian.Uint16(cfg[257:259])
	if int(numButtons) != standardXPadLayout.NumButtons || int(numAxes) != standardXPadLayout.NumAxes {
		t.Fatalf("unexpected config counts: buttons=%d axes=%d", numButtons, numAxes)
	}

	// drain the zeroed initial event frames the server sends after a
	// 500ms pause (one per button, one per axis).
	total := standardXPadLayout.NumButtons + standardXPadLayout.NumAxes
	for i := 0; i < total; i++ {
		frame := make([]byte, eventFrameSize)
		if _, err := readFull(conn, frame); err != nil {
			t.Fatalf("read initial event frame %d: %v", i, err)
		}
	}

	if err := s.Button(0, 1); err != nil {
		t.Fatalf("button: %v", err)
	}
	frame := make([]byte, eventFrameSize)
	if _, err := readFull(conn, frame); err != nil {
		t.Fatalf("read button event: %v", err)
	}
	if frame[6] != eventTypeButton || frame[7] != 0 {
		t.Fatalf("expected button event for index 0, got %+v", frame)
	}

	if err := s.Button(6, 0.75); err != nil {
		t.Fatalf("button: %v", err)
	}
	frame = make([]byte, eventFrameSize)
	if _, err := readFull(conn, frame); err != nil {
		t.Fatalf("read trigger-as-axis event: %v", err)
	}
	if frame[6] != eventTypeAxis || frame[7] != 2 {
		t.Fatalf("expected wire button 6 to surface as axis 2, got %+v", frame)
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestCloseRemovesSocketFile(t *testing.T) {
	dir := t.TempDir()
	s := NewServer(logger.Default(), dir, 1, standardXPadLayout)
	if err := s.Listen(dir); err != nil {
		t.Fatalf("listen: %v", err)
	}
	path := filepath.Join(dir, "js1")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected socket file to exist: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected socket file removed after close, got err=%v", err)
	}
}

package wsframer_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/selkies-project/selkies-streamer-core/pkg/wsframer"
)

func TestEncodeVideoFrameHeader(t *testing.T) {
	payload := []byte{0xAA, 0xBB}
	frame := wsframer.EncodeVideoFrame(0x0102, true, payload)
	want := []byte{0x00, 0x01, 0x01, 0x02, 0xAA, 0xBB}
	if !bytes.Equal(frame, want) {
		t.Errorf("got %x, want %x", frame, want)
	}
}

func TestEncodeVideoFrameDeltaFlag(t *testing.T) {
	frame := wsframer.EncodeVideoFrame(0, false, nil)
	if frame[1] != 0x00 {
		t.Errorf("expected delta flag 0x00, got %x", frame[1])
	}
}

func TestEncodeAudioFrameHeader(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	frame := wsframer.EncodeAudioFrame(payload)
	want := []byte{0x01, 0x00, 0x01, 0x02, 0x03}
	if !bytes.Equal(frame, want) {
		t.Errorf("got %x, want %x", frame, want)
	}
}

func TestFrameIDCounterWraps(t *testing.T) {
	c := &wsframer.FrameIDCounter{}
	for i := 0; i < 65536; i++ {
		c.Next()
	}
	if got := c.Next(); got != 0 {
		t.Errorf("expected counter to wrap to 0 after 65536 increments, got %d", got)
	}
}

func TestFPSCounterComputesOverWindow(t *testing.T) {
	start := time.Unix(0, 0)
	fc := wsframer.NewFPSCounter(start)
	for i := 0; i < 60; i++ {
		fc.Tick(start.Add(time.Duration(i) * 16 * time.Millisecond))
	}
	fc.Tick(start.Add(2100 * time.Millisecond))

	if fc.Current() <= 0 {
		t.Errorf("expected a positive FPS figure after the window elapsed, got %v", fc.Current())
	}
}

func TestEncodeClipboardAndCursor(t *testing.T) {
	if got := wsframer.EncodeClipboard("aGVsbG8="); got != "clipboard,aGVsbG8=" {
		t.Errorf("got %q", got)
	}
	if got := wsframer.EncodeCursor(`{"x":1}`); got != `cursor,{"x":1}` {
		t.Errorf("got %q", got)
	}
}

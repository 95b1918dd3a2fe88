package cursor

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/selkies-project/selkies-streamer-core/pkg/logger"
)

type fakeSource struct {
	events  chan CursorEvent
	fetches int32
	image   CursorImage
}

func (f *fakeSource) Subscribe(ctx context.Context) (<-chan CursorEvent, error) {
	return f.events, nil
}

func (f *fakeSource) FetchImage(serial uint64) (CursorImage, error) {
	atomic.AddInt32(&f.fetches, 1)
	return f.image, nil
}

func solidImage(w, h int, argb uint32) CursorImage {
	pixels := make([]uint32, w*h)
	for i := range pixels {
		pixels[i] = argb
	}
	return CursorImage{Width: w, Height: h, HotspotX: 1, HotspotY: 1, ARGB: pixels}
}

// S5: XFIXES delivers the same serial twice; both events are handled, but
// FetchImage runs once for that serial (the second event is a cache hit).
func TestMonitorCachesBySerial(t *testing.T) {
	src := &fakeSource{events: make(chan CursorEvent, 4), image: solidImage(4, 4, 0xFFAABBCC)}
	m := New(logger.Default(), src, 0, 1.0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received []Message
	done := make(chan struct{})
	go func() {
		_ = m.Run(ctx, 0, func(msg Message) { received = append(received, msg) })
		close(done)
	}()

	src.events <- CursorEvent{Serial: 7}
	src.events <- CursorEvent{Serial: 7}
	cancel()
	<-done

	if got := atomic.LoadInt32(&src.fetches); got != 2 { // initial fetch(0) + first fetch(7)
		t.Fatalf("expected 2 FetchImage calls (initial + first serial 7), got %d", got)
	}
	if m.CacheSize() != 2 {
		t.Fatalf("expected 2 cached serials, got %d", m.CacheSize())
	}
}

func TestAllZeroImageSetsOverrideNone(t *testing.T) {
	m := New(logger.Default(), &fakeSource{}, 0, 1.0)
	msg := m.encode(solidImage(2, 2, 0x00000000))
	if msg.Override != "none" {
		t.Fatalf("expected override=none for all-zero image, got %q", msg.Override)
	}
}

func TestNonZeroImageEncodesPNG(t *testing.T) {
	m := New(logger.Default(), &fakeSource{}, 0, 1.0)
	msg := m.encode(solidImage(4, 4, 0xFFFF0000))
	if msg.Override != "" {
		t.Fatalf("expected no override for a visible cursor, got %q", msg.Override)
	}
	if msg.Image == "" {
		t.Fatal("expected a base64 PNG image")
	}
}

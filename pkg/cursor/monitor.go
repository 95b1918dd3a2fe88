// Package cursor implements the XFIXES-backed cursor monitor: it watches
// the X server's cursor-change notifications, rasterizes each new cursor
// image to PNG, and caches the result by cursor serial so a repeated
// notification for an already-seen cursor never re-encodes.
package cursor

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/selkies-project/selkies-streamer-core/pkg/logger"
)

// CursorImage is the raw cursor bitmap XFIXES hands back: ARGB pixels,
// packed one 32-bit word per pixel, plus the cursor's hotspot.
type CursorImage struct {
	Width, Height int
	HotspotX      int
	HotspotY      int
	// ARGB holds Width*Height 32-bit words, each 0xAARRGGBB.
	ARGB []uint32
}

// CursorEvent is delivered whenever the X server reports the cursor
// changed to a new serial.
type CursorEvent struct {
	Serial uint64
}

// Source abstracts the XFIXES cursor-change subscription and image fetch;
// the X server itself is an external collaborator kept behind this
// interface.
type Source interface {
	Subscribe(ctx context.Context) (<-chan CursorEvent, error)
	FetchImage(serial uint64) (CursorImage, error)
}

// Message is the serialized cursor control-channel payload.
type Message struct {
	Type     string `json:"type"`
	Image    string `json:"image,omitempty"` // base64 PNG
	HotspotX int    `json:"hotspotX"`
	HotspotY int    `json:"hotspotY"`
	Override string `json:"override,omitempty"`
}

// Monitor watches Source for cursor changes and maintains a per-session
// cache of serial -> Message, purely additive for the session's lifetime.
type Monitor struct {
	src    Source
	log    *logger.Logger
	absSize int     // configured absolute cursor size in pixels; 0 means use scale
	scale   float64 // multiplier applied to the cursor's native width when absSize is 0

	mu    sync.Mutex
	cache map[uint64]Message

	running bool
}

// New creates a Monitor. absSize, if non-zero, resizes every cursor image
// to a fixed absSize x absSize square; otherwise images are resized to
// width*scale (preserving aspect ratio).
func New(log *logger.Logger, src Source, absSize int, scale float64) *Monitor {
	if scale <= 0 {
		scale = 1.0
	}
	return &Monitor{src: src, log: log, absSize: absSize, scale: scale, cache: make(map[uint64]Message)}
}

// Run subscribes to cursor-change events and processes them until ctx is
// canceled, invoking onChange for each new (non-cached) cursor message.
// It first fetches and emits the current cursor image before waiting on
// further events, matching the monitor's "fetch initial image" startup
// step.
func (m *Monitor) Run(ctx context.Context, initialSerial uint64, onChange func(Message)) error {
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	events, err := m.src.Subscribe(ctx)
	if err != nil {
		return err
	}

	if msg, ok := m.process(initialSerial); ok {
		onChange(msg)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if msg, fresh := m.process(ev.Serial); fresh {
				onChange(msg)
			} else {
				m.log.DebugCursor("cursor cache hit", "serial", ev.Serial)
			}
		}
	}
}

// process returns the (possibly cached) Message for serial and whether it
// was freshly computed (false on a cache hit — the caller still gets the
// message, so "resend the current cursor" paths work, but callers that
// only want new work should check the bool).
func (m *Monitor) process(serial uint64) (Message, bool) {
	m.mu.Lock()
	if cached, ok := m.cache[serial]; ok {
		m.mu.Unlock()
		return cached, false
	}
	m.mu.Unlock()

	img, err := m.src.FetchImage(serial)
	if err != nil {
		m.log.Warn("fetch cursor image failed", "serial", serial, "error", err)
		return Message{}, false
	}

	msg := m.encode(img)

	m.mu.Lock()
	m.cache[serial] = msg
	m.mu.Unlock()

	return msg, true
}

// encode converts one ARGB cursor image to the wire Message: byte-order
// swap to RGBA, resize, PNG-encode, base64. An all-zero-pixel image is
// flagged with Override "none" so the client hides its cursor entirely.
func (m *Monitor) encode(img CursorImage) Message {
	rgba := argbToRGBA(img)

	if allZero(rgba.Pix) {
		return Message{Type: "cursor", Override: "none"}
	}

	targetW := m.absSize
	if targetW == 0 {
		targetW = int(float64(img.Width) * m.scale)
	}
	if targetW <= 0 {
		targetW = img.Width
	}
	targetH := targetW
	if m.absSize == 0 && img.Width > 0 {
		targetH = targetW * img.Height / img.Width
	}

	resized := resize(rgba, targetW, targetH)

	var buf bytes.Buffer
	_ = png.Encode(&buf, resized)

	scaleFactor := 1.0
	if img.Width > 0 {
		scaleFactor = float64(targetW) / float64(img.Width)
	}

	return Message{
		Type:     "cursor",
		Image:    base64.StdEncoding.EncodeToString(buf.Bytes()),
		HotspotX: int(float64(img.HotspotX) * scaleFactor),
		HotspotY: int(float64(img.HotspotY) * scaleFactor),
	}
}

// argbToRGBA reinterprets each packed ARGB 32-bit word as RGBA bytes at
// shifts 16 (R), 8 (G), 0 (B), 24 (A) -- exactly the byte-order swap the
// original cursor rasterizer performs.
func argbToRGBA(img CursorImage) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for i, word := range img.ARGB {
		r := byte(word >> 16)
		g := byte(word >> 8)
		b := byte(word >> 0)
		a := byte(word >> 24)
		out.Set(i%img.Width, i/img.Width, color.NRGBA{R: r, G: g, B: b, A: a})
	}
	return out
}

func allZero(pix []byte) bool {
	for _, b := range pix {
		if b != 0 {
			return false
		}
	}
	return true
}

// resize performs a simple nearest-neighbor resize, sufficient for small
// cursor bitmaps where the original implementation's resampling filter
// isn't load-bearing to the wire contract.
func resize(src *image.NRGBA, w, h int) *image.NRGBA {
	if w <= 0 || h <= 0 {
		return src
	}
	bounds := src.Bounds()
	sw, sh := bounds.Dx(), bounds.Dy()
	if sw == w && sh == h {
		return src
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		sy := y * sh / h
		for x := 0; x < w; x++ {
			sx := x * sw / w
			dst.Set(x, y, src.At(bounds.Min.X+sx, bounds.Min.Y+sy))
		}
	}
	return dst
}

// Reset clears the cache, used when a session restarts its cursor
// tracking (e.g. after a display resize changes cursor theme scaling).
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[uint64]Message)
}

// CacheSize reports how many distinct serials have been cached, used by
// tests to assert the cache-hit behavior in spec.md S5.
func (m *Monitor) CacheSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cache)
}

// Package wsframer implements the binary and text framing used by the
// WebSocket transport fallback: video/audio binary frame headers, and the
// text control protocol (clipboard/cursor/pipeline/system/ping messages).
package wsframer

import (
	"fmt"
	"sync"
	"time"
)

// Frame type markers for the binary video/audio header.
const (
	frameTypeVideo = 0x00
	frameTypeAudio = 0x01
	flagDelta      = 0x00
	flagKeyframe   = 0x01
)

// EncodeVideoFrame builds the 4-byte-header + payload binary frame sent for
// one encoded video access unit: [type, keyframe-flag, frameID-hi, frameID-lo, payload...].
func EncodeVideoFrame(frameID uint16, keyframe bool, payload []byte) []byte {
	flag := byte(flagDelta)
	if keyframe {
		flag = flagKeyframe
	}
	out := make([]byte, 4+len(payload))
	out[0] = frameTypeVideo
	out[1] = flag
	out[2] = byte(frameID >> 8)
	out[3] = byte(frameID)
	copy(out[4:], payload)
	return out
}

// EncodeAudioFrame builds the 2-byte-header + payload binary frame sent for
// one encoded audio packet: [type, 0x00, payload...].
func EncodeAudioFrame(payload []byte) []byte {
	out := make([]byte, 2+len(payload))
	out[0] = frameTypeAudio
	out[1] = 0x00
	copy(out[2:], payload)
	return out
}

// FrameIDCounter produces frame IDs that wrap at 2^16, matching the 16-bit
// field in EncodeVideoFrame.
type FrameIDCounter struct {
	mu   sync.Mutex
	next uint16
}

// Next returns the next frame ID and advances the counter, wrapping from
// 65535 back to 0.
func (c *FrameIDCounter) Next() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	return id
}

// FPSCounter computes a rolling frames-per-second figure over a 2-second
// window, matching the server-side FPS reporting cadence.
type FPSCounter struct {
	mu      sync.Mutex
	count   int
	windowStart time.Time
	last    float64
}

// NewFPSCounter creates a counter starting its window now.
func NewFPSCounter(now time.Time) *FPSCounter {
	return &FPSCounter{windowStart: now}
}

// Tick records one frame and, if the 2-second window has elapsed,
// recomputes the reported FPS.
func (f *FPSCounter) Tick(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	elapsed := now.Sub(f.windowStart)
	if elapsed >= 2*time.Second {
		f.last = float64(f.count) / elapsed.Seconds()
		f.count = 0
		f.windowStart = now
	}
}

// Current returns the last computed FPS figure.
func (f *FPSCounter) Current() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// EncodeClipboard renders the "clipboard,<base64>" text control message.
func EncodeClipboard(base64Payload string) string {
	return fmt.Sprintf("clipboard,%s", base64Payload)
}

// EncodeCursor renders the "cursor,<json>" text control message.
func EncodeCursor(jsonPayload string) string {
	return fmt.Sprintf("cursor,%s", jsonPayload)
}

package sdpmangle_test

import (
	"strings"
	"testing"

	"github.com/selkies-project/selkies-streamer-core/pkg/webrtcsession/sdpmangle"
)

const sampleOffer = "v=0\r\n" +
	"o=- 0 0 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"m=video 9 UDP/TLS/RTP/SAVPF 96 97\r\n" +
	"a=rtpmap:96 H264/90000\r\n" +
	"a=fmtp:96 packetization-mode=1\r\n" +
	"a=rtpmap:97 rtx/90000\r\n" +
	"a=fmtp:97 apt=96\r\n"

func TestMangleAddsRTXTime(t *testing.T) {
	got := sdpmangle.Mangle(sampleOffer)
	if !strings.Contains(got, "apt=96;rtx-time=125") {
		t.Errorf("expected rtx-time added, got:\n%s", got)
	}
}

func TestMangleAddsH264Params(t *testing.T) {
	got := sdpmangle.Mangle(sampleOffer)
	for _, want := range []string{"profile-level-id=42e01f", "level-asymmetry-allowed=1", "sps-pps-idr-in-keyframe=1"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in mangled SDP, got:\n%s", want, got)
		}
	}
}

func TestMangleIsIdempotent(t *testing.T) {
	once := sdpmangle.Mangle(sampleOffer)
	twice := sdpmangle.Mangle(once)
	if once != twice {
		t.Errorf("mangle is not idempotent:\nonce:\n%s\ntwice:\n%s", once, twice)
	}
}

package encoder_test

import (
	"testing"

	"github.com/selkies-project/selkies-streamer-core/pkg/encoder"
	"github.com/selkies-project/selkies-streamer-core/pkg/mediafx/fake"
)

func TestFECVideoBitrate(t *testing.T) {
	cases := []struct {
		bitrate, loss, want int
	}{
		{3_000_000, 0, 3_000_000},
		{3_000_000, 10, 2727272},
		{1_000_000, 50, 666666},
	}
	for _, c := range cases {
		got := encoder.FECVideoBitrate(c.bitrate, c.loss)
		if got != c.want {
			t.Errorf("FECVideoBitrate(%d, %d) = %d, want %d", c.bitrate, c.loss, got, c.want)
		}
	}
}

func TestFECAudioBitrate(t *testing.T) {
	got := encoder.FECAudioBitrate(96000, 10)
	want := 105600
	if got != want {
		t.Errorf("FECAudioBitrate(96000, 10) = %d, want %d", got, want)
	}
}

func TestKeyframeDistanceFramesInfinite(t *testing.T) {
	if got := encoder.KeyframeDistanceFrames(30, -1); got != -1 {
		t.Errorf("expected -1 for infinite GOP, got %d", got)
	}
}

func TestKeyframeDistanceFramesFloor(t *testing.T) {
	// 1 second at 30fps is 30 frames, below the 60-frame floor.
	if got := encoder.KeyframeDistanceFrames(30, 1); got != 60 {
		t.Errorf("expected floor of 60, got %d", got)
	}
}

func TestKeyframeDistanceFramesComputed(t *testing.T) {
	if got := encoder.KeyframeDistanceFrames(60, 5); got != 300 {
		t.Errorf("expected 300, got %d", got)
	}
}

func TestSpecUnknownProfile(t *testing.T) {
	if _, err := encoder.Spec("nonexistent"); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestSetPropertiesX264(t *testing.T) {
	spec, err := encoder.Spec("x264")
	if err != nil {
		t.Fatal(err)
	}
	el := fake.NewElement("x264enc0")
	params := encoder.EncodeParams{
		VideoBitrateBps:     4_000_000,
		FramerateFPS:        30,
		KeyframeDistanceSec: -1,
	}
	if err := spec.SetProperties(el, params); err != nil {
		t.Fatal(err)
	}
	bitrate, ok := el.Property("bitrate")
	if !ok || bitrate != 4000 {
		t.Errorf("bitrate = %v, want 4000", bitrate)
	}
	if tune, _ := el.Property("tune"); tune != "zerolatency" {
		t.Errorf("tune = %v, want zerolatency", tune)
	}
}

func TestSupportedForWebSocket(t *testing.T) {
	allowed := []encoder.Profile{encoder.X264, encoder.NVH264, encoder.VAH264, encoder.OpenH264}
	for _, p := range allowed {
		if !encoder.SupportedForWebSocket(p) {
			t.Errorf("%s should be allowed in WebSocket mode", p)
		}
	}
	if encoder.SupportedForWebSocket(encoder.VP9) {
		t.Error("vp9 should not be allowed in WebSocket mode")
	}
}

package webrtcsession_test

import (
	"testing"

	"github.com/selkies-project/selkies-streamer-core/pkg/webrtcsession"
)

func TestPickExtensionIDPicksSmallestFree(t *testing.T) {
	if got := webrtcsession.PickExtensionID([]int{1, 2, 4}); got != 3 {
		t.Errorf("got %d, want 3", got)
	}
}

func TestPickExtensionIDEmpty(t *testing.T) {
	if got := webrtcsession.PickExtensionID(nil); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
}

func TestPickExtensionIDAllUsedUpToMax(t *testing.T) {
	existing := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}
	if got := webrtcsession.PickExtensionID(existing); got != 15 {
		t.Errorf("got %d, want 15", got)
	}
}

func TestPlayoutDelayRoundTrip(t *testing.T) {
	cases := []struct{ min, max uint16 }{
		{0, 0},
		{100, 200},
		{4095, 4095},
		{0, 4095},
	}
	for _, c := range cases {
		packed := webrtcsession.PackPlayoutDelay(c.min, c.max)
		gotMin, gotMax := webrtcsession.UnpackPlayoutDelay(packed)
		if gotMin != c.min || gotMax != c.max {
			t.Errorf("round trip (%d,%d) -> (%d,%d)", c.min, c.max, gotMin, gotMax)
		}
	}
}

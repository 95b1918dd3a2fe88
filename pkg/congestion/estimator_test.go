package congestion_test

import (
	"testing"

	"github.com/selkies-project/selkies-streamer-core/pkg/congestion"
	"github.com/selkies-project/selkies-streamer-core/pkg/mediafx/fake"
)

type recordingSetter struct {
	lastBps         int
	lastCCTriggered bool
	calls           int
}

func (r *recordingSetter) SetVideoBitrate(bps int, cc bool) error {
	r.lastBps = bps
	r.lastCCTriggered = cc
	r.calls++
	return nil
}

func TestOnEstimateAppliesFECAudioOffset(t *testing.T) {
	el := fake.NewElement("gcc0")
	setter := &recordingSetter{}
	est := congestion.New(el, setter, 3_000_000, 96_000)

	est.OnEstimate(3_000_000)

	if setter.lastBps != 2904 {
		t.Errorf("lastBps = %d, want 2904", setter.lastBps)
	}
	if !setter.lastCCTriggered {
		t.Error("expected ccTriggered to be true")
	}
}

func TestOnEstimateRateLimited(t *testing.T) {
	el := fake.NewElement("gcc0")
	setter := &recordingSetter{}
	est := congestion.New(el, setter, 3_000_000, 96_000)

	est.OnEstimate(3_000_000)
	est.OnEstimate(1_000_000) // immediately after, should be dropped

	if setter.calls != 1 {
		t.Errorf("expected exactly 1 call due to rate limiting, got %d", setter.calls)
	}
}

func TestSeedSetsMinMaxEstimated(t *testing.T) {
	el := fake.NewElement("gcc0")
	setter := &recordingSetter{}
	congestion.New(el, setter, 3_000_000, 96_000)

	estimated, _ := el.Property("estimated-bitrate")
	if estimated != 3_096_000 {
		t.Errorf("estimated-bitrate = %v, want 3096000", estimated)
	}
	max, _ := el.Property("max-bitrate")
	if max != 3_096_000 {
		t.Errorf("max-bitrate = %v, want 3096000", max)
	}
	// 10% of 3_000_000 + fec (396000) exceeds the 100_000+fec floor (196000).
	min, _ := el.Property("min-bitrate")
	if min != 396_000 {
		t.Errorf("min-bitrate = %v, want 396000", min)
	}
}

func TestSeedMinUsesFloorForLowBitrate(t *testing.T) {
	el := fake.NewElement("gcc0")
	setter := &recordingSetter{}
	congestion.New(el, setter, 500_000, 10_000)

	// 10% of 500_000 + fec = 60_000, below the 100_000+fec=110_000 floor.
	min, _ := el.Property("min-bitrate")
	if min != 110_000 {
		t.Errorf("min-bitrate = %v, want 110000", min)
	}
}

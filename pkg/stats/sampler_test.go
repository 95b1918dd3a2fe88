package stats

import (
	"context"
	"testing"
)

type fakeGPU struct{ stats GPUStats }

func (f fakeGPU) Sample(ctx context.Context) (GPUStats, error) { return f.stats, nil }

func TestNoGPUStatsIsZeroValue(t *testing.T) {
	s := New(nil)
	got, err := s.SampleGPU(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != (GPUStats{}) {
		t.Fatalf("expected zero-value GPUStats, got %+v", got)
	}
}

func TestInjectedGPUSourceIsUsed(t *testing.T) {
	want := GPUStats{GPUUtilPercent: 42.5, GPUMemUsedBytes: 1024}
	s := New(fakeGPU{stats: want})
	got, err := s.SampleGPU(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestSampleSystemReturnsPositiveTotals(t *testing.T) {
	s := New(nil)
	got, err := s.SampleSystem(context.Background())
	if err != nil {
		t.Skipf("gopsutil unavailable in this sandbox: %v", err)
	}
	if got.MemTotalBytes == 0 {
		t.Fatal("expected a non-zero total memory reading")
	}
}

// Package stats produces the periodic system_stats and gpu_stats control
// payloads: CPU/memory sampling via gopsutil, and GPU telemetry from an
// injectable source since no GPU metrics library exists in this project's
// dependency stack.
package stats

import (
	"context"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStats is the system_stats control payload.
type SystemStats struct {
	CPUPercent   float64 `json:"cpu_percent"`
	MemUsedBytes uint64  `json:"mem_used_bytes"`
	MemTotalBytes uint64 `json:"mem_total_bytes"`
}

// GPUStats is the gpu_stats control payload.
type GPUStats struct {
	GPUUtilPercent float64 `json:"gpu_util_percent"`
	GPUMemUsedBytes uint64 `json:"gpu_mem_used_bytes"`
}

// GPUStatsSource is injected so a deployment with real GPU telemetry can
// supply it; the zero-value stub below reports nothing, since no GPU
// metrics library exists anywhere in this project's dependency stack.
type GPUStatsSource interface {
	Sample(ctx context.Context) (GPUStats, error)
}

// NoGPUStats is the default GPUStatsSource: always reports zero values.
type NoGPUStats struct{}

func (NoGPUStats) Sample(ctx context.Context) (GPUStats, error) { return GPUStats{}, nil }

// Sampler produces SystemStats/GPUStats snapshots on demand.
type Sampler struct {
	gpu GPUStatsSource
}

// New creates a Sampler. Pass nil gpu to use NoGPUStats.
func New(gpu GPUStatsSource) *Sampler {
	if gpu == nil {
		gpu = NoGPUStats{}
	}
	return &Sampler{gpu: gpu}
}

// SampleSystem reports CPU percent since the previous call (gopsutil's
// zero-interval mode) and current memory usage via gopsutil.
func (s *Sampler) SampleSystem(ctx context.Context) (SystemStats, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return SystemStats{}, err
	}
	var cpuPct float64
	if len(percents) > 0 {
		cpuPct = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return SystemStats{}, err
	}

	return SystemStats{
		CPUPercent:    cpuPct,
		MemUsedBytes:  vm.Used,
		MemTotalBytes: vm.Total,
	}, nil
}

// SampleGPU reports GPU utilization/memory from the injected source.
func (s *Sampler) SampleGPU(ctx context.Context) (GPUStats, error) {
	return s.gpu.Sample(ctx)
}

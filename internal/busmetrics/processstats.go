package busmetrics

import (
	"context"
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats is an on-demand snapshot of this process's own resource
// footprint, reported next to the bus's domain counters the same way the
// teacher's platform package feeds its CPU/memory gauges. This is
// deliberately the plain gopsutil process snapshot rather than the
// teacher's cgroup-v1/v2-aware reader: the bus has no container CPU
// quota of its own to reconcile against, so that machinery has nothing
// to attach to here.
type ProcessStats struct {
	CPUPercent float64
	RSSBytes   uint64
}

// SampleProcessStats reads the current process's CPU and memory usage.
func SampleProcessStats(ctx context.Context) (ProcessStats, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return ProcessStats{}, err
	}

	cpuPercent, err := proc.CPUPercentWithContext(ctx)
	if err != nil {
		return ProcessStats{}, err
	}

	memInfo, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return ProcessStats{}, err
	}

	return ProcessStats{
		CPUPercent: cpuPercent,
		RSSBytes:   memInfo.RSS,
	}, nil
}

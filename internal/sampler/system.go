package sampler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/breeze-rmm/monitor/internal/condition"
)

// System samples local machine metrics through gopsutil. Rate variants keep
// the previous counter reading so the first tick after start has no baseline
// and reports unavailable.
type System struct {
	mu           sync.Mutex
	lastNetAt    time.Time
	lastNetBytes uint64
	lastIOAt     time.Time
	lastIOBytes  uint64
}

// NewSystem returns a provider serving the locally-sampleable kinds.
func NewSystem() *System {
	return &System{}
}

// Kinds lists the condition kinds System serves.
func (s *System) Kinds() []condition.Kind {
	return []condition.Kind{
		condition.CPUKind,
		condition.MemoryKind,
		condition.DiskUsageKind,
		condition.DiskFreeSpaceKind,
		condition.DiskTransferRateKind,
		condition.NetworkUtilizationKind,
		condition.SystemUptimeKind,
		condition.ProcessKind,
		condition.ProcessResourceKind,
	}
}

// Sample implements Provider.
func (s *System) Sample(ctx context.Context, c *condition.Condition, now time.Time) (condition.Sample, error) {
	switch c.Kind {
	case condition.CPUKind:
		return s.cpuSample(ctx, now)
	case condition.MemoryKind:
		return s.memorySample(ctx, c, now)
	case condition.DiskUsageKind:
		return s.diskUsageSample(ctx, c, now)
	case condition.DiskFreeSpaceKind:
		return s.diskFreeSample(ctx, c, now)
	case condition.DiskTransferRateKind:
		return s.diskRateSample(ctx, now)
	case condition.NetworkUtilizationKind:
		return s.networkSample(ctx, now)
	case condition.SystemUptimeKind:
		return s.uptimeSample(ctx, now)
	case condition.ProcessKind:
		return s.processSample(ctx, c, now)
	case condition.ProcessResourceKind:
		return s.processResourceSample(ctx, c, now)
	}
	return condition.Sample{}, unavailablef(c.Kind, "not served by the system provider")
}

func (s *System) cpuSample(ctx context.Context, now time.Time) (condition.Sample, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(percents) == 0 {
		return condition.Sample{}, unavailablef(condition.CPUKind, "cpu counters: %v", err)
	}
	return condition.Sample{At: now, Value: percents[0]}, nil
}

func (s *System) memorySample(ctx context.Context, c *condition.Condition, now time.Time) (condition.Sample, error) {
	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return condition.Sample{}, unavailablef(condition.MemoryKind, "virtual memory: %v", err)
	}
	value := vmem.UsedPercent
	if c.Memory.Threshold.Kind == condition.KindBytes {
		value = float64(vmem.Used)
	}
	return condition.Sample{At: now, Value: value}, nil
}

func (s *System) diskUsageSample(ctx context.Context, c *condition.Condition, now time.Time) (condition.Sample, error) {
	usage, err := disk.UsageWithContext(ctx, drivePath(c.DiskUsage.Drive))
	if err != nil {
		return condition.Sample{}, unavailablef(condition.DiskUsageKind, "disk usage: %v", err)
	}
	value := usage.UsedPercent
	if c.DiskUsage.Threshold.Kind == condition.KindBytes {
		value = float64(usage.Used)
	}
	return condition.Sample{At: now, Value: value}, nil
}

func (s *System) diskFreeSample(ctx context.Context, c *condition.Condition, now time.Time) (condition.Sample, error) {
	usage, err := disk.UsageWithContext(ctx, drivePath(c.DiskFreeSpace.Drive))
	if err != nil {
		return condition.Sample{}, unavailablef(condition.DiskFreeSpaceKind, "disk usage: %v", err)
	}
	return condition.Sample{At: now, Value: float64(usage.Free)}, nil
}

func (s *System) diskRateSample(ctx context.Context, now time.Time) (condition.Sample, error) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return condition.Sample{}, unavailablef(condition.DiskTransferRateKind, "io counters: %v", err)
	}
	var total uint64
	for _, c := range counters {
		total += c.ReadBytes + c.WriteBytes
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	lastAt, lastBytes := s.lastIOAt, s.lastIOBytes
	s.lastIOAt, s.lastIOBytes = now, total

	if lastAt.IsZero() || !now.After(lastAt) || total < lastBytes {
		return condition.Sample{}, unavailablef(condition.DiskTransferRateKind, "no counter baseline yet")
	}
	rate := float64(total-lastBytes) / now.Sub(lastAt).Seconds()
	return condition.Sample{At: now, Value: rate}, nil
}

func (s *System) networkSample(ctx context.Context, now time.Time) (condition.Sample, error) {
	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil || len(counters) == 0 {
		return condition.Sample{}, unavailablef(condition.NetworkUtilizationKind, "net counters: %v", err)
	}
	total := counters[0].BytesRecv + counters[0].BytesSent

	s.mu.Lock()
	defer s.mu.Unlock()
	lastAt, lastBytes := s.lastNetAt, s.lastNetBytes
	s.lastNetAt, s.lastNetBytes = now, total

	if lastAt.IsZero() || !now.After(lastAt) || total < lastBytes {
		return condition.Sample{}, unavailablef(condition.NetworkUtilizationKind, "no counter baseline yet")
	}
	rate := float64(total-lastBytes) / now.Sub(lastAt).Seconds()
	return condition.Sample{At: now, Value: rate}, nil
}

func (s *System) uptimeSample(ctx context.Context, now time.Time) (condition.Sample, error) {
	seconds, err := host.UptimeWithContext(ctx)
	if err != nil {
		return condition.Sample{}, unavailablef(condition.SystemUptimeKind, "host uptime: %v", err)
	}
	return condition.Sample{At: now, Uptime: time.Duration(seconds) * time.Second}, nil
}

func (s *System) processSample(ctx context.Context, c *condition.Condition, now time.Time) (condition.Sample, error) {
	found, _, err := findProcess(ctx, c.Process.Name)
	if err != nil {
		return condition.Sample{}, unavailablef(condition.ProcessKind, "process list: %v", err)
	}
	state := string(condition.StateDoesNotExist)
	if found {
		state = string(condition.StateExists)
	}

	sample := condition.Sample{At: now, State: state}
	if seconds, err := host.UptimeWithContext(ctx); err == nil {
		sample.Uptime = time.Duration(seconds) * time.Second
	}
	return sample, nil
}

func (s *System) processResourceSample(ctx context.Context, c *condition.Condition, now time.Time) (condition.Sample, error) {
	v := c.ProcessResource
	found, proc, err := findProcess(ctx, v.Name)
	if err != nil {
		return condition.Sample{}, unavailablef(condition.ProcessResourceKind, "process list: %v", err)
	}
	if !found {
		return condition.Sample{}, unavailablef(condition.ProcessResourceKind, "process %q not running", v.Name)
	}

	switch v.Metric {
	case condition.ProcCPU:
		percent, err := proc.CPUPercentWithContext(ctx)
		if err != nil {
			return condition.Sample{}, unavailablef(condition.ProcessResourceKind, "cpu percent: %v", err)
		}
		return condition.Sample{At: now, Value: percent}, nil

	case condition.ProcMemory:
		if v.Threshold.Kind == condition.KindPercent {
			percent, err := proc.MemoryPercentWithContext(ctx)
			if err != nil {
				return condition.Sample{}, unavailablef(condition.ProcessResourceKind, "memory percent: %v", err)
			}
			return condition.Sample{At: now, Value: float64(percent)}, nil
		}
		info, err := proc.MemoryInfoWithContext(ctx)
		if err != nil {
			return condition.Sample{}, unavailablef(condition.ProcessResourceKind, "memory info: %v", err)
		}
		return condition.Sample{At: now, Value: float64(info.RSS)}, nil
	}
	return condition.Sample{}, unavailablef(condition.ProcessResourceKind, "unknown resource %q", v.Metric)
}

func findProcess(ctx context.Context, name string) (bool, *process.Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, nil, err
	}
	for _, p := range procs {
		pname, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if strings.EqualFold(pname, name) {
			return true, p, nil
		}
	}
	return false, nil, nil
}

// drivePath maps a document drive value ("C:", "/var") to a mount path for
// the local platform. Empty means the root volume.
func drivePath(drive string) string {
	if drive == "" {
		return "/"
	}
	if len(drive) == 2 && drive[1] == ':' {
		return drive + `\`
	}
	return drive
}

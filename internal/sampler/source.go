package sampler

import (
	"context"

	"codeberg.org/mutker/sysmon/internal/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// sectorSize is the unit of the kernel's cumulative sector counters.
const sectorSize = 512

// CPUTimes holds cumulative time spent in each CPU state, summed over all CPUs.
type CPUTimes struct {
	User    float64
	Nice    float64
	System  float64
	Idle    float64
	Iowait  float64
	Irq     float64
	Softirq float64
	Steal   float64
}

// Busy returns the time spent in non-idle states.
func (t CPUTimes) Busy() float64 {
	return t.User + t.Nice + t.System + t.Irq + t.Softirq + t.Steal
}

// IdleTotal returns the time spent idle or waiting on I/O.
func (t CPUTimes) IdleTotal() float64 {
	return t.Idle + t.Iowait
}

// MemStat is a single host memory snapshot in bytes.
type MemStat struct {
	Total     uint64
	Available uint64
}

// Source reads host state counters.
type Source interface {
	CPUTimes(ctx context.Context) (CPUTimes, error)
	Memory(ctx context.Context) (MemStat, error)
	// DiskSectors returns cumulative sectors read and written across all block devices.
	DiskSectors(ctx context.Context) (read, written uint64, err error)
	// NetBytes returns cumulative bytes received and sent across all interfaces.
	NetBytes(ctx context.Context) (rx, tx uint64, err error)
}

// HostSource reads the local host through gopsutil.
type HostSource struct{}

// NewHostSource returns a Source backed by the running host.
func NewHostSource() *HostSource {
	return &HostSource{}
}

func (*HostSource) CPUTimes(ctx context.Context) (CPUTimes, error) {
	errFactory := errors.New()

	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return CPUTimes{}, errFactory.Wrap(ErrSourceRead, err)
	}
	if len(times) == 0 {
		return CPUTimes{}, errFactory.WithData(ErrNoCounters, "cpu")
	}

	t := times[0]
	return CPUTimes{
		User:    t.User,
		Nice:    t.Nice,
		System:  t.System,
		Idle:    t.Idle,
		Iowait:  t.Iowait,
		Irq:     t.Irq,
		Softirq: t.Softirq,
		Steal:   t.Steal,
	}, nil
}

func (*HostSource) Memory(ctx context.Context) (MemStat, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemStat{}, errors.New().Wrap(ErrSourceRead, err)
	}

	return MemStat{Total: vm.Total, Available: vm.Available}, nil
}

func (*HostSource) DiskSectors(ctx context.Context) (uint64, uint64, error) {
	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		return 0, 0, errors.New().Wrap(ErrSourceRead, err)
	}

	var read, written uint64
	for _, c := range counters {
		read += c.ReadBytes / sectorSize
		written += c.WriteBytes / sectorSize
	}

	return read, written, nil
}

func (*HostSource) NetBytes(ctx context.Context) (uint64, uint64, error) {
	errFactory := errors.New()

	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return 0, 0, errFactory.Wrap(ErrSourceRead, err)
	}
	if len(counters) == 0 {
		return 0, 0, errFactory.WithData(ErrNoCounters, "net")
	}

	return counters[0].BytesRecv, counters[0].BytesSent, nil
}

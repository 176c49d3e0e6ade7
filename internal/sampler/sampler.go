package sampler

import (
	"context"
	"time"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
	"codeberg.org/mutker/sysmon/internal/metric"
)

// Sampler produces one Metric per call.
type Sampler interface {
	Kind() metric.Kind
	Sample(ctx context.Context) metric.Metric
}

// Baseliner is implemented by samplers that report deltas and need an
// initial reading before the first tick.
type Baseliner interface {
	Baseline(ctx context.Context)
}

// Sink receives samples. Push returns false once the sink no longer accepts them.
type Sink interface {
	Push(m metric.Metric) bool
}

// Loop sleeps for interval, samples and pushes, until ctx is done or the
// sink rejects a sample.
func Loop(ctx context.Context, s Sampler, interval time.Duration, sink Sink) {
	log := logger.With("sampler").With("kind", s.Kind().String())

	if b, ok := s.(Baseliner); ok {
		b.Baseline(ctx)
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Sampler stopped")
			return
		case <-timer.C:
		}

		if !sink.Push(s.Sample(ctx)) {
			log.Debug().Msg("Queue stopped, sampler exiting")
			return
		}
		timer.Reset(interval)
	}
}

// CPUPercent returns the share of busy time in a snapshot delta, or 0 when
// no time elapsed.
func CPUPercent(busyDelta, idleDelta float64) float64 {
	total := busyDelta + idleDelta
	if total <= 0 {
		return 0
	}

	return 100 * busyDelta / total
}

// MemPercent returns the share of memory in use, or metric.Sentinel when the
// total is unknown.
func MemPercent(total, available uint64) float64 {
	if total == 0 {
		return metric.Sentinel
	}

	return 100 * float64(total-min(available, total)) / float64(total)
}

func logReadFailure(log logger.Logger, err error) {
	if appErr, ok := err.(errors.Error); ok {
		log.Debug().Str("error_code", string(appErr.Code())).Err(err).Msg("Host source read failed")
		return
	}
	log.Debug().Err(err).Msg("Host source read failed")
}

// CPU samples overall CPU utilisation from two counter snapshots taken
// window apart.
type CPU struct {
	src    Source
	window time.Duration
	log    logger.Logger
}

func NewCPU(src Source, window time.Duration) *CPU {
	return &CPU{src: src, window: window, log: logger.With("sampler").With("kind", "CPU")}
}

func (*CPU) Kind() metric.Kind { return metric.CPU }

func (c *CPU) Sample(ctx context.Context) metric.Metric {
	return metric.New(metric.CPU, c.percent(ctx), 0)
}

func (c *CPU) percent(ctx context.Context) float64 {
	a, err := c.src.CPUTimes(ctx)
	if err != nil {
		logReadFailure(c.log, err)
		return metric.Sentinel
	}

	if c.window > 0 {
		t := time.NewTimer(c.window)
		select {
		case <-ctx.Done():
			t.Stop()
			return metric.Sentinel
		case <-t.C:
		}
	}

	b, err := c.src.CPUTimes(ctx)
	if err != nil {
		logReadFailure(c.log, err)
		return metric.Sentinel
	}

	return CPUPercent(b.Busy()-a.Busy(), b.IdleTotal()-a.IdleTotal())
}

// Memory samples the share of host memory in use.
type Memory struct {
	src Source
	log logger.Logger
}

func NewMemory(src Source) *Memory {
	return &Memory{src: src, log: logger.With("sampler").With("kind", "MEM")}
}

func (*Memory) Kind() metric.Kind { return metric.MEM }

func (m *Memory) Sample(ctx context.Context) metric.Metric {
	stat, err := m.src.Memory(ctx)
	if err != nil {
		logReadFailure(m.log, err)
		return metric.New(metric.MEM, metric.Sentinel, 0)
	}

	return metric.New(metric.MEM, MemPercent(stat.Total, stat.Available), 0)
}

// Counter reports the raw delta of a pair of cumulative counters since the
// previous tick. The previous reading is owned by this sampler alone.
type Counter struct {
	kind metric.Kind
	read func(ctx context.Context) (uint64, uint64, error)
	log  logger.Logger

	prev   [2]uint64
	primed bool
}

// NewDisk returns a sampler of sectors read and written per tick.
func NewDisk(src Source) *Counter {
	return newCounter(metric.DISK, src.DiskSectors)
}

// NewNet returns a sampler of bytes received and sent per tick.
func NewNet(src Source) *Counter {
	return newCounter(metric.NET, src.NetBytes)
}

func newCounter(kind metric.Kind, read func(context.Context) (uint64, uint64, error)) *Counter {
	return &Counter{
		kind: kind,
		read: read,
		log:  logger.With("sampler").With("kind", kind.String()),
	}
}

func (c *Counter) Kind() metric.Kind { return c.kind }

// Baseline records the starting counters.
func (c *Counter) Baseline(ctx context.Context) {
	a, b, err := c.read(ctx)
	if err != nil {
		logReadFailure(c.log, err)
		return
	}
	c.prev = [2]uint64{a, b}
	c.primed = true
}

func (c *Counter) Sample(ctx context.Context) metric.Metric {
	a, b, err := c.read(ctx)
	if err != nil {
		logReadFailure(c.log, err)
		return metric.New(c.kind, metric.Sentinel, metric.Sentinel)
	}

	if !c.primed {
		c.prev = [2]uint64{a, b}
		c.primed = true
		return metric.New(c.kind, metric.Sentinel, metric.Sentinel)
	}

	d1, d2 := delta(c.prev[0], a), delta(c.prev[1], b)
	c.prev = [2]uint64{a, b}

	return metric.New(c.kind, float64(d1), float64(d2))
}

// delta treats a counter that went backwards (device removed, counter reset)
// as no progress.
func delta(prev, cur uint64) uint64 {
	if cur < prev {
		return 0
	}

	return cur - prev
}

package sampler_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/sysmon/internal/metric"
	"codeberg.org/mutker/sysmon/internal/sampler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterRead struct {
	a, b uint64
	err  error
}

// fakeSource replays scripted readings; the last entry repeats once exhausted.
type fakeSource struct {
	mu   sync.Mutex
	cpu  []sampler.CPUTimes
	mem  sampler.MemStat
	disk []counterRead
	net  []counterRead

	cpuErr error
	memErr error
}

func (f *fakeSource) CPUTimes(context.Context) (sampler.CPUTimes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cpuErr != nil {
		return sampler.CPUTimes{}, f.cpuErr
	}
	t := f.cpu[0]
	if len(f.cpu) > 1 {
		f.cpu = f.cpu[1:]
	}
	return t, nil
}

func (f *fakeSource) Memory(context.Context) (sampler.MemStat, error) {
	return f.mem, f.memErr
}

func next(reads *[]counterRead) (uint64, uint64, error) {
	r := (*reads)[0]
	if len(*reads) > 1 {
		*reads = (*reads)[1:]
	}
	return r.a, r.b, r.err
}

func (f *fakeSource) DiskSectors(context.Context) (uint64, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return next(&f.disk)
}

func (f *fakeSource) NetBytes(context.Context) (uint64, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return next(&f.net)
}

func TestCPUPercent(t *testing.T) {
	assert.InDelta(t, 75.0, sampler.CPUPercent(300, 100), 1e-9)
	assert.Equal(t, 0.0, sampler.CPUPercent(0, 0), "no elapsed time must not divide by zero")
	assert.InDelta(t, 100.0, sampler.CPUPercent(50, 0), 1e-9)
}

func TestMemPercent(t *testing.T) {
	assert.InDelta(t, 60.0, sampler.MemPercent(1000, 400), 1e-9)
	assert.Equal(t, metric.Sentinel, sampler.MemPercent(0, 0))
	assert.Equal(t, 0.0, sampler.MemPercent(1000, 2000), "available above total clamps to zero usage")
}

func TestCPUSamplerDelta(t *testing.T) {
	src := &fakeSource{cpu: []sampler.CPUTimes{
		{User: 100, System: 50, Idle: 800, Iowait: 50},
		// busy +300 (user 200, system 50, irq 30, steal 20), idle +100 (idle 80, iowait 20)
		{User: 300, System: 100, Irq: 30, Steal: 20, Idle: 880, Iowait: 70},
	}}

	m := sampler.NewCPU(src, 0).Sample(context.Background())
	assert.Equal(t, metric.CPU, m.Kind)
	assert.InDelta(t, 75.0, m.V1, 1e-9)
	assert.False(t, m.Timestamp.IsZero())
}

func TestCPUSamplerReadFailure(t *testing.T) {
	src := &fakeSource{cpuErr: io.ErrUnexpectedEOF}

	m := sampler.NewCPU(src, 0).Sample(context.Background())
	assert.Equal(t, metric.Sentinel, m.V1)
}

func TestCPUSamplerWindowInterruptedByStop(t *testing.T) {
	src := &fakeSource{cpu: []sampler.CPUTimes{{Idle: 1}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	m := sampler.NewCPU(src, time.Hour).Sample(ctx)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, metric.Sentinel, m.V1)
}

func TestMemorySampler(t *testing.T) {
	src := &fakeSource{mem: sampler.MemStat{Total: 1000, Available: 400}}
	m := sampler.NewMemory(src).Sample(context.Background())
	assert.Equal(t, metric.MEM, m.Kind)
	assert.InDelta(t, 60.0, m.V1, 1e-9)

	src.memErr = io.EOF
	m = sampler.NewMemory(src).Sample(context.Background())
	assert.Equal(t, metric.Sentinel, m.V1)
}

func TestCounterSamplerDeltas(t *testing.T) {
	src := &fakeSource{disk: []counterRead{
		{a: 1000, b: 500},
		{a: 1100, b: 560},
		{err: io.EOF},
		{a: 1150, b: 600},
		{a: 10, b: 5}, // counters reset
	}}

	s := sampler.NewDisk(src)
	ctx := context.Background()
	s.Baseline(ctx)

	m := s.Sample(ctx)
	assert.Equal(t, metric.DISK, m.Kind)
	assert.Equal(t, 100.0, m.V1)
	assert.Equal(t, 60.0, m.V2)

	m = s.Sample(ctx)
	assert.Equal(t, metric.Sentinel, m.V1, "failed read yields sentinel")
	assert.Equal(t, metric.Sentinel, m.V2)

	// Baseline is kept across a failed read
	m = s.Sample(ctx)
	assert.Equal(t, 50.0, m.V1)
	assert.Equal(t, 40.0, m.V2)

	m = s.Sample(ctx)
	assert.Equal(t, 0.0, m.V1)
	assert.Equal(t, 0.0, m.V2)
}

func TestCounterSamplerWithoutBaseline(t *testing.T) {
	src := &fakeSource{net: []counterRead{
		{err: io.EOF},
		{a: 4000, b: 2000},
		{a: 4500, b: 2100},
	}}

	s := sampler.NewNet(src)
	ctx := context.Background()
	s.Baseline(ctx)

	m := s.Sample(ctx)
	assert.Equal(t, metric.NET, m.Kind)
	assert.Equal(t, metric.Sentinel, m.V1, "first reading only establishes the baseline")

	m = s.Sample(ctx)
	assert.Equal(t, 500.0, m.V1)
	assert.Equal(t, 100.0, m.V2)
}

type sliceSink struct {
	mu    sync.Mutex
	items []metric.Metric
	limit int
}

func (s *sliceSink) Push(m metric.Metric) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit > 0 && len(s.items) >= s.limit {
		return false
	}
	s.items = append(s.items, m)
	return true
}

func (s *sliceSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func TestLoopStopsOnContext(t *testing.T) {
	src := &fakeSource{mem: sampler.MemStat{Total: 100, Available: 50}}
	sink := &sliceSink{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		sampler.Loop(ctx, sampler.NewMemory(src), 5*time.Millisecond, sink)
	}()

	require.Eventually(t, func() bool { return sink.len() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoopStopsWhenSinkRejects(t *testing.T) {
	src := &fakeSource{net: []counterRead{{a: 1, b: 1}}}
	sink := &sliceSink{limit: 2}

	done := make(chan struct{})
	go func() {
		defer close(done)
		sampler.Loop(context.Background(), sampler.NewNet(src), time.Millisecond, sink)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop after rejected push")
	}
	assert.Equal(t, 2, sink.len())
}

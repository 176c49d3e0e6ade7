package collector_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/sysmon/internal/collector"
	"codeberg.org/mutker/sysmon/internal/history"
	"codeberg.org/mutker/sysmon/internal/metric"
	"codeberg.org/mutker/sysmon/internal/queue"
	"codeberg.org/mutker/sysmon/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.UnixMilli(1700000000000)

func at(kind metric.Kind, v1, v2 float64, offset time.Duration) metric.Metric {
	return metric.Metric{Kind: kind, V1: v1, V2: v2, Timestamp: t0.Add(offset)}
}

func openLog(t *testing.T) (collector.Opener, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "logs", "resource_log.txt")
	return func() (collector.RecordLog, error) {
		return store.Open(path, false)
	}, path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

// runDrained pushes items into a stopped queue and runs the collector over them.
func runDrained(t *testing.T, c func(q collector.Queue) *collector.Collector, items ...metric.Metric) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	q := queue.New[metric.Metric](ctx, queue.DefaultCapacity)
	defer q.Close()

	for _, m := range items {
		require.True(t, q.Push(m))
	}
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c(q).Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not finish draining")
	}
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (p *fakePublisher) Send(msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, string(msg))
	return nil
}

type fakeHistory struct {
	records []history.Record
}

func (h *fakeHistory) Record(_ context.Context, rec *history.Record) error {
	h.records = append(h.records, *rec)
	return nil
}

func (*fakeHistory) Close() error { return nil }

func TestCPUAlertScenario(t *testing.T) {
	open, path := openLog(t)
	cfg := collector.Config{CPUThreshold: 50, MemThreshold: 85, SummaryInterval: time.Second}

	runDrained(t, func(q collector.Queue) *collector.Collector {
		return collector.New(cfg, q, open)
	}, at(metric.CPU, 70.0, 0, 0))

	assert.Equal(t, []string{
		"1700000000000,CPU,70.00",
		"1700000000000,ALERT,CPU_HIGH,70.00",
	}, readLines(t, path))
}

func TestAlertBoundary(t *testing.T) {
	open, path := openLog(t)
	cfg := collector.Config{CPUThreshold: 85, MemThreshold: 85, SummaryInterval: time.Hour}

	runDrained(t, func(q collector.Queue) *collector.Collector {
		return collector.New(cfg, q, open)
	},
		at(metric.CPU, 85, 0, 0),
		at(metric.CPU, 84, 0, time.Millisecond),
		at(metric.MEM, 85, 0, 2*time.Millisecond),
		at(metric.MEM, 84, 0, 3*time.Millisecond),
	)

	assert.Equal(t, []string{
		"1700000000000,CPU,85.00",
		"1700000000000,ALERT,CPU_HIGH,85.00",
		"1700000000001,CPU,84.00",
		"1700000000002,MEM,85.00",
		"1700000000002,ALERT,MEM_HIGH,85.00",
		"1700000000003,MEM,84.00",
	}, readLines(t, path))
}

func TestRateRecordsAndIgnoredKinds(t *testing.T) {
	open, path := openLog(t)
	cfg := collector.Config{CPUThreshold: 1, MemThreshold: 1, SummaryInterval: time.Hour}

	runDrained(t, func(q collector.Queue) *collector.Collector {
		return collector.New(cfg, q, open)
	},
		at(metric.DISK, 16, 8, 0),
		at(metric.SUMMARY, 99, 99, 0),
		at(metric.NET, 1500, 300, 0),
		at(metric.CPU, metric.Sentinel, 0, 0),
	)

	assert.Equal(t, []string{
		"1700000000000,DISK,16,8",
		"1700000000000,NET,1500,300",
		"1700000000000,CPU,-1.00",
	}, readLines(t, path), "rate kinds never alert and a sentinel never crosses a threshold")
}

func TestDrainPersistsEveryQueuedRecordInOrder(t *testing.T) {
	open, path := openLog(t)
	cfg := collector.Config{CPUThreshold: 100, MemThreshold: 100, SummaryInterval: time.Hour}

	var items []metric.Metric
	for i := 0; i < queue.DefaultCapacity; i++ {
		items = append(items, at(metric.NET, float64(i), 0, 0))
	}

	runDrained(t, func(q collector.Queue) *collector.Collector {
		return collector.New(cfg, q, open)
	}, items...)

	lines := readLines(t, path)
	require.Len(t, lines, queue.DefaultCapacity)
	for i, line := range lines {
		assert.Equal(t, "1700000000000,NET,"+strconv.Itoa(i)+",0", line)
	}
}

func TestOpenFailureExitsWithoutConsuming(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.New[metric.Metric](ctx, 4)
	defer q.Close()
	require.True(t, q.Push(at(metric.CPU, 10, 0, 0)))

	c := collector.New(collector.Config{SummaryInterval: time.Second}, q,
		func() (collector.RecordLog, error) { return nil, io.ErrClosedPipe })

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("collector kept running without a record log")
	}
	assert.Equal(t, 1, q.Len(), "queued record is left unconsumed")
}

func TestHistoryMirror(t *testing.T) {
	open, _ := openLog(t)
	h := &fakeHistory{}
	cfg := collector.Config{CPUThreshold: 50, MemThreshold: 50, SummaryInterval: time.Hour, RunID: "run-1"}

	runDrained(t, func(q collector.Queue) *collector.Collector {
		return collector.New(cfg, q, open, collector.WithHistory(h))
	}, at(metric.MEM, 60, 0, 0), at(metric.DISK, 1, 2, 0))

	require.Len(t, h.records, 3)
	assert.Equal(t, history.Record{RunID: "run-1", Timestamp: t0.UnixMilli(), Kind: "MEM", V1: 60}, h.records[0])
	assert.Equal(t, history.Record{RunID: "run-1", Timestamp: t0.UnixMilli(), Kind: "MEM", V1: 60, Alert: true}, h.records[1])
	assert.Equal(t, history.Record{RunID: "run-1", Timestamp: t0.UnixMilli(), Kind: "DISK", V1: 1, V2: 2}, h.records[2])
}

// steppedQueue hands out scripted metrics and advances a fake clock before each one.
type steppedQueue struct {
	items []metric.Metric
	steps []time.Duration
	clock *fakeClock
}

func (q *steppedQueue) Pop() (metric.Metric, bool) {
	if len(q.items) == 0 {
		return metric.Metric{}, false
	}
	m := q.items[0]
	q.items = q.items[1:]
	q.clock.advance(q.steps[0])
	q.steps = q.steps[1:]
	return m, true
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestSummaryCadenceThroughCollector(t *testing.T) {
	open, _ := openLog(t)
	clock := &fakeClock{now: t0}
	pub := &fakePublisher{}

	q := &steppedQueue{
		clock: clock,
		items: []metric.Metric{
			at(metric.CPU, 10, 0, 0),
			at(metric.MEM, 20, 0, 0),
			at(metric.CPU, 30, 0, 0),
			at(metric.NET, 5, 5, 0), // crosses 1000ms: summary carries latest CPU/MEM
			at(metric.CPU, 40, 0, 0),
			at(metric.MEM, 50, 0, 0),
		},
		steps: []time.Duration{
			100 * time.Millisecond,
			300 * time.Millisecond,
			300 * time.Millisecond,
			300 * time.Millisecond,
			500 * time.Millisecond,
			499 * time.Millisecond,
		},
	}

	cfg := collector.Config{CPUThreshold: 90, MemThreshold: 90, SummaryInterval: time.Second, MaxMsgSize: 128}
	c := collector.New(cfg, q, open, collector.WithPublisher(pub), collector.WithClock(clock.Now))
	c.Run(context.Background())

	assert.Equal(t, []string{"CPU=30.0% MEM=20.0%"}, pub.msgs)

	cpu, mem := c.Latest()
	assert.Equal(t, 40.0, cpu)
	assert.Equal(t, 50.0, mem)
}

func TestPublisherFailureDoesNotStopCollector(t *testing.T) {
	open, path := openLog(t)
	clock := &fakeClock{now: t0}
	pub := &fakePublisher{err: io.ErrShortWrite}

	q := &steppedQueue{
		clock: clock,
		items: []metric.Metric{at(metric.CPU, 10, 0, 0), at(metric.CPU, 20, 0, 0)},
		steps: []time.Duration{2 * time.Second, 2 * time.Second},
	}

	cfg := collector.Config{CPUThreshold: 90, MemThreshold: 90, SummaryInterval: time.Second}
	collector.New(cfg, q, open, collector.WithPublisher(pub), collector.WithClock(clock.Now)).Run(context.Background())

	assert.Len(t, readLines(t, path), 2)
	assert.Empty(t, pub.msgs)
}

// Package collector implements the single consumer of the sample queue: it
// persists each record, evaluates alert thresholds and drives the periodic
// summary.
package collector

import (
	"context"
	"time"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/history"
	"codeberg.org/mutker/sysmon/internal/logger"
	"codeberg.org/mutker/sysmon/internal/metric"
	"codeberg.org/mutker/sysmon/internal/store"
)

// Queue is the consumer side of the sample queue.
type Queue interface {
	Pop() (metric.Metric, bool)
}

// RecordLog is the durable append-only record store.
type RecordLog interface {
	Append(lines ...string) error
	Close() error
}

// Opener opens the record log when the collector starts.
type Opener func() (RecordLog, error)

// Config holds the collector's share of the monitor configuration.
type Config struct {
	CPUThreshold    float64
	MemThreshold    float64
	SummaryInterval time.Duration
	MaxMsgSize      int
	RunID           string
}

type Option func(*Collector)

// WithPublisher sets the summary channel. Without one, summaries are not sent.
func WithPublisher(p Publisher) Option {
	return func(c *Collector) { c.pub = p }
}

// WithHistory mirrors every persisted record into rec.
func WithHistory(rec history.Recorder) Option {
	return func(c *Collector) { c.history = rec }
}

// WithClock replaces time.Now for summary scheduling.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// Collector drains the queue until it is stopped and empty.
type Collector struct {
	cfg     Config
	queue   Queue
	open    Opener
	pub     Publisher
	history history.Recorder
	now     func() time.Time
	log     logger.Logger

	lastCPU   float64
	lastMem   float64
	processed int
	alerts    int
}

func New(cfg Config, q Queue, open Opener, opts ...Option) *Collector {
	c := &Collector{
		cfg:     cfg,
		queue:   q,
		open:    open,
		history: history.Noop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.With("collector").With("run_id", cfg.RunID)

	return c
}

// Run opens the record log and processes records until the queue reports it
// is stopped and drained. If the log cannot be opened Run returns at once;
// producers are not notified.
func (c *Collector) Run(ctx context.Context) {
	l, err := c.open()
	if err != nil {
		c.log.Error().
			Str("error_code", string(store.ErrOpen)).
			Err(err).
			Msg("Cannot open record log, collector exiting")
		return
	}
	defer func() {
		if err := l.Close(); err != nil {
			c.log.Error().Err(err).Msg("Failed to close record log")
		}
	}()

	// Mirror writes must outlive the stop signal so the drain is recorded too.
	mirrorCtx := context.WithoutCancel(ctx)
	summary := NewSummarizer(c.cfg.SummaryInterval, c.cfg.MaxMsgSize, c.pub, c.now, c.now())

	for {
		m, ok := c.queue.Pop()
		if !ok {
			break
		}
		c.process(mirrorCtx, l, m)
		summary.Maybe(c.lastCPU, c.lastMem)
	}

	c.log.Info().
		Int("records", c.processed).
		Int("alerts", c.alerts).
		Msg("Collector drained")
}

func (c *Collector) process(ctx context.Context, l RecordLog, m metric.Metric) {
	switch m.Kind {
	case metric.CPU, metric.MEM, metric.DISK, metric.NET:
	default:
		return
	}

	lines := make([]string, 1, 2)
	lines[0] = store.FormatRecord(m)

	alert := c.evaluate(m)
	if alert {
		lines = append(lines, store.FormatAlert(m))
		c.alerts++
		c.log.Warn().
			Str("kind", m.Kind.String()).
			Float64("value", m.V1).
			Msg("Threshold reached")
	}

	if err := l.Append(lines...); err != nil {
		c.log.ErrorWithCode(errors.New().Wrap(ErrPersist, err)).Msg("Failed to persist record")
	}
	c.processed++

	c.mirror(ctx, m, false)
	if alert {
		c.mirror(ctx, m, true)
	}
}

// evaluate updates the rolling CPU/MEM values and reports whether m reaches
// its threshold.
func (c *Collector) evaluate(m metric.Metric) bool {
	switch m.Kind {
	case metric.CPU:
		c.lastCPU = m.V1
		return m.V1 >= c.cfg.CPUThreshold
	case metric.MEM:
		c.lastMem = m.V1
		return m.V1 >= c.cfg.MemThreshold
	default:
		return false
	}
}

func (c *Collector) mirror(ctx context.Context, m metric.Metric, alert bool) {
	rec := &history.Record{
		RunID:     c.cfg.RunID,
		Timestamp: m.Millis(),
		Kind:      m.Kind.String(),
		V1:        m.V1,
		V2:        m.V2,
		Alert:     alert,
	}
	if err := c.history.Record(ctx, rec); err != nil {
		c.log.Debug().Err(err).Msg("History mirror write failed")
	}
}

// Latest returns the most recent CPU and MEM values seen.
func (c *Collector) Latest() (cpu, mem float64) {
	return c.lastCPU, c.lastMem
}

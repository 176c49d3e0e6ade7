// Package monitor coordinates one monitoring run: it starts the samplers and
// the collector, waits for the stop signal, then drains and releases every
// resource it acquired.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"

	"codeberg.org/mutker/sysmon/internal/collector"
	"codeberg.org/mutker/sysmon/internal/config"
	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/history"
	"codeberg.org/mutker/sysmon/internal/ipc"
	"codeberg.org/mutker/sysmon/internal/logger"
	"codeberg.org/mutker/sysmon/internal/metric"
	"codeberg.org/mutker/sysmon/internal/pid"
	"codeberg.org/mutker/sysmon/internal/queue"
	"codeberg.org/mutker/sysmon/internal/sampler"
	"codeberg.org/mutker/sysmon/internal/store"
	"github.com/google/uuid"
)

type Option func(*Monitor)

// WithSource replaces the host source read by the samplers.
func WithSource(src sampler.Source) Option {
	return func(m *Monitor) { m.src = src }
}

// WithHistory replaces the recorder built from the configuration.
func WithHistory(rec history.Recorder) Option {
	return func(m *Monitor) { m.recorder = rec }
}

// WithRunID sets the identifier attached to log entries and history rows.
func WithRunID(id string) Option {
	return func(m *Monitor) { m.runID = id }
}

// Monitor is single-use: Run may be called once per instance.
type Monitor struct {
	cfg      *config.Config
	src      sampler.Source
	recorder history.Recorder
	runID    string
	log      logger.Logger

	state atomic.Int32
	used  atomic.Bool
}

func New(cfg *config.Config, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:   cfg,
		runID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.src == nil {
		m.src = sampler.NewHostSource()
	}
	m.log = logger.With("monitor").With("run_id", m.runID)

	return m
}

func (m *Monitor) State() State {
	return State(m.state.Load())
}

func (m *Monitor) RunID() string {
	return m.runID
}

func (m *Monitor) setState(s State) {
	m.state.Store(int32(s))
	m.log.Debug().Str("state", s.String()).Msg("Lifecycle transition")
}

// Run executes the monitor until ctx is cancelled. It returns an error only
// when startup cannot proceed; everything acquired before the failure is
// released.
func (m *Monitor) Run(ctx context.Context) error {
	errFactory := errors.New()

	if !m.used.CompareAndSwap(false, true) {
		return errFactory.New(ErrAlreadyRun)
	}

	// INIT
	m.setState(StateInit)

	if m.cfg.PIDFile != "" {
		if err := pid.Write(m.cfg.PIDFile); err != nil {
			m.setState(StateTerminated)
			return err
		}
	}

	channelOpts := ipc.Options{
		Dir:     m.cfg.ChannelDir,
		Depth:   m.cfg.ChannelDepth,
		MsgSize: m.cfg.ChannelMsgSize,
	}
	channel, err := ipc.Create(m.cfg.Channel, channelOpts)
	if err != nil {
		m.log.Warn().Err(err).Str("channel", m.cfg.Channel).Msg("Summary channel unavailable, summaries disabled")
		channel = nil
	}

	recorder := m.recorder
	if recorder == nil {
		recorder, err = history.NewService(history.Config{
			DBPath:        m.cfg.HistoryDB,
			Enabled:       m.cfg.History,
			BatchSize:     m.cfg.HistoryBatch,
			FlushInterval: m.cfg.HistoryFlush,
		})
		if err != nil {
			m.log.Warn().Err(err).Msg("History mirror unavailable, continuing without it")
			recorder = history.Noop()
		}
	}

	q := queue.New[metric.Metric](ctx, queue.DefaultCapacity)

	opts := []collector.Option{collector.WithHistory(recorder)}
	if channel != nil {
		opts = append(opts, collector.WithPublisher(channel))
	}
	logPath, fsync := m.cfg.LogPath, m.cfg.Fsync
	coll := collector.New(collector.Config{
		CPUThreshold:    m.cfg.CPUThreshold,
		MemThreshold:    m.cfg.MemThreshold,
		SummaryInterval: m.cfg.SummaryInterval,
		MaxMsgSize:      m.cfg.ChannelMsgSize,
		RunID:           m.runID,
	}, q, func() (collector.RecordLog, error) {
		return store.Open(logPath, fsync)
	}, opts...)

	samplers := []sampler.Sampler{
		sampler.NewCPU(m.src, m.cfg.CPUWindow),
		sampler.NewMemory(m.src),
		sampler.NewDisk(m.src),
		sampler.NewNet(m.src),
	}

	var wg sync.WaitGroup
	for _, s := range samplers {
		wg.Add(1)
		go func(s sampler.Sampler) {
			defer wg.Done()
			sampler.Loop(ctx, s, m.cfg.SampleInterval, q)
		}(s)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		coll.Run(ctx)
	}()

	// RUNNING
	m.setState(StateRunning)
	m.log.Info().
		Float64("cpu_threshold", m.cfg.CPUThreshold).
		Float64("mem_threshold", m.cfg.MemThreshold).
		Dur("sample_interval", m.cfg.SampleInterval).
		Dur("summary_interval", m.cfg.SummaryInterval).
		Str("log_path", m.cfg.LogPath).
		Bool("summaries", channel != nil).
		Msg("Monitor running")

	<-ctx.Done()

	// STOPPING
	m.setState(StateStopping)
	q.Wake()
	wg.Wait()

	// TERMINATED
	q.Close()
	if channel != nil {
		if err := channel.Close(); err != nil {
			m.log.Warn().Err(err).Msg("Failed to close summary channel")
		}
		if err := ipc.Unlink(m.cfg.Channel, channelOpts); err != nil {
			m.log.Warn().Err(err).Msg("Failed to remove summary channel")
		}
	}
	if err := recorder.Close(); err != nil {
		m.log.Warn().Err(err).Msg("Failed to close history mirror")
	}
	if m.cfg.PIDFile != "" {
		if err := pid.Remove(m.cfg.PIDFile); err != nil {
			m.log.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}
	m.setState(StateTerminated)
	m.log.Info().Msg("Monitor stopped")

	return nil
}

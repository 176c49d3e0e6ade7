package config

import (
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/sysmon/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultCPUThreshold    = 85.0
	DefaultMemThreshold    = 85.0
	DefaultSampleInterval  = 500 * time.Millisecond
	DefaultSummaryInterval = 3 * time.Second
	DefaultCPUWindow       = 200 * time.Millisecond
	DefaultChannel         = "/sysmon_queue"
	DefaultChannelDepth    = 10
	DefaultChannelMsgSize  = 128
	DefaultLogPath         = "data/logs/resource_log.txt"
	DefaultPIDFile         = "data/monitor.pid"
	DefaultLogLevel        = "info"
	DefaultHistoryDB       = "data/history.db"
	DefaultHistoryBatch    = 32
	DefaultHistoryFlush    = 5 * time.Second

	defaultEnvPrefix  = "SYSMON"
	defaultConfigName = "sysmon"

	// A FIFO write of at most PIPE_BUF bytes is atomic.
	maxChannelMsgSize = 4096
	minChannelMsgSize = 16
)

// Config is built once at startup and never mutated afterwards.
type Config struct {
	CPUThreshold    float64       `mapstructure:"cpu_threshold"`
	MemThreshold    float64       `mapstructure:"mem_threshold"`
	SampleInterval  time.Duration `mapstructure:"sample_interval"`
	SummaryInterval time.Duration `mapstructure:"summary_interval"`
	CPUWindow       time.Duration `mapstructure:"cpu_window"`

	Channel        string `mapstructure:"channel"`
	ChannelDir     string `mapstructure:"channel_dir"`
	ChannelDepth   int    `mapstructure:"channel_depth"`
	ChannelMsgSize int    `mapstructure:"channel_msg_size"`

	LogPath  string `mapstructure:"log_path"`
	Fsync    bool   `mapstructure:"fsync"`
	PIDFile  string `mapstructure:"pid_file"`
	LogLevel string `mapstructure:"log_level"`

	History      bool          `mapstructure:"history"`
	HistoryDB    string        `mapstructure:"history_db"`
	HistoryBatch int           `mapstructure:"history_batch"`
	HistoryFlush time.Duration `mapstructure:"history_flush"`
}

// Default returns the configuration used when no file, environment or flag
// overrides a value.
func Default() *Config {
	return &Config{
		CPUThreshold:    DefaultCPUThreshold,
		MemThreshold:    DefaultMemThreshold,
		SampleInterval:  DefaultSampleInterval,
		SummaryInterval: DefaultSummaryInterval,
		CPUWindow:       DefaultCPUWindow,
		Channel:         DefaultChannel,
		ChannelDir:      os.TempDir(),
		ChannelDepth:    DefaultChannelDepth,
		ChannelMsgSize:  DefaultChannelMsgSize,
		LogPath:         DefaultLogPath,
		PIDFile:         DefaultPIDFile,
		LogLevel:        DefaultLogLevel,
		HistoryDB:       DefaultHistoryDB,
		HistoryBatch:    DefaultHistoryBatch,
		HistoryFlush:    DefaultHistoryFlush,
	}
}

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"cpu-threshold":    "cpu_threshold",
	"mem-threshold":    "mem_threshold",
	"sample-interval":  "sample_interval",
	"summary-interval": "summary_interval",
	"cpu-window":       "cpu_window",
	"channel":          "channel",
	"channel-dir":      "channel_dir",
	"channel-depth":    "channel_depth",
	"channel-msg-size": "channel_msg_size",
	"log-path":         "log_path",
	"fsync":            "fsync",
	"pid-file":         "pid_file",
	"log-level":        "log_level",
	"history":          "history",
	"history-db":       "history_db",
	"history-batch":    "history_batch",
	"history-flush":    "history_flush",
}

// Flags returns the flag set understood by Load, populated with defaults.
func Flags() *pflag.FlagSet {
	d := Default()
	fs := pflag.NewFlagSet("sysmon", pflag.ContinueOnError)

	fs.Float64("cpu-threshold", d.CPUThreshold, "CPU usage alert threshold (percent)")
	fs.Float64("mem-threshold", d.MemThreshold, "Memory usage alert threshold (percent)")
	fs.Duration("sample-interval", d.SampleInterval, "Interval between samples of each sampler")
	fs.Duration("summary-interval", d.SummaryInterval, "Interval between published summaries")
	fs.Duration("cpu-window", d.CPUWindow, "Window between the two CPU counter snapshots")
	fs.String("channel", d.Channel, "Name of the summary channel")
	fs.String("channel-dir", d.ChannelDir, "Directory holding the summary channel")
	fs.Int("channel-depth", d.ChannelDepth, "Maximum number of pending summaries")
	fs.Int("channel-msg-size", d.ChannelMsgSize, "Maximum summary message size in bytes")
	fs.String("log-path", d.LogPath, "Path of the durable record log")
	fs.Bool("fsync", d.Fsync, "Sync the record log to disk after every record")
	fs.String("pid-file", d.PIDFile, "Path of the PID file")
	fs.String("log-level", d.LogLevel, "Log level (debug, info, warning, error)")
	fs.Bool("history", d.History, "Mirror records into a SQLite history database")
	fs.String("history-db", d.HistoryDB, "Path of the SQLite history database")
	fs.Int("history-batch", d.HistoryBatch, "Records buffered before a history flush")
	fs.Duration("history-flush", d.HistoryFlush, "Maximum time between history flushes")

	return fs
}

// Load builds the configuration from flags (args, without the program name),
// environment, config file and defaults, in that order of precedence.
func Load(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: defaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
	}
	if o.configPath == "" {
		o.configPath = os.Getenv(o.envPrefix + "_CONFIG")
	}

	fs := o.flags
	if fs == nil {
		fs = Flags()
	}
	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	for flagName, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.AutomaticEnv()

	// Load configuration from file
	v.SetConfigType("toml")
	if o.configPath != "" {
		v.SetConfigFile(o.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(filepath.Join("/etc", defaultConfigName))
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks every value for consistency.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.CPUThreshold <= 0 || c.CPUThreshold > 100 {
		return errFactory.WithData(errors.ErrInvalidThreshold, c.CPUThreshold)
	}
	if c.MemThreshold <= 0 || c.MemThreshold > 100 {
		return errFactory.WithData(errors.ErrInvalidThreshold, c.MemThreshold)
	}
	if c.SampleInterval <= 0 || c.SummaryInterval <= 0 || c.CPUWindow < 0 {
		return errFactory.New(errors.ErrInvalidInterval)
	}
	if c.Channel == "" || c.LogPath == "" || c.PIDFile == "" {
		return errFactory.New(errors.ErrMissingConfig)
	}
	if c.ChannelDepth < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, "channel_depth")
	}
	if c.ChannelMsgSize < minChannelMsgSize || c.ChannelMsgSize > maxChannelMsgSize {
		return errFactory.WithData(errors.ErrInvalidConfig, "channel_msg_size")
	}
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.History {
		if c.HistoryDB == "" {
			return errFactory.New(errors.ErrMissingConfig)
		}
		if c.HistoryBatch < 1 || c.HistoryFlush <= 0 {
			return errFactory.WithData(errors.ErrInvalidConfig, "history")
		}
	}

	return nil
}

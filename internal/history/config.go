package history

import (
	"path/filepath"
	"time"

	"codeberg.org/mutker/sysmon/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm       = 0o755
	defaultDBPath        = "data/history.db"
	defaultBatchSize     = 32
	defaultFlushInterval = 5 * time.Second
	backupDirName        = "backups"
)

type Config struct {
	DBPath        string
	Enabled       bool
	BatchSize     int
	FlushInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		DBPath:        defaultDBPath,
		BatchSize:     defaultBatchSize,
		FlushInterval: defaultFlushInterval,
		Enabled:       false, // Disabled by default
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate when the mirror is enabled
	if !c.Enabled {
		return nil
	}
	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 1 || c.FlushInterval <= 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			BatchSize     int
			FlushInterval time.Duration
		}{
			BatchSize:     c.BatchSize,
			FlushInterval: c.FlushInterval,
		})
	}
	return nil
}

func (c Config) backupDir() string {
	return filepath.Join(filepath.Dir(c.DBPath), backupDirName)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

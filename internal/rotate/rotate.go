// Package rotate prunes old log files by modification age.
package rotate

import (
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
)

// DefaultDays is the retention used by sysmonctl cleanup.
const DefaultDays = 5

// Patterns are the file name globs considered for pruning.
var Patterns = []string{"*.txt", "*.log"}

// Options controls a Prune pass.
type Options struct {
	// MaxAge removes files whose modification time is older than now-MaxAge.
	MaxAge time.Duration
	// Keep is never removed, typically the active record log.
	Keep string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Prune removes regular files in dir matching Patterns that are older than
// opts.MaxAge, returning the removed paths. Subdirectories are not visited.
// A missing dir is not an error.
func Prune(dir string, opts Options) ([]string, error) {
	errFactory := errors.New()

	if opts.MaxAge <= 0 {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "retention must be positive")
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	cutoff := now().Add(-opts.MaxAge)

	keep := ""
	if opts.Keep != "" {
		keep, _ = filepath.Abs(opts.Keep)
	}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrOperationFailed, err)
	}

	var removed []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !matches(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if abs, _ := filepath.Abs(path); keep != "" && abs == keep {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to remove old log file")
			continue
		}
		logger.Debug().Str("path", path).Time("modified", info.ModTime()).Msg("Removed old log file")
		removed = append(removed, path)
	}

	return removed, nil
}

func matches(name string) bool {
	for _, pattern := range Patterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}

	return false
}

// Package store persists records to an append-only text log.
package store

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"codeberg.org/mutker/sysmon/internal/errors"
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

// Log is an append-only record file. Every Append reaches the kernel before
// it returns, so a process crash loses nothing already appended. With fsync
// enabled the file is also synced to stable storage.
type Log struct {
	mu    sync.Mutex
	f     *os.File
	path  string
	fsync bool
}

// Open opens (creating if needed) the log at path for appending.
func Open(path string, fsync bool) (*Log, error) {
	errFactory := errors.New()

	if path == "" {
		return nil, errFactory.New(ErrInvalidPath)
	}

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrOpen, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  path,
			Error: err.Error(),
		})
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, defaultFilePerm)
	if err != nil {
		return nil, errFactory.WithData(ErrOpen, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "open_file",
			Path:  path,
			Error: err.Error(),
		})
	}

	return &Log{f: f, path: path, fsync: fsync}, nil
}

// Path returns the file path of the log.
func (l *Log) Path() string {
	return l.path
}

// Append writes each line followed by a newline in a single write.
func (l *Log) Append(lines ...string) error {
	if len(lines) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	errFactory := errors.New()
	if _, err := l.f.WriteString(sb.String()); err != nil {
		return errFactory.Wrap(ErrWrite, err)
	}
	if l.fsync {
		if err := l.f.Sync(); err != nil {
			return errFactory.Wrap(ErrWrite, err)
		}
	}

	return nil
}

// Close syncs and closes the file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	errFactory := errors.New()
	if err := l.f.Sync(); err != nil {
		l.f.Close()
		return errFactory.Wrap(ErrClose, err)
	}
	if err := l.f.Close(); err != nil {
		return errFactory.Wrap(ErrClose, err)
	}

	return nil
}

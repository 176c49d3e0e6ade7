// Package pid manages the monitor's PID file.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/sysmon/internal/errors"
)

const defaultFilePerm = 0o644

// Write writes the current process ID to path. It refuses to overwrite a PID
// file that names a live process.
func Write(path string) error {
	errFactory := errors.New()

	if existing, err := Read(path); err == nil {
		if Alive(existing) && existing != os.Getpid() {
			return errFactory.WithData(errors.ErrAlreadyRunning, struct {
				PID  int
				Path string
			}{
				PID:  existing,
				Path: path,
			})
		}
	} else if !errors.HasCode(err, errors.ErrResourceNotFound) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), defaultFilePerm)
	if err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Read returns the process ID stored at path. A missing file yields
// resource_not_found; a stale file with garbage in it is treated the same.
func Read(path string) (int, error) {
	errFactory := errors.New()

	bytes, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, errFactory.New(errors.ErrResourceNotFound)
	}
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrInternal, err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
	if err != nil || pid <= 0 {
		return 0, errFactory.WithMessage(errors.ErrResourceNotFound, "PID file is malformed")
	}

	return pid, nil
}

// Alive reports whether a process with the given pid exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}

// Remove removes the PID file. A missing file is not an error.
func Remove(path string) error {
	errFactory := errors.New()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(path); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

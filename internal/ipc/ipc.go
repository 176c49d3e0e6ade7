// Package ipc provides a named, bounded, cross-process message channel.
//
// Messages travel as fixed-size frames through a FIFO in a shared directory.
// A publisher creates the channel and sends without blocking; any number of
// listeners may open it read-only, and each frame is delivered to exactly one
// of them.
package ipc

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultDepth   = 10
	DefaultMsgSize = 128

	defaultFilePerm = 0o644
)

// Options configures the channel location and bounds.
type Options struct {
	// Dir holds the channel file. Defaults to the OS temp directory.
	Dir string
	// Depth is the maximum number of undelivered messages.
	Depth int
	// MsgSize is the frame size; longer messages are rejected.
	MsgSize int
}

func (o Options) withDefaults() Options {
	if o.Dir == "" {
		o.Dir = os.TempDir()
	}
	if o.Depth <= 0 {
		o.Depth = DefaultDepth
	}
	if o.MsgSize <= 0 {
		o.MsgSize = DefaultMsgSize
	}
	return o
}

// Path returns the file backing the named channel. Names follow the
// "/name" convention of POSIX message queues; slashes are flattened.
func Path(name string, opts Options) string {
	o := opts.withDefaults()
	name = strings.ReplaceAll(strings.TrimLeft(name, "/"), "/", "_")

	return filepath.Join(o.Dir, name)
}

// Unlink removes the named channel. Removing a missing channel is not an error.
func Unlink(name string, opts Options) error {
	if err := os.Remove(Path(name, opts)); err != nil && !os.IsNotExist(err) {
		return errFactory.Wrap(ErrUnlink, err)
	}

	return nil
}

//go:build linux

package ipc

import (
	"bytes"
	"io"
	"os"
	"sync"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
	"golang.org/x/sys/unix"
)

// FIFO is one end of a named channel.
type FIFO struct {
	name    string
	path    string
	depth   int
	msgSize int

	mu     sync.Mutex
	fd     int      // publisher end, -1 once closed
	reader *os.File // listener end
}

// Create makes the named channel if needed and opens it for sending. The
// publisher also holds the read side so the channel stays open, and sends
// never block, whether or not a listener is attached.
func Create(name string, opts Options) (*FIFO, error) {
	o := opts.withDefaults()
	path := Path(name, o)

	if err := unix.Mkfifo(path, defaultFilePerm); err != nil && !errors.Is(err, unix.EEXIST) {
		return nil, errFactory.WithData(ErrUnavailable, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "mkfifo",
			Path:  path,
			Error: err.Error(),
		})
	}

	if err := checkFIFO(path); err != nil {
		return nil, err
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errFactory.WithData(ErrUnavailable, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "open",
			Path:  path,
			Error: err.Error(),
		})
	}

	// The kernel rounds the pipe size up to a page; depth itself is enforced in Send.
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETPIPE_SZ, o.Depth*o.MsgSize); err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("Failed to size channel pipe")
	}

	return &FIFO{
		name:    name,
		path:    path,
		depth:   o.Depth,
		msgSize: o.MsgSize,
		fd:      fd,
	}, nil
}

// Open attaches a listener to an existing named channel. It blocks until a
// publisher has the channel open.
func Open(name string, opts Options) (*FIFO, error) {
	o := opts.withDefaults()
	path := Path(name, o)

	if err := checkFIFO(path); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, errFactory.Wrap(ErrUnavailable, err)
	}

	return &FIFO{
		name:    name,
		path:    path,
		depth:   o.Depth,
		msgSize: o.MsgSize,
		fd:      -1,
		reader:  f,
	}, nil
}

func checkFIFO(path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return errFactory.Wrap(ErrUnavailable, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFIFO {
		return errFactory.WithData(ErrNotChannel, path)
	}

	return nil
}

// Name returns the channel name.
func (f *FIFO) Name() string {
	return f.name
}

// Send queues msg as one frame. It fails with ErrFull when depth messages
// are already pending and never blocks.
func (f *FIFO) Send(msg []byte) error {
	if len(msg) > f.msgSize {
		return errFactory.WithData(ErrTooLarge, len(msg))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fd < 0 {
		return errFactory.New(ErrClosed)
	}

	pending, err := unix.IoctlGetInt(f.fd, unix.TIOCINQ)
	if err == nil && pending/f.msgSize >= f.depth {
		return errFactory.New(ErrFull)
	}

	frame := make([]byte, f.msgSize)
	copy(frame, msg)

	n, err := unix.Write(f.fd, frame)
	if errors.Is(err, unix.EAGAIN) {
		return errFactory.New(ErrFull)
	}
	if err != nil {
		return errFactory.Wrap(ErrSend, err)
	}
	if n != len(frame) {
		return errFactory.WithData(ErrSend, n)
	}

	return nil
}

// Receive blocks for the next message. It returns an error wrapping io.EOF
// once every publisher has closed the channel and it is drained.
func (f *FIFO) Receive() ([]byte, error) {
	if f.reader == nil {
		return nil, errFactory.New(ErrClosed)
	}

	frame := make([]byte, f.msgSize)
	if _, err := io.ReadFull(f.reader, frame); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
			return nil, errFactory.Wrap(ErrClosed, err)
		}
		return nil, errFactory.Wrap(ErrReceive, err)
	}

	return bytes.TrimRight(frame, "\x00"), nil
}

// Close releases this end of the channel. It does not remove the channel.
func (f *FIFO) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.reader != nil {
		return f.reader.Close()
	}
	if f.fd < 0 {
		return nil
	}

	err := unix.Close(f.fd)
	f.fd = -1

	return err
}

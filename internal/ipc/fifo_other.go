//go:build !linux

package ipc

// FIFO is one end of a named channel.
type FIFO struct {
	name string
}

// Create is not supported on this platform; summaries are disabled.
func Create(string, Options) (*FIFO, error) {
	return nil, errFactory.New(ErrUnsupported)
}

// Open is not supported on this platform.
func Open(string, Options) (*FIFO, error) {
	return nil, errFactory.New(ErrUnsupported)
}

func (f *FIFO) Name() string           { return f.name }
func (*FIFO) Send([]byte) error        { return errFactory.New(ErrUnsupported) }
func (*FIFO) Receive() ([]byte, error) { return nil, errFactory.New(ErrUnsupported) }
func (*FIFO) Close() error             { return nil }

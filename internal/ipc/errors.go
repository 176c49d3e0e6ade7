package ipc

import "codeberg.org/mutker/sysmon/internal/errors"

var errFactory = errors.New()

const (
	ErrUnavailable = errors.ErrorCode("ipc_unavailable")
	ErrUnsupported = errors.ErrorCode("ipc_unsupported")
	ErrNotChannel  = errors.ErrorCode("ipc_not_a_channel")
	ErrFull        = errors.ErrorCode("ipc_channel_full")
	ErrTooLarge    = errors.ErrorCode("ipc_message_too_large")
	ErrSend        = errors.ErrorCode("ipc_send_failed")
	ErrReceive     = errors.ErrorCode("ipc_receive_failed")
	ErrClosed      = errors.ErrorCode("ipc_channel_closed")
	ErrUnlink      = errors.ErrorCode("ipc_unlink_failed")
)

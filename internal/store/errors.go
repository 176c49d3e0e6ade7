package store

import "codeberg.org/mutker/sysmon/internal/errors"

const (
	ErrInvalidPath = errors.ErrorCode("store_invalid_path")
	ErrOpen        = errors.ErrorCode("store_open_failed")
	ErrWrite       = errors.ErrorCode("store_write_failed")
	ErrClose       = errors.ErrorCode("store_close_failed")
)

package monitor

import "codeberg.org/mutker/sysmon/internal/errors"

// ErrAlreadyRun is returned by Run on an instance that has already run.
const ErrAlreadyRun = errors.ErrorCode("monitor_already_run")

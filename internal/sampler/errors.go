package sampler

import "codeberg.org/mutker/sysmon/internal/errors"

const (
	ErrSourceRead = errors.ErrorCode("sampler_source_read_failed")
	ErrNoCounters = errors.ErrorCode("sampler_no_counters")
)

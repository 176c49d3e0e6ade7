package collector

import "codeberg.org/mutker/sysmon/internal/errors"

const (
	ErrPersist = errors.ErrorCode("collector_persist_failed")
	ErrPublish = errors.ErrorCode("collector_publish_failed")
)

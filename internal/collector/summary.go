package collector

import (
	"fmt"
	"time"

	"codeberg.org/mutker/sysmon/internal/logger"
)

// Publisher delivers a summary message to listeners. Delivery is best-effort.
type Publisher interface {
	Send(msg []byte) error
}

// FormatSummary renders the status line "CPU=<pct>% MEM=<pct>%", cut to at
// most maxSize bytes when maxSize is positive.
func FormatSummary(cpu, mem float64, maxSize int) []byte {
	msg := []byte(fmt.Sprintf("CPU=%.1f%% MEM=%.1f%%", cpu, mem))
	if maxSize > 0 && len(msg) > maxSize {
		msg = msg[:maxSize]
	}

	return msg
}

// Summarizer emits a summary at most once per interval. It is driven inline
// by the collector after each processed record.
type Summarizer struct {
	interval time.Duration
	maxSize  int
	pub      Publisher
	now      func() time.Time
	log      logger.Logger

	last time.Time
}

// NewSummarizer returns a Summarizer whose first window starts at start.
// A nil pub disables delivery but not the cadence.
func NewSummarizer(interval time.Duration, maxSize int, pub Publisher, now func() time.Time, start time.Time) *Summarizer {
	return &Summarizer{
		interval: interval,
		maxSize:  maxSize,
		pub:      pub,
		now:      now,
		log:      logger.With("summary"),
		last:     start,
	}
}

// Maybe emits a summary of cpu and mem if interval has elapsed since the last
// one and reports whether it did. Send failures are logged and dropped.
func (s *Summarizer) Maybe(cpu, mem float64) bool {
	now := s.now()
	if now.Sub(s.last) < s.interval {
		return false
	}
	s.last = now

	if s.pub == nil {
		return true
	}

	msg := FormatSummary(cpu, mem, s.maxSize)
	if err := s.pub.Send(msg); err != nil {
		s.log.Debug().
			Str("error_code", string(ErrPublish)).
			Err(err).
			Bytes("summary", msg).
			Msg("Summary not delivered")
		return true
	}

	s.log.Debug().Bytes("summary", msg).Msg("Summary published")
	return true
}

// Package metric defines the sample record that flows from the samplers
// through the queue to the collector.
package metric

import "time"

// Kind identifies what a Metric measures.
type Kind uint8

const (
	CPU Kind = iota
	MEM
	DISK
	NET
	SUMMARY
)

// Sentinel is reported in place of a value when the host source could not be read.
const Sentinel = -1.0

var kindNames = [...]string{
	CPU:     "CPU",
	MEM:     "MEM",
	DISK:    "DISK",
	NET:     "NET",
	SUMMARY: "SUMMARY",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return "UNKNOWN"
}

// Metric is a single sample. V1 and V2 carry a percentage for CPU and MEM
// (V2 unused) and raw counter deltas for DISK (sectors read, written) and
// NET (bytes received, sent).
type Metric struct {
	Kind      Kind
	V1        float64
	V2        float64
	Timestamp time.Time
}

// New returns a Metric stamped with the current time.
func New(kind Kind, v1, v2 float64) Metric {
	return Metric{
		Kind:      kind,
		V1:        v1,
		V2:        v2,
		Timestamp: time.Now(),
	}
}

// Millis returns the timestamp in milliseconds since the Unix epoch.
func (m Metric) Millis() int64 {
	return m.Timestamp.UnixMilli()
}

// Alertable reports whether the kind is subject to threshold alerts.
func (k Kind) Alertable() bool {
	return k == CPU || k == MEM
}

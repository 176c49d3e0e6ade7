package history

import "context"

// Recorder mirrors persisted records into the history database.
type Recorder interface {
	Record(ctx context.Context, rec *Record) error
	Close() error
}

// Repository defines the interface for history data storage
type Repository interface {
	Record(rec *Record) error
	Close() error
}

// Record is one persisted line of the record log. Alert records carry the
// value that crossed the threshold.
type Record struct {
	RunID     string
	Timestamp int64 // milliseconds since epoch
	Kind      string
	V1        float64
	V2        float64
	Alert     bool
}

// Package history mirrors every persisted record into a SQLite database.
package history

import (
	"context"

	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/logger"
)

type service struct {
	repo Repository
	cfg  Config
}

// No-op implementation
type noopRecorder struct{}

// NewService returns a Recorder for cfg, or a no-op Recorder when the mirror
// is disabled.
func NewService(cfg Config) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If the mirror is disabled, return a no-op recorder
	if !cfg.Enabled {
		logger.Debug().Msg("History mirror disabled, using no-op recorder")
		return &noopRecorder{}, nil
	}

	repo, err := NewRepository(cfg, logger.With("history"))
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to create history repository")
		return nil, err
	}

	logger.Debug().
		Str("db_path", cfg.DBPath).
		Bool("enabled", cfg.Enabled).
		Msg("History service initialized successfully")

	return &service{
		repo: repo,
		cfg:  cfg,
	}, nil
}

// Noop returns a Recorder that discards everything.
func Noop() Recorder {
	return &noopRecorder{}
}

func (s *service) Record(ctx context.Context, rec *Record) error {
	errFactory := errors.New()

	if rec == nil {
		return errFactory.New(ErrInvalidRecord)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Record(rec); err != nil {
			return errFactory.Wrap(ErrRecord, err)
		}
	}

	return nil
}

func (s *service) Close() error {
	errFactory := errors.New()

	if err := s.repo.Close(); err != nil {
		return errFactory.Wrap(ErrServiceShutdown, err)
	}
	return nil
}

// No-op implementation
func (*noopRecorder) Record(_ context.Context, _ *Record) error {
	return nil
}

func (*noopRecorder) Close() error {
	return nil
}

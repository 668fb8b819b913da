package usecase

import (
	"context"
	"log/slog"
	"time"

	"cinemastream/internal/domain"
	"cinemastream/internal/domain/ports"
)

// RecordProgress keeps local playback positions when no media server is in
// charge of them. Store failures are logged and swallowed.
type RecordProgress struct {
	Repo   ports.ProgressRepository
	Logger *slog.Logger
	Now    func() time.Time
}

var _ ports.ProgressReporter = RecordProgress{}

func (uc RecordProgress) ReportProgress(ctx context.Context, p domain.PlaybackProgress) error {
	uc.store(ctx, p)
	return nil
}

func (uc RecordProgress) ReportStopped(ctx context.Context, p domain.PlaybackProgress) error {
	p.Stopped = true
	uc.store(ctx, p)
	return nil
}

func (uc RecordProgress) store(ctx context.Context, p domain.PlaybackProgress) {
	if uc.Repo == nil {
		return
	}
	now := time.Now
	if uc.Now != nil {
		now = uc.Now
	}
	p.UpdatedAt = now().UTC()
	if err := uc.Repo.Upsert(ctx, p); err != nil {
		logger := uc.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("progress store failed", slog.String("key", p.Key.String()), slog.String("error", err.Error()))
	}
}

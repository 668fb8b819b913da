package ports

import (
	"context"

	"cinemastream/internal/domain"
)

type ProgressRepository interface {
	Upsert(ctx context.Context, p domain.PlaybackProgress) error
	Get(ctx context.Context, key domain.MediaKey) (domain.PlaybackProgress, error)
	ListRecent(ctx context.Context, limit int) ([]domain.PlaybackProgress, error)
}

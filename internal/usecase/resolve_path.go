package usecase

import (
	"context"
	"fmt"

	"cinemastream/internal/domain"
	"cinemastream/internal/domain/ports"
)

// ResolvePath maps catalog ids to files through the library managers. Every
// call goes to the library manager; results are not cached because files
// appear as downloads complete.
type ResolvePath struct {
	Movies ports.MovieLibrary
	Series ports.SeriesLibrary
}

var _ ports.Resolver = ResolvePath{}

func (uc ResolvePath) Movie(ctx context.Context, tmdbID int) (domain.ResolvedMedia, error) {
	if uc.Movies == nil {
		return domain.ResolvedMedia{}, notConfigured("movie library")
	}
	entry, err := uc.Movies.MovieByTMDB(ctx, tmdbID)
	if err != nil {
		return domain.ResolvedMedia{}, fmt.Errorf("movie %d: %w", tmdbID, err)
	}
	if !entry.HasFile || entry.Path == "" {
		return domain.ResolvedMedia{}, fmt.Errorf("movie %d (%s): %w", tmdbID, entry.Title, domain.ErrNoFile)
	}
	return domain.ResolvedMedia{Kind: domain.KindMovie, Title: entry.Title, Path: entry.Path}, nil
}

func (uc ResolvePath) Episode(ctx context.Context, tmdbID, season, episode int) (domain.ResolvedMedia, error) {
	if uc.Series == nil {
		return domain.ResolvedMedia{}, notConfigured("series library")
	}
	series, err := uc.Series.SeriesByTMDB(ctx, tmdbID)
	if err != nil {
		return domain.ResolvedMedia{}, fmt.Errorf("series %d: %w", tmdbID, err)
	}
	episodes, err := uc.Series.Episodes(ctx, series.ID)
	if err != nil {
		return domain.ResolvedMedia{}, fmt.Errorf("series %d episodes: %w", tmdbID, err)
	}

	for _, ep := range episodes {
		if ep.Season != season || ep.Episode != episode {
			continue
		}
		title := episodeTitle(series.Title, season, episode, ep.Title)
		if !ep.HasFile || ep.EpisodeFileID == 0 {
			return domain.ResolvedMedia{}, fmt.Errorf("%s: %w", title, domain.ErrNoFile)
		}
		path, err := uc.Series.EpisodeFilePath(ctx, ep.EpisodeFileID)
		if err != nil {
			return domain.ResolvedMedia{}, fmt.Errorf("%s file: %w", title, err)
		}
		return domain.ResolvedMedia{Kind: domain.KindEpisode, Title: title, Path: path}, nil
	}
	return domain.ResolvedMedia{}, fmt.Errorf("%w: series %d has no S%02dE%02d", domain.ErrNotFound, tmdbID, season, episode)
}

func episodeTitle(series string, season, episode int, name string) string {
	t := fmt.Sprintf("%s - S%02dE%02d", series, season, episode)
	if name != "" {
		t += " - " + name
	}
	return t
}

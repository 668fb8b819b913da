package usecase

import (
	"errors"
	"fmt"

	"cinemastream/internal/domain"
)

var ErrNotConfigured = errors.New("collaborator not configured")

func notConfigured(what string) error {
	return fmt.Errorf("%w: %w: %s", domain.ErrUpstreamUnavailable, ErrNotConfigured, what)
}

// FailureReason names the internal cause behind a not-found playback result
// for logs and metrics.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNoFile):
		return "no_file"
	case errors.Is(err, domain.ErrNotIndexed):
		return "not_indexed"
	case errors.Is(err, domain.ErrProbeFailed):
		return "probe_failed"
	case errors.Is(err, domain.ErrNotPlayable):
		return "not_playable"
	case errors.Is(err, domain.ErrNotFound):
		return "not_in_library"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "error"
	}
}

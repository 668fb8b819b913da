package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrNoFile              = errors.New("no file on disk yet")
	ErrNotIndexed          = errors.New("not indexed by media server yet")
	ErrProbeFailed         = errors.New("could not determine media info")
	ErrNotPlayable         = errors.New("file has no playable video stream")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrResourceExhausted   = errors.New("transcode capacity exhausted")
	ErrInvalidReference    = errors.New("invalid media reference")
	ErrSessionNotFound     = errors.New("session not found")
	ErrUnsupported         = errors.New("unsupported operation")
)

// IsNotYetAvailable reports whether err describes a title the library knows
// about but which cannot be played yet.
func IsNotYetAvailable(err error) bool {
	return errors.Is(err, ErrNoFile) || errors.Is(err, ErrNotIndexed)
}

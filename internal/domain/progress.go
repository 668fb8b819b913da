package domain

import (
	"fmt"
	"time"
)

// MediaKey identifies a playable title by catalog id.
type MediaKey struct {
	Kind    ContentKind `json:"kind"`
	TMDBID  int         `json:"tmdbId"`
	Season  int         `json:"season,omitempty"`
	Episode int         `json:"episode,omitempty"`
}

func (k MediaKey) String() string {
	if k.Kind == KindEpisode {
		return fmt.Sprintf("%s:%d:%d:%d", k.Kind, k.TMDBID, k.Season, k.Episode)
	}
	return fmt.Sprintf("%s:%d", k.Kind, k.TMDBID)
}

// PlaybackProgress is a position report from the player.
type PlaybackProgress struct {
	Key           MediaKey  `json:"key"`
	PositionMs    int64     `json:"positionMs"`
	DurationMs    int64     `json:"durationMs"`
	Paused        bool      `json:"paused"`
	Stopped       bool      `json:"stopped"`
	ItemID        string    `json:"itemId,omitempty"`
	MediaSourceID string    `json:"mediaSourceId,omitempty"`
	PlaySessionID string    `json:"playSessionId,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Completed is true once the player is within the final five percent.
func (p PlaybackProgress) Completed() bool {
	if p.DurationMs <= 0 {
		return false
	}
	return p.PositionMs*100 >= p.DurationMs*95
}

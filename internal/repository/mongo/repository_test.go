package mongo

import (
	"testing"
	"time"

	"cinemastream/internal/domain"
)

func TestProgressDocToDomain(t *testing.T) {
	now := time.Date(2026, 3, 1, 20, 30, 0, 0, time.UTC)
	doc := progressDoc{
		ID:            "episode:1399:1:2",
		Kind:          "episode",
		TMDBID:        1399,
		Season:        1,
		Episode:       2,
		PositionMs:    600_000,
		DurationMs:    3_300_000,
		Paused:        true,
		ItemID:        "item-1",
		MediaSourceID: "src-1",
		PlaySessionID: "ps-1",
		UpdatedAt:     now.Unix(),
	}

	got := progressDocToDomain(doc)

	if got.Key.String() != doc.ID {
		t.Errorf("key = %q, want %q", got.Key.String(), doc.ID)
	}
	if got.PositionMs != 600_000 || got.DurationMs != 3_300_000 {
		t.Errorf("position/duration = %d/%d", got.PositionMs, got.DurationMs)
	}
	if !got.Paused || got.Stopped {
		t.Errorf("paused/stopped = %v/%v", got.Paused, got.Stopped)
	}
	if got.ItemID != "item-1" || got.MediaSourceID != "src-1" || got.PlaySessionID != "ps-1" {
		t.Errorf("media server ids not mapped: %+v", got)
	}
	if !got.UpdatedAt.Equal(now) || got.UpdatedAt.Location() != time.UTC {
		t.Errorf("UpdatedAt = %v, want %v UTC", got.UpdatedAt, now)
	}
}

func TestProgressDocToDomain_Movie(t *testing.T) {
	got := progressDocToDomain(progressDoc{ID: "movie:550", Kind: "movie", TMDBID: 550})
	want := domain.MediaKey{Kind: domain.KindMovie, TMDBID: 550}
	if got.Key != want {
		t.Errorf("key = %+v, want %+v", got.Key, want)
	}
	if got.Key.String() != "movie:550" {
		t.Errorf("String() = %q", got.Key.String())
	}
}

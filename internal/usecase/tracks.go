package usecase

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"cinemastream/internal/domain"
)

var textSubtitleCodecs = map[string]struct{}{
	"subrip":   {},
	"srt":      {},
	"ass":      {},
	"ssa":      {},
	"webvtt":   {},
	"vtt":      {},
	"mov_text": {},
	"text":     {},
}

func IsTextSubtitle(codec string) bool {
	_, ok := textSubtitleCodecs[strings.ToLower(codec)]
	return ok
}

// buildAudioTracks assigns dense display ids and selects exactly one track:
// the first one marked default, else the first.
func buildAudioTracks(streams []domain.MediaStream) []domain.AudioTrack {
	tracks := make([]domain.AudioTrack, 0, len(streams))
	selected := -1
	for _, s := range streams {
		if s.Type != domain.StreamAudio {
			continue
		}
		if s.Default && selected < 0 {
			selected = len(tracks)
		}
		tracks = append(tracks, domain.AudioTrack{
			ID:          len(tracks),
			StreamIndex: s.Index,
			Language:    s.Language,
			Codec:       s.Codec,
			Channels:    s.Channels,
			Title:       audioTitle(s),
		})
	}
	if len(tracks) == 0 {
		return tracks
	}
	if selected < 0 {
		selected = 0
	}
	tracks[selected].Selected = true
	return tracks
}

func buildSubtitleTracks(streams []domain.MediaStream, urlFor func(domain.MediaStream) string) []domain.SubtitleTrack {
	tracks := make([]domain.SubtitleTrack, 0)
	for _, s := range streams {
		if s.Type != domain.StreamSubtitle {
			continue
		}
		t := domain.SubtitleTrack{
			ID:          len(tracks),
			StreamIndex: s.Index,
			Language:    s.Language,
			Format:      s.Codec,
			Title:       subtitleTitle(s),
			Embedded:    !s.External,
			External:    s.External,
			Forced:      s.Forced,
		}
		if urlFor != nil {
			t.URL = urlFor(s)
		}
		tracks = append(tracks, t)
	}
	return tracks
}

func audioTitle(s domain.MediaStream) string {
	if s.Title != "" {
		return s.Title
	}
	parts := []string{languageName(s.Language)}
	detail := strings.ToUpper(s.Codec)
	if layout := channelLayout(s.Channels); layout != "" {
		detail += " " + layout
	}
	if detail != "" {
		parts = append(parts, "("+detail+")")
	}
	return strings.Join(parts, " ")
}

func subtitleTitle(s domain.MediaStream) string {
	if s.Title != "" {
		return s.Title
	}
	t := languageName(s.Language)
	if s.Forced {
		t += " (Forced)"
	}
	if s.External {
		t += " [External]"
	}
	return t
}

// languageName renders ISO 639-1/639-2 codes in English. Unknown codes are
// returned upper-cased.
func languageName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" || strings.EqualFold(code, "und") {
		return "Unknown"
	}
	base, err := language.ParseBase(code)
	if err != nil {
		return strings.ToUpper(code)
	}
	name := display.English.Languages().Name(base)
	if name == "" {
		return strings.ToUpper(code)
	}
	return name
}

func channelLayout(ch int) string {
	switch ch {
	case 0:
		return ""
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	case 6:
		return "5.1"
	case 8:
		return "7.1"
	default:
		return fmt.Sprintf("%dch", ch)
	}
}

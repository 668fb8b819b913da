package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"cinemastream/internal/domain"
	"cinemastream/internal/domain/ports"
)

// Relative endpoints served by this process. The HTTP layer makes them
// absolute.
const (
	DirectStreamPrefix = "/api/stream/direct/"
	HLSStreamPrefix    = "/api/stream/hls/"
	SubtitlePrefix     = "/api/subtitles/"
)

// LocalPlayback probes files itself and serves them from this process,
// either as byte ranges or through local transcode sessions.
type LocalPlayback struct {
	Resolver ports.Resolver
	Prober   ports.Prober
}

var _ ports.PlaybackProvider = LocalPlayback{}

func (uc LocalPlayback) MoviePlayback(ctx context.Context, tmdbID int) (domain.PlaybackInfo, error) {
	media, err := uc.Resolver.Movie(ctx, tmdbID)
	if err != nil {
		return domain.PlaybackInfo{}, err
	}
	return uc.build(ctx, media)
}

func (uc LocalPlayback) EpisodePlayback(ctx context.Context, tmdbID, season, episode int) (domain.PlaybackInfo, error) {
	media, err := uc.Resolver.Episode(ctx, tmdbID, season, episode)
	if err != nil {
		return domain.PlaybackInfo{}, err
	}
	return uc.build(ctx, media)
}

func (uc LocalPlayback) build(ctx context.Context, media domain.ResolvedMedia) (domain.PlaybackInfo, error) {
	probe, err := uc.Prober.Probe(ctx, media.Path)
	if err != nil {
		return domain.PlaybackInfo{}, fmt.Errorf("%s: %w", media.Title, err)
	}

	video, ok := probe.FirstOf(domain.StreamVideo)
	if !ok {
		return domain.PlaybackInfo{}, fmt.Errorf("%s: %w", media.Title, domain.ErrNotPlayable)
	}

	strategy := domain.StrategyDirect
	primary, hasAudio := probe.FirstOf(domain.StreamAudio)
	if hasAudio {
		strategy = Classify(primary.Codec)
	}

	container := probe.Format.Container
	if container == "" {
		container = strings.TrimPrefix(strings.ToLower(filepath.Ext(media.Path)), ".")
	}

	audio := buildAudioTracks(probe.Streams)
	subs := buildSubtitleTracks(probe.Streams, func(s domain.MediaStream) string {
		src := media.Path
		if s.External && s.SourcePath != "" {
			src = s.SourcePath
		}
		return SubtitlePrefix + domain.SubtitleRef(subtitleRefIndex(s), src)
	})

	info := domain.PlaybackInfo{
		Found:      true,
		Title:      media.Title,
		Kind:       media.Kind,
		Path:       media.Path,
		DurationMs: probe.Format.DurationMillis(),
		MediaInfo: domain.MediaInfo{
			Width:      video.Width,
			Height:     video.Height,
			VideoCodec: video.Codec,
			AudioCodec: primary.Codec,
			Container:  container,
		},
		Strategy:  strategy,
		Audio:     audio,
		Subtitles: subs,
	}

	switch strategy {
	case domain.StrategyDirect:
		info.StreamURL = DirectStreamPrefix + domain.EncodePathRef(media.Path)
	default:
		info.StreamURL = HLSStreamURL(media.Path, selectedStreamIndex(audio))
		info.DirectStreamURL = DirectStreamPrefix + domain.EncodePathRef(media.Path)
	}
	return info, nil
}

// HLSStreamURL is the entry point that acquires a transcode session.
func HLSStreamURL(path string, audioStreamIndex int) string {
	u := HLSStreamPrefix + domain.EncodePathRef(path) + "/master.m3u8"
	if audioStreamIndex >= 0 {
		u += "?audio=" + strconv.Itoa(audioStreamIndex)
	}
	return u
}

// Sidecar files hold a single stream, addressed as index 0 of that file.
func subtitleRefIndex(s domain.MediaStream) int {
	if s.External {
		return 0
	}
	return s.Index
}

func selectedStreamIndex(tracks []domain.AudioTrack) int {
	for _, t := range tracks {
		if t.Selected {
			return t.StreamIndex
		}
	}
	return -1
}

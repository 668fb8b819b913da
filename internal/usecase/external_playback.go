package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cinemastream/internal/domain"
	"cinemastream/internal/domain/ports"
	"cinemastream/internal/metrics"
)

const (
	rescanCooldownKey     = "mediaserver:rescan"
	defaultRescanCooldown = 2 * time.Minute
	rescanTimeout         = 30 * time.Second
)

// ExternalPlayback delegates track listing, the transcode decision and URL
// construction to an external media server. Files are joined to server items
// by path.
type ExternalPlayback struct {
	Resolver       ports.Resolver
	Server         ports.MediaServer
	Cooldown       ports.Cooldown
	RescanCooldown time.Duration
	MaxBitrate     int64
	BurnSubtitles  bool
	Logger         *slog.Logger

	rescans sync.WaitGroup
}

var (
	_ ports.PlaybackProvider = (*ExternalPlayback)(nil)
	_ ports.ProgressReporter = (*ExternalPlayback)(nil)
)

func (uc *ExternalPlayback) MoviePlayback(ctx context.Context, tmdbID int) (domain.PlaybackInfo, error) {
	media, err := uc.Resolver.Movie(ctx, tmdbID)
	if err != nil {
		return domain.PlaybackInfo{}, err
	}
	return uc.build(ctx, media, ports.ItemQuery{Path: media.Path, Kind: domain.KindMovie})
}

func (uc *ExternalPlayback) EpisodePlayback(ctx context.Context, tmdbID, season, episode int) (domain.PlaybackInfo, error) {
	media, err := uc.Resolver.Episode(ctx, tmdbID, season, episode)
	if err != nil {
		return domain.PlaybackInfo{}, err
	}
	return uc.build(ctx, media, ports.ItemQuery{Path: media.Path, Kind: domain.KindEpisode, Season: season, Episode: episode})
}

func (uc *ExternalPlayback) build(ctx context.Context, media domain.ResolvedMedia, q ports.ItemQuery) (domain.PlaybackInfo, error) {
	item, err := uc.Server.FindItemByPath(ctx, q)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			uc.triggerRescan(media.Path)
			return domain.PlaybackInfo{}, fmt.Errorf("%s: %w", media.Title, domain.ErrNotIndexed)
		}
		return domain.PlaybackInfo{}, fmt.Errorf("%s: find item: %w", media.Title, err)
	}

	neg, err := uc.Server.NegotiatePlayback(ctx, item.ID, ports.PlaybackRequest{MaxBitrate: uc.MaxBitrate})
	if err != nil {
		return domain.PlaybackInfo{}, fmt.Errorf("%s: negotiate playback: %w", media.Title, err)
	}
	src := neg.Source

	streams := make([]domain.MediaStream, 0, len(src.Streams))
	byIndex := make(map[int]ports.MediaServerStream, len(src.Streams))
	for _, s := range src.Streams {
		byIndex[s.Index] = s
		ms := domain.MediaStream{
			Index:    s.Index,
			Type:     s.Type,
			Codec:    strings.ToLower(s.Codec),
			Language: s.Language,
			Title:    s.DisplayTitle,
			Default:  s.Default,
			Forced:   s.Forced,
			Width:    s.Width,
			Height:   s.Height,
			Channels: s.Channels,
			External: s.External,
		}
		if s.Type == domain.StreamAudio && src.DefaultAudioIndex >= 0 {
			ms.Default = s.Index == src.DefaultAudioIndex
		}
		streams = append(streams, ms)
	}
	probe := domain.ProbeResult{Streams: streams}

	video, ok := probe.FirstOf(domain.StreamVideo)
	if !ok {
		return domain.PlaybackInfo{}, fmt.Errorf("%s: %w", media.Title, domain.ErrNotPlayable)
	}
	primary, _ := probe.FirstOf(domain.StreamAudio)

	audio := buildAudioTracks(streams)
	subs := buildSubtitleTracks(streams, func(s domain.MediaStream) string {
		return uc.Server.SubtitleURL(item.ID, neg, byIndex[s.Index])
	})

	audioIndex := selectedStreamIndex(audio)
	streamURL := func(subtitle int) string {
		opts := ports.StreamOptions{
			AudioStreamIndex:    audioIndex,
			SubtitleStreamIndex: subtitle,
			MaxBitrate:          uc.MaxBitrate,
			BurnSubtitles:       uc.BurnSubtitles,
		}
		if s, ok := byIndex[subtitle]; ok && !s.TextSubtitle && !s.External {
			opts.BurnSubtitles = true
		}
		return uc.Server.HLSURL(item.ID, neg, opts)
	}
	for i := range subs {
		s := byIndex[subs[i].StreamIndex]
		if uc.BurnSubtitles || (!s.TextSubtitle && !s.External) {
			subs[i].StreamURL = streamURL(subs[i].StreamIndex)
		}
	}

	strategy := StrategyFromExternal(src.SupportsDirectPlay, src.SupportsDirectStream)
	direct := uc.Server.DirectURL(item.ID, neg)
	hls := streamURL(preferredSubtitleIndex(streams))

	info := domain.PlaybackInfo{
		Found:      true,
		Title:      media.Title,
		Kind:       media.Kind,
		Path:       media.Path,
		DurationMs: src.RunTimeTicks / domain.TicksPerMillisecond,
		MediaInfo: domain.MediaInfo{
			Width:      video.Width,
			Height:     video.Height,
			VideoCodec: video.Codec,
			AudioCodec: primary.Codec,
			Container:  src.Container,
		},
		Strategy:        strategy,
		StreamURL:       hls,
		DirectStreamURL: direct,
		Audio:           audio,
		Subtitles:       subs,
		ItemID:          item.ID,
		MediaSourceID:   src.ID,
		PlaySessionID:   neg.PlaySessionID,
	}
	if strategy == domain.StrategyDirect {
		info.StreamURL = direct
	}
	return info, nil
}

// preferredSubtitleIndex picks the track the adaptive stream starts with:
// the first forced subtitle, else the one flagged default, else none.
func preferredSubtitleIndex(streams []domain.MediaStream) int {
	fallback := -1
	for _, s := range streams {
		if s.Type != domain.StreamSubtitle {
			continue
		}
		if s.Forced {
			return s.Index
		}
		if s.Default && fallback < 0 {
			fallback = s.Index
		}
	}
	return fallback
}

// triggerRescan asks the server to rescan its library without waiting for
// it. Rescans are rate limited through the cooldown.
func (uc *ExternalPlayback) triggerRescan(path string) {
	logger := uc.logger()
	uc.rescans.Add(1)
	go func() {
		defer uc.rescans.Done()
		ctx, cancel := context.WithTimeout(context.Background(), rescanTimeout)
		defer cancel()

		if uc.Cooldown != nil {
			ttl := uc.RescanCooldown
			if ttl <= 0 {
				ttl = defaultRescanCooldown
			}
			ok, err := uc.Cooldown.Acquire(ctx, rescanCooldownKey, ttl)
			if err != nil {
				logger.Warn("rescan cooldown check failed", slog.String("error", err.Error()))
			} else if !ok {
				logger.Debug("rescan skipped, cooldown active", slog.String("path", path))
				return
			}
		}
		if err := uc.Server.Refresh(ctx); err != nil {
			logger.Warn("media server rescan failed", slog.String("path", path), slog.String("error", err.Error()))
			return
		}
		metrics.RescansTriggeredTotal.Inc()
		logger.Info("media server rescan requested", slog.String("path", path))
	}()
}

// WaitRescans blocks until in-flight rescan requests finish.
func (uc *ExternalPlayback) WaitRescans() {
	uc.rescans.Wait()
}

// ReportProgress forwards to the media server. Failures are logged only.
func (uc *ExternalPlayback) ReportProgress(ctx context.Context, p domain.PlaybackProgress) error {
	if p.ItemID == "" {
		return nil
	}
	if err := uc.Server.ReportProgress(ctx, p); err != nil {
		uc.logger().Debug("progress report dropped", slog.String("item", p.ItemID), slog.String("error", err.Error()))
	}
	return nil
}

func (uc *ExternalPlayback) ReportStopped(ctx context.Context, p domain.PlaybackProgress) error {
	if p.ItemID == "" {
		return nil
	}
	if err := uc.Server.ReportStopped(ctx, p); err != nil {
		uc.logger().Debug("stop report dropped", slog.String("item", p.ItemID), slog.String("error", err.Error()))
	}
	return nil
}

func (uc *ExternalPlayback) logger() *slog.Logger {
	if uc.Logger != nil {
		return uc.Logger
	}
	return slog.Default()
}

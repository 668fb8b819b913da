package transcode

import (
	"fmt"
	"strconv"

	"cinemastream/internal/domain"
)

const (
	PlaylistName   = "index.m3u8"
	segmentPattern = "seg-%05d.ts"
)

type tier struct {
	height  int
	maxRate string
	bufSize string
}

var qualityTiers = map[domain.Quality]tier{
	domain.Quality1080p: {1080, "8M", "16M"},
	domain.Quality720p:  {720, "4M", "8M"},
	domain.Quality480p:  {480, "1500k", "3M"},
}

type argConfig struct {
	Input           string
	SeekSeconds     float64
	AudioStream     int // container stream index; -1 picks the first audio
	Quality         domain.Quality
	SegmentDuration int
	Preset          string
	CRF             int
	AudioBitrate    string
}

// buildArgs returns the ffmpeg argument list for one HLS transcode run. The
// process is started with the session directory as its working directory.
func buildArgs(cfg argConfig) []string {
	segDur := cfg.SegmentDuration
	if segDur <= 0 {
		segDur = 4
	}

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-progress", "pipe:1",
		"-fflags", "+genpts",
	}
	if cfg.SeekSeconds > 0 {
		args = append(args, "-ss", strconv.FormatFloat(cfg.SeekSeconds, 'f', 3, 64))
	}
	args = append(args, "-i", cfg.Input, "-map", "0:v:0")
	if cfg.AudioStream >= 0 {
		args = append(args, "-map", "0:"+strconv.Itoa(cfg.AudioStream))
	} else {
		args = append(args, "-map", "0:a:0?")
	}

	if t, ok := qualityTiers[cfg.Quality]; ok {
		args = append(args,
			"-c:v", "libx264",
			"-preset", cfg.Preset,
			"-crf", strconv.Itoa(cfg.CRF),
			"-maxrate", t.maxRate,
			"-bufsize", t.bufSize,
			"-vf", fmt.Sprintf("scale=-2:'min(%d,ih)'", t.height),
			"-pix_fmt", "yuv420p",
			"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", segDur),
		)
	} else {
		args = append(args, "-c:v", "copy")
	}

	args = append(args,
		"-c:a", "aac",
		"-b:a", cfg.AudioBitrate,
		"-ac", "2",
		"-sn",
		"-f", "hls",
		"-hls_time", strconv.Itoa(segDur),
		"-hls_list_size", "0",
		"-hls_playlist_type", "event",
		"-hls_flags", "independent_segments",
		"-hls_segment_filename", segmentPattern,
		PlaylistName,
	)
	return args
}

package ffprobe

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"cinemastream/internal/domain"
)

var sidecarCodecs = map[string]string{
	".srt": "subrip",
	".vtt": "webvtt",
	".ass": "ass",
	".ssa": "ssa",
}

// sidecarSubtitles lists subtitle files next to the media file that share its
// base name, e.g. "Movie.en.forced.srt". They get stream indices starting at
// first so they never collide with container streams.
func (p *Prober) sidecarSubtitles(mediaPath string, first int) []domain.MediaStream {
	dir := filepath.Dir(mediaPath)
	stem := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))

	entries, err := afero.ReadDir(p.fs, dir)
	if err != nil {
		p.logger.Debug("sidecar scan failed", slog.String("dir", dir), slog.String("error", err.Error()))
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []domain.MediaStream
	for _, name := range names {
		codec, ok := sidecarCodecs[strings.ToLower(filepath.Ext(name))]
		if !ok {
			continue
		}
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if base != stem && !strings.HasPrefix(base, stem+".") {
			continue
		}
		lang, forced := parseSidecarSuffix(strings.TrimPrefix(strings.TrimPrefix(base, stem), "."))
		out = append(out, domain.MediaStream{
			Index:      first + len(out),
			Type:       domain.StreamSubtitle,
			Codec:      codec,
			Language:   lang,
			Forced:     forced,
			External:   true,
			SourcePath: filepath.Join(dir, name),
		})
	}
	return out
}

func parseSidecarSuffix(suffix string) (lang string, forced bool) {
	for _, part := range strings.Split(strings.ToLower(suffix), ".") {
		switch {
		case part == "":
		case part == "forced":
			forced = true
		case part == "sdh", part == "cc", part == "default":
		case len(part) == 2 || len(part) == 3:
			if lang == "" {
				lang = part
			}
		}
	}
	return lang, forced
}

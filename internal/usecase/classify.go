package usecase

import (
	"strings"

	"cinemastream/internal/domain"
)

// Audio codecs every mainstream browser decodes natively.
var browserAudioCodecs = map[string]struct{}{
	"aac":    {},
	"mp3":    {},
	"opus":   {},
	"vorbis": {},
	"flac":   {},
}

func IsBrowserAudio(codec string) bool {
	c := strings.ToLower(strings.TrimSpace(codec))
	if strings.HasPrefix(c, "pcm_") {
		return true
	}
	_, ok := browserAudioCodecs[c]
	return ok
}

// Classify picks the local strategy from the primary audio codec. Video is
// passed through on the local path and is not considered.
func Classify(audioCodec string) domain.Strategy {
	if IsBrowserAudio(audioCodec) {
		return domain.StrategyDirect
	}
	return domain.StrategyTranscode
}

// StrategyFromExternal propagates a media server's own verdict.
func StrategyFromExternal(directPlay, directStream bool) domain.Strategy {
	switch {
	case directPlay:
		return domain.StrategyDirect
	case directStream:
		return domain.StrategyRemux
	default:
		return domain.StrategyTranscode
	}
}

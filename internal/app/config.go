package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendLocal    = "local"
	BackendJellyfin = "jellyfin"
)

type Config struct {
	HTTPAddr      string
	PublicBaseURL string

	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	MongoURI      string
	MongoDatabase string
	RedisURL      string

	RadarrURL    string
	RadarrAPIKey string
	SonarrURL    string
	SonarrAPIKey string

	PlaybackBackend string

	JellyfinURL            string
	JellyfinAPIKey         string
	JellyfinUserID         string
	JellyfinPathMap        string
	JellyfinMaxBitrate     int64
	JellyfinSubtitleMethod string
	JellyfinRescanCooldown time.Duration

	MediaRoots  []string
	FFMPEGPath  string
	FFProbePath string

	TranscodeDir            string
	TranscodeMaxSessions    int
	TranscodeIdleTimeout    time.Duration
	TranscodePreset         string
	TranscodeCRF            int
	TranscodeAudioBitrate   string
	TranscodeSegmentSeconds int

	UpstreamTimeout    time.Duration
	CORSAllowedOrigins []string
}

// LoadDotEnv reads a .env file into the process environment. A missing file
// is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),

		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:     strings.ToLower(getEnv("LOG_FORMAT", "text")),
		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  int(getEnvInt64("LOG_MAX_SIZE_MB", 50)),
		LogMaxBackups: int(getEnvInt64("LOG_MAX_BACKUPS", 3)),
		LogMaxAgeDays: int(getEnvInt64("LOG_MAX_AGE_DAYS", 14)),

		MongoURI:      getEnv("MONGO_URI", ""),
		MongoDatabase: getEnv("MONGO_DB", "cinemastream"),
		RedisURL:      getEnv("REDIS_URL", ""),

		RadarrURL:    getEnv("RADARR_URL", ""),
		RadarrAPIKey: getEnv("RADARR_API_KEY", ""),
		SonarrURL:    getEnv("SONARR_URL", ""),
		SonarrAPIKey: getEnv("SONARR_API_KEY", ""),

		PlaybackBackend: strings.ToLower(getEnv("PLAYBACK_BACKEND", BackendLocal)),

		JellyfinURL:            getEnv("JELLYFIN_URL", ""),
		JellyfinAPIKey:         getEnv("JELLYFIN_API_KEY", ""),
		JellyfinUserID:         getEnv("JELLYFIN_USER_ID", ""),
		JellyfinPathMap:        getEnv("JELLYFIN_PATH_MAP", ""),
		JellyfinMaxBitrate:     getEnvInt64("JELLYFIN_MAX_BITRATE", 20_000_000),
		JellyfinSubtitleMethod: strings.ToLower(getEnv("JELLYFIN_SUBTITLE_METHOD", "hls")),
		JellyfinRescanCooldown: time.Duration(getEnvInt64("JELLYFIN_RESCAN_COOLDOWN_SECONDS", 120)) * time.Second,

		MediaRoots:  getEnvList("MEDIA_ROOTS"),
		FFMPEGPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFProbePath: getEnv("FFPROBE_PATH", "ffprobe"),

		TranscodeDir:            getEnv("TRANSCODE_DIR", filepath.Join(os.TempDir(), "cinemastream")),
		TranscodeMaxSessions:    int(getEnvInt64("TRANSCODE_MAX_SESSIONS", 2)),
		TranscodeIdleTimeout:    time.Duration(getEnvInt64("TRANSCODE_IDLE_TIMEOUT_SECONDS", 60)) * time.Second,
		TranscodePreset:         getEnv("TRANSCODE_PRESET", "veryfast"),
		TranscodeCRF:            int(getEnvInt64("TRANSCODE_CRF", 23)),
		TranscodeAudioBitrate:   getEnv("TRANSCODE_AUDIO_BITRATE", "192k"),
		TranscodeSegmentSeconds: int(getEnvInt64("TRANSCODE_SEGMENT_SECONDS", 4)),

		UpstreamTimeout:    time.Duration(getEnvInt64("UPSTREAM_TIMEOUT_SECONDS", 15)) * time.Second,
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
	}
}

// Validate reports configuration that cannot produce a working server.
func (c Config) Validate() error {
	var errs []error
	switch c.PlaybackBackend {
	case BackendLocal:
		if len(c.MediaRoots) == 0 {
			errs = append(errs, errors.New("MEDIA_ROOTS is required for the local backend"))
		}
	case BackendJellyfin:
		if c.JellyfinURL == "" {
			errs = append(errs, errors.New("JELLYFIN_URL is required for the jellyfin backend"))
		}
		if c.JellyfinAPIKey == "" {
			errs = append(errs, errors.New("JELLYFIN_API_KEY is required for the jellyfin backend"))
		}
		switch c.JellyfinSubtitleMethod {
		case "hls", "encode":
		default:
			errs = append(errs, fmt.Errorf("JELLYFIN_SUBTITLE_METHOD must be hls or encode, got %q", c.JellyfinSubtitleMethod))
		}
	default:
		errs = append(errs, fmt.Errorf("PLAYBACK_BACKEND must be %s or %s, got %q", BackendLocal, BackendJellyfin, c.PlaybackBackend))
	}
	if c.TranscodeCRF > 51 {
		errs = append(errs, fmt.Errorf("TRANSCODE_CRF must be 0-51, got %d", c.TranscodeCRF))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

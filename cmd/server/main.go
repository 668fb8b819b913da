package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"gopkg.in/natefinch/lumberjack.v2"

	apihttp "cinemastream/internal/api/http"
	"cinemastream/internal/app"
	"cinemastream/internal/domain/ports"
	"cinemastream/internal/metrics"
	mongorepo "cinemastream/internal/repository/mongo"
	"cinemastream/internal/services/cooldown"
	"cinemastream/internal/services/httpapi"
	"cinemastream/internal/services/jellyfin"
	"cinemastream/internal/services/library/radarr"
	"cinemastream/internal/services/library/sonarr"
	"cinemastream/internal/services/probe/ffprobe"
	"cinemastream/internal/services/transcode"
	"cinemastream/internal/telemetry"
	"cinemastream/internal/usecase"
)

const serviceName = "cinemastream"

var version = "dev"

func main() {
	if err := app.LoadDotEnv(); err != nil {
		slog.Warn("dotenv load failed", slog.String("error", err.Error()))
	}
	cfg := app.LoadConfig()

	logger, closeLog := newLogger(cfg)
	defer closeLog()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), serviceName, version)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("backend", cfg.PlaybackBackend),
		slog.Any("mediaRoots", cfg.MediaRoots),
		slog.String("transcodeDir", cfg.TranscodeDir),
		slog.Int("maxTranscodes", cfg.TranscodeMaxSessions),
		slog.Bool("mongo", cfg.MongoURI != ""),
		slog.Bool("redis", cfg.RedisURL != ""),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		mongoClient  *mongo.Client
		progressRepo *mongorepo.ProgressRepository
		settingsRepo app.TranscodeSettingsStore
	)
	if cfg.MongoURI != "" {
		mongoClient, err = connectMongo(rootCtx, cfg.MongoURI)
		if err != nil {
			logger.Error("mongo connect failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		progressRepo = mongorepo.NewProgressRepository(mongoClient, cfg.MongoDatabase)
		settingsRepo = mongorepo.NewTranscodeSettingsRepository(mongoClient, cfg.MongoDatabase)

		ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
		if err := progressRepo.EnsureIndexes(ctx); err != nil {
			logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
		}
		cancel()
	}

	upstream := httpapi.NewHTTPClient(cfg.UpstreamTimeout)
	resolver := usecase.ResolvePath{}
	if cfg.RadarrURL != "" {
		resolver.Movies = radarr.NewClient(radarr.Config{BaseURL: cfg.RadarrURL, APIKey: cfg.RadarrAPIKey, Client: upstream})
	} else {
		logger.Warn("RADARR_URL not set, movie lookups will fail")
	}
	if cfg.SonarrURL != "" {
		resolver.Series = sonarr.NewClient(sonarr.Config{BaseURL: cfg.SonarrURL, APIKey: cfg.SonarrAPIKey, Client: upstream})
	} else {
		logger.Warn("SONARR_URL not set, episode lookups will fail")
	}

	var (
		playback ports.PlaybackProvider
		progress ports.ProgressReporter = usecase.RecordProgress{Logger: logger, Now: time.Now}
		external *usecase.ExternalPlayback
		manager  *transcode.Manager
	)
	if progressRepo != nil {
		progress = usecase.RecordProgress{Repo: progressRepo, Logger: logger, Now: time.Now}
	}
	streamOpts := []apihttp.ServerOption{}

	switch cfg.PlaybackBackend {
	case app.BackendJellyfin:
		external = &usecase.ExternalPlayback{
			Resolver: resolver,
			Server: jellyfin.NewClient(jellyfin.Config{
				BaseURL: cfg.JellyfinURL,
				APIKey:  cfg.JellyfinAPIKey,
				UserID:  cfg.JellyfinUserID,
				PathMap: jellyfin.ParsePathMap(cfg.JellyfinPathMap),
				Client:  upstream,
			}),
			Cooldown:       newCooldown(rootCtx, cfg.RedisURL, logger),
			RescanCooldown: cfg.JellyfinRescanCooldown,
			MaxBitrate:     cfg.JellyfinMaxBitrate,
			BurnSubtitles:  cfg.JellyfinSubtitleMethod == "encode",
			Logger:         logger,
		}
		playback = external
		progress = external
	default:
		playback = usecase.LocalPlayback{
			Resolver: resolver,
			Prober:   ffprobe.New(cfg.FFProbePath, ffprobe.WithLogger(logger)),
		}

		// Local sessions, subtitles and direct play only exist when the
		// server itself owns the files.
		manager = transcode.NewManager(transcode.Config{
			FFmpegPath:      cfg.FFMPEGPath,
			BaseDir:         cfg.TranscodeDir,
			MaxSessions:     cfg.TranscodeMaxSessions,
			IdleTimeout:     cfg.TranscodeIdleTimeout,
			SegmentDuration: cfg.TranscodeSegmentSeconds,
			Preset:          cfg.TranscodePreset,
			CRF:             cfg.TranscodeCRF,
			AudioBitrate:    cfg.TranscodeAudioBitrate,
			Logger:          logger,
		})
		settings := app.NewTranscodeSettingsManager(manager, settingsRepo)
		if ok, err := settings.Load(rootCtx); err != nil {
			logger.Warn("transcode settings load failed", slog.String("error", err.Error()))
		} else if ok {
			logger.Info("transcode settings restored", slog.Any("settings", settings.Get()))
		}
		manager.Start()

		streamOpts = append(streamOpts,
			apihttp.WithSessions(manager),
			apihttp.WithSubtitles(transcode.NewSubtitles(cfg.FFMPEGPath, nil, logger)),
			apihttp.WithTranscodeSettings(settings),
			apihttp.WithMediaRoots(cfg.MediaRoots),
		)
	}

	handler := apihttp.NewServer(append([]apihttp.ServerOption{
		apihttp.WithPlayback(playback, cfg.PlaybackBackend),
		apihttp.WithProgressReporter(progress),
		apihttp.WithPublicBaseURL(cfg.PublicBaseURL),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
		apihttp.WithLogger(logger),
	}, streamOpts...)...)
	if manager != nil {
		manager.OnChange(handler.BroadcastSessions)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr), slog.String("version", version))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	if manager != nil {
		manager.Shutdown()
	}
	if external != nil {
		external.WaitRescans()
	}
	if mongoClient != nil {
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
		}
	}
	if shutdownTracer != nil {
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown error", slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
}

func connectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongorepo.Connect(ctx, uri, options.Client().SetMonitor(otelmongo.NewMonitor()))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// newCooldown shares the rescan cooldown through Redis when configured so
// several replicas do not all rescan the media server.
func newCooldown(ctx context.Context, redisURL string, logger *slog.Logger) ports.Cooldown {
	if redisURL == "" {
		return cooldown.NewMemory()
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, using in-process cooldown", slog.String("error", err.Error()))
		return cooldown.NewMemory()
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, using in-process cooldown", slog.String("error", err.Error()))
		_ = client.Close()
		return cooldown.NewMemory()
	}
	return cooldown.NewRedis(client)
}

func newLogger(cfg app.Config) (*slog.Logger, func()) {
	var out io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotating)
		closeFn = func() { _ = rotating.Close() }
	}

	handlerOpts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}
	if strings.ToLower(strings.TrimSpace(cfg.LogFormat)) == "json" {
		return slog.New(slog.NewJSONHandler(out, handlerOpts)), closeFn
	}
	return slog.New(slog.NewTextHandler(out, handlerOpts)), closeFn
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

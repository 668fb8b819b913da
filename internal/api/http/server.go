package apihttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cinemastream/internal/app"
	"cinemastream/internal/domain"
	"cinemastream/internal/domain/ports"
	"cinemastream/internal/services/transcode"
)

type SessionManager interface {
	Acquire(ctx context.Context, req transcode.SessionRequest) (domain.StreamingSession, error)
	WaitReady(ctx context.Context, id string) error
	Seek(id string, seconds float64) (domain.StreamingSession, error)
	Stop(id string) error
	List() []domain.StreamingSession
	Open(id, name string) (afero.File, error)
}

type SubtitleExtractor interface {
	Extract(ctx context.Context, path string, streamIndex int) ([]byte, error)
}

type TranscodeSettingsController interface {
	Get() app.TranscodeSettings
	Update(settings app.TranscodeSettings) (app.TranscodeSettings, error)
}

const defaultReadyTimeout = 20 * time.Second

type Server struct {
	playback       ports.PlaybackProvider
	backend        string
	progress       ports.ProgressReporter
	sessions       SessionManager
	subtitles      SubtitleExtractor
	settings       TranscodeSettingsController
	fs             afero.Fs
	mediaRoots     []string
	publicBaseURL  string
	allowedOrigins []string
	readyTimeout   time.Duration
	rateLimit      float64
	rateBurst      int
	logger         *slog.Logger
	handler        http.Handler
	feed           *sessionFeed
}

type ServerOption func(*Server)

// WithPlayback sets the playback info provider. backend labels metrics and
// the health endpoint.
func WithPlayback(provider ports.PlaybackProvider, backend string) ServerOption {
	return func(s *Server) {
		s.playback = provider
		s.backend = backend
	}
}

func WithProgressReporter(reporter ports.ProgressReporter) ServerOption {
	return func(s *Server) {
		s.progress = reporter
	}
}

func WithSessions(sessions SessionManager) ServerOption {
	return func(s *Server) {
		s.sessions = sessions
	}
}

func WithSubtitles(extractor SubtitleExtractor) ServerOption {
	return func(s *Server) {
		s.subtitles = extractor
	}
}

func WithTranscodeSettings(ctrl TranscodeSettingsController) ServerOption {
	return func(s *Server) {
		s.settings = ctrl
	}
}

// WithMediaRoots limits every client supplied path to these directories.
func WithMediaRoots(roots []string) ServerOption {
	return func(s *Server) {
		s.mediaRoots = s.mediaRoots[:0]
		for _, root := range roots {
			root = strings.TrimSpace(root)
			if root == "" {
				continue
			}
			if abs, err := filepath.Abs(root); err == nil {
				root = abs
			}
			s.mediaRoots = append(s.mediaRoots, filepath.Clean(root))
		}
	}
}

func WithFs(fsys afero.Fs) ServerOption {
	return func(s *Server) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

func WithPublicBaseURL(base string) ServerOption {
	return func(s *Server) {
		s.publicBaseURL = strings.TrimRight(strings.TrimSpace(base), "/")
	}
}

// WithAllowedOrigins configures the CORS allowed origins whitelist.
// When empty (default), any origin is permitted (development mode).
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

func WithReadyTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.readyTimeout = d
		}
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 && burst > 0 {
			s.rateLimit = rps
			s.rateBurst = burst
		}
	}
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		backend:      app.BackendLocal,
		fs:           afero.NewOsFs(),
		readyTimeout: defaultReadyTimeout,
		rateLimit:    100,
		rateBurst:    200,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.feed = newSessionFeed(s.logger)
	go s.feed.run()

	r := mux.NewRouter().UseEncodedPath()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/playback/movie/{tmdbId:[0-9]+}", s.handleMoviePlayback).Methods(http.MethodGet)
	api.HandleFunc("/playback/tv/{tmdbId:[0-9]+}/{season:[0-9]+}/{episode:[0-9]+}", s.handleEpisodePlayback).Methods(http.MethodGet)
	api.HandleFunc("/playback/progress", s.handleProgress).Methods(http.MethodPost)
	api.HandleFunc("/playback/stopped", s.handleStopped).Methods(http.MethodPost)
	api.HandleFunc("/subtitles/{ref}", s.localOnly(s.handleSubtitle)).Methods(http.MethodGet)
	api.HandleFunc("/stream/direct/{path}", s.localOnly(s.handleDirectStream)).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/stream/hls/{path}/master.m3u8", s.localOnly(s.handleHLSMaster)).Methods(http.MethodGet)
	api.HandleFunc("/transcode/sessions", s.localOnly(s.handleListSessions)).Methods(http.MethodGet)
	api.HandleFunc("/transcode/sessions/{id}/seek", s.localOnly(s.handleSeekSession)).Methods(http.MethodPost)
	api.HandleFunc("/transcode/sessions/{id}/{file}", s.localOnly(s.handleSessionFile)).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/transcode/sessions/{id}", s.localOnly(s.handleStopSession)).Methods(http.MethodDelete)
	api.HandleFunc("/settings/transcode", s.localOnly(s.handleGetTranscodeSettings)).Methods(http.MethodGet)
	api.HandleFunc("/settings/transcode", s.localOnly(s.handleUpdateTranscodeSettings)).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, r), "cinemastream",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/healthz" && p != "/ws"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateLimit, s.rateBurst, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// BroadcastSessions pushes the transcode session list to websocket clients.
func (s *Server) BroadcastSessions(sessions []domain.StreamingSession) {
	s.feed.Publish("sessions", sessions)
}

// Close disconnects all websocket clients.
func (s *Server) Close() {
	s.feed.Close()
}

type healthResponse struct {
	Status   string `json:"status"`
	Backend  string `json:"backend"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Backend: s.backend}
	if s.sessions != nil {
		resp.Sessions = len(s.sessions.List())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := feedUpgrader(s.allowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	sub := &feedSubscriber{
		feed: s.feed,
		conn: conn,
		out:  make(chan []byte, feedQueueSize),
	}
	if s.sessions != nil {
		if payload, err := json.Marshal(feedFrame{Type: "sessions", Data: s.sessions.List()}); err == nil {
			sub.out <- payload
		}
	}
	select {
	case s.feed.join <- sub:
	case <-s.feed.done:
		conn.Close()
		return
	}
	go sub.writeLoop()
	go sub.readLoop()
}

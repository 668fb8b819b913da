package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"cinemastream/internal/domain"
	"cinemastream/internal/metrics"
	"cinemastream/internal/usecase"
)

type playbackNotFound struct {
	Found   bool   `json:"found"`
	Message string `json:"message"`
}

func (s *Server) handleMoviePlayback(w http.ResponseWriter, r *http.Request) {
	tmdbID, err := strconv.Atoi(mux.Vars(r)["tmdbId"])
	if err != nil || tmdbID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid tmdbId")
		return
	}
	if s.playback == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "playback not configured")
		return
	}
	key := domain.MediaKey{Kind: domain.KindMovie, TMDBID: tmdbID}
	info, err := s.playback.MoviePlayback(r.Context(), tmdbID)
	s.writePlayback(w, r, key, info, err)
}

func (s *Server) handleEpisodePlayback(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tmdbID, err1 := strconv.Atoi(vars["tmdbId"])
	season, err2 := strconv.Atoi(vars["season"])
	episode, err3 := strconv.Atoi(vars["episode"])
	if err := errors.Join(err1, err2, err3); err != nil || tmdbID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid episode reference")
		return
	}
	if s.playback == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "playback not configured")
		return
	}
	key := domain.MediaKey{Kind: domain.KindEpisode, TMDBID: tmdbID, Season: season, Episode: episode}
	info, err := s.playback.EpisodePlayback(r.Context(), tmdbID, season, episode)
	s.writePlayback(w, r, key, info, err)
}

// writePlayback collapses every failure into a single not-found answer. The
// cause only goes to logs and metrics.
func (s *Server) writePlayback(w http.ResponseWriter, r *http.Request, key domain.MediaKey, info domain.PlaybackInfo, err error) {
	reason := usecase.FailureReason(err)
	if errors.Is(err, context.Canceled) {
		reason = "canceled"
	}
	metrics.PlaybackInfoTotal.WithLabelValues(s.backend, reason).Inc()

	if err != nil {
		level := slog.LevelWarn
		message := "unavailable"
		switch {
		case domain.IsNotYetAvailable(err):
			level = slog.LevelInfo
			message = "not available yet"
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, context.Canceled):
			level = slog.LevelInfo
		}
		s.logger.Log(r.Context(), level, "playback unavailable",
			slog.String("key", key.String()),
			slog.String("backend", s.backend),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusNotFound, playbackNotFound{Found: false, Message: message})
		return
	}

	info.Found = true
	s.absolutize(r, &info)
	writeJSON(w, http.StatusOK, info)
}

type progressRequest struct {
	Kind          string `json:"kind"`
	TMDBID        int    `json:"tmdbId"`
	Season        int    `json:"season"`
	Episode       int    `json:"episode"`
	PositionMs    int64  `json:"positionMs"`
	DurationMs    int64  `json:"durationMs"`
	Paused        bool   `json:"paused"`
	ItemID        string `json:"itemId"`
	MediaSourceID string `json:"mediaSourceId"`
	PlaySessionID string `json:"playSessionId"`
}

func (req progressRequest) toDomain() (domain.PlaybackProgress, error) {
	kind := domain.ContentKind(req.Kind)
	if kind != domain.KindMovie && kind != domain.KindEpisode {
		return domain.PlaybackProgress{}, errors.New("kind must be movie or episode")
	}
	if req.TMDBID <= 0 {
		return domain.PlaybackProgress{}, errors.New("tmdbId is required")
	}
	if req.PositionMs < 0 || req.DurationMs < 0 {
		return domain.PlaybackProgress{}, errors.New("position and duration must not be negative")
	}
	key := domain.MediaKey{Kind: kind, TMDBID: req.TMDBID}
	if kind == domain.KindEpisode {
		key.Season = req.Season
		key.Episode = req.Episode
	}
	return domain.PlaybackProgress{
		Key:           key,
		PositionMs:    req.PositionMs,
		DurationMs:    req.DurationMs,
		Paused:        req.Paused,
		ItemID:        req.ItemID,
		MediaSourceID: req.MediaSourceID,
		PlaySessionID: req.PlaySessionID,
	}, nil
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	s.handleReport(w, r, false)
}

func (s *Server) handleStopped(w http.ResponseWriter, r *http.Request) {
	s.handleReport(w, r, true)
}

// handleReport is best-effort: once the body is valid the answer is 204 no
// matter what the reporter does.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request, stopped bool) {
	var body progressRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}
	progress, err := body.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	progress.Stopped = stopped

	if s.progress != nil {
		if stopped {
			err = s.progress.ReportStopped(r.Context(), progress)
		} else {
			err = s.progress.ReportProgress(r.Context(), progress)
		}
		if err != nil {
			s.logger.Debug("progress report failed",
				slog.String("key", progress.Key.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

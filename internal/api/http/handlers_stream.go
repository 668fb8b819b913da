package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"

	"cinemastream/internal/domain"
	"cinemastream/internal/services/transcode"
)

// handleDirectStream serves the original file with range support.
func (s *Server) handleDirectStream(w http.ResponseWriter, r *http.Request) {
	path, err := s.resolveMediaPath(mux.Vars(r)["path"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	f, err := s.fs.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "not_found", "file not found")
		return
	}

	w.Header().Set("Content-Type", detectContentType(f, path))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, filepath.Base(path), info.ModTime(), f)
}

var videoContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".ts":   "video/mp2t",
}

// detectContentType prefers the extension and sniffs the header otherwise.
// The reader is rewound afterwards.
func detectContentType(f io.ReadSeeker, path string) string {
	if ct, ok := videoContentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	mtype, err := mimetype.DetectReader(f)
	if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil || err != nil {
		return "application/octet-stream"
	}
	return mtype.String()
}

// handleHLSMaster acquires a transcode session for the caller and redirects
// to its playlist once the first segment exists.
func (s *Server) handleHLSMaster(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "transcoding not configured")
		return
	}
	path, err := s.resolveMediaPath(mux.Vars(r)["path"])
	if err != nil {
		writeDomainError(w, err)
		return
	}

	q := r.URL.Query()
	audio := -1
	if raw := q.Get("audio"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid audio")
			return
		}
		audio = n
	}
	quality, ok := domain.ParseQuality(q.Get("quality"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid quality")
		return
	}
	var start float64
	if raw := q.Get("start"); raw != "" {
		start, err = strconv.ParseFloat(raw, 64)
		if err != nil || start < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid start")
			return
		}
	}

	session, err := s.sessions.Acquire(r.Context(), transcode.SessionRequest{
		ClientID:     clientID(r),
		Path:         path,
		AudioTrack:   audio,
		Quality:      quality,
		StartSeconds: start,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrResourceExhausted) {
			s.logger.Warn("transcode session failed", slog.String("error", err.Error()))
		}
		writeDomainError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.readyTimeout)
	defer cancel()
	if err := s.sessions.WaitReady(ctx, session.ID); err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, "transcode_timeout", "transcode did not start in time")
		case errors.Is(err, context.Canceled):
		default:
			s.logger.Warn("transcode not ready",
				slog.String("sessionId", session.ID),
				slog.String("error", err.Error()),
			)
			_ = s.sessions.Stop(session.ID)
			writeError(w, http.StatusBadGateway, "transcode_failed", "transcoder failed to start")
		}
		return
	}

	http.Redirect(w, r, "/api/transcode/sessions/"+session.ID+"/"+transcode.PlaylistName, http.StatusFound)
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	if s.sessions == nil {
		writeJSON(w, http.StatusOK, []domain.StreamingSession{})
		return
	}
	writeJSON(w, http.StatusOK, s.sessions.List())
}

func (s *Server) handleSessionFile(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "transcoding not configured")
		return
	}
	vars := mux.Vars(r)
	name := vars["file"]
	f, err := s.sessions.Open(vars["id"], name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "not found")
		return
	}

	if name == transcode.PlaylistName {
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
		w.Header().Set("Cache-Control", "no-cache")
	} else {
		w.Header().Set("Content-Type", "video/mp2t")
		w.Header().Set("Cache-Control", "private, max-age=60")
	}
	http.ServeContent(w, r, name, info.ModTime(), f)
}

type seekRequest struct {
	Position *float64 `json:"position"`
}

func (s *Server) handleSeekSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "transcoding not configured")
		return
	}
	var body seekRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&body); err != nil || body.Position == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "position is required")
		return
	}
	if *body.Position < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "position must not be negative")
		return
	}
	session, err := s.sessions.Seek(mux.Vars(r)["id"], *body.Position)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "transcoding not configured")
		return
	}
	if err := s.sessions.Stop(mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

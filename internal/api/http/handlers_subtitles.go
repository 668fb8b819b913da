package apihttp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"cinemastream/internal/domain"
)

// handleSubtitle converts one subtitle stream to WebVTT. The reference is
// built by domain.SubtitleRef.
func (s *Server) handleSubtitle(w http.ResponseWriter, r *http.Request) {
	if s.subtitles == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "subtitles not configured")
		return
	}
	idx, path, err := domain.ParseSubtitleRef(mux.Vars(r)["ref"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if path, err = s.checkMediaPath(path); err != nil {
		writeDomainError(w, err)
		return
	}

	vtt, err := s.subtitles.Extract(r.Context(), path, idx)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrUnsupported) {
			s.logger.Warn("subtitle unavailable",
				slog.Int("stream", idx),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/vtt; charset=utf-8")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(vtt)
}

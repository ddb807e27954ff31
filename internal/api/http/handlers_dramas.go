package apihttp

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"dramastream/watchservice/internal/metrics"
	"dramastream/watchservice/internal/watch"
)

type sourceResponse struct {
	BookID       string `json:"bookId"`
	EpisodeIndex int    `json:"episodeIndex"`
	Quality      int    `json:"quality"`
	Qualities    []int  `json:"qualities"`
	URL          string `json:"url"`
}

// handleDramaAPI dispatches /api/dramas/{bookId}[/episodes|/source|/download].
func (s *Server) handleDramaAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.watch == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "watch service is not configured")
		return
	}

	tail := strings.TrimPrefix(r.URL.Path, "/api/dramas/")
	parts := strings.Split(tail, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	bookID := parts[0]

	switch {
	case len(parts) == 1:
		s.handleDramaDetail(w, r, bookID)
	case len(parts) == 2 && parts[1] == "episodes":
		s.handleDramaEpisodes(w, r, bookID)
	case len(parts) == 2 && parts[1] == "source":
		s.handleDramaSource(w, r, bookID)
	case len(parts) == 2 && parts[1] == "download":
		s.handleDramaDownload(w, r, bookID)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleDramaDetail(w http.ResponseWriter, r *http.Request, bookID string) {
	data, err := s.watch.Load(r.Context(), bookID)
	if err != nil {
		s.logger.Warn("drama load failed",
			slog.String("bookId", bookID),
			slog.String("error", err.Error()),
		)
		writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleDramaEpisodes(w http.ResponseWriter, r *http.Request, bookID string) {
	data, err := s.watch.Load(r.Context(), bookID)
	if err != nil {
		writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bookId": data.Drama.ID,
		"items":  data.Episodes,
	})
}

func (s *Server) handleDramaSource(w http.ResponseWriter, r *http.Request, bookID string) {
	episodeIndex, err := parseNonNegativeInt(r.URL.Query().Get("ep"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid ep")
		return
	}
	requestedQuality, err := parseNonNegativeInt(r.URL.Query().Get("quality"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid quality")
		return
	}

	data, err := s.watch.Load(r.Context(), bookID)
	if err != nil {
		writeLoadError(w, err)
		return
	}
	if len(data.Episodes) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "no episodes available")
		return
	}

	episodeIndex = watch.ClampEpisodeIndex(episodeIndex, len(data.Episodes))
	episode := data.Episodes[episodeIndex]
	quality := watch.EffectiveQuality(episode, requestedQuality)

	writeJSON(w, http.StatusOK, sourceResponse{
		BookID:       data.Drama.ID,
		EpisodeIndex: episodeIndex,
		Quality:      quality,
		Qualities:    watch.AvailableQualities(episode),
		URL:          watch.ResolveStreamURL(episode, quality),
	})
}

func (s *Server) handleDramaDownload(w http.ResponseWriter, r *http.Request, bookID string) {
	episodeIndex, err := parseNonNegativeInt(r.URL.Query().Get("ep"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid ep")
		return
	}
	requestedQuality, err := parseNonNegativeInt(r.URL.Query().Get("quality"), 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid quality")
		return
	}

	data, err := s.watch.Load(r.Context(), bookID)
	if err != nil {
		writeLoadError(w, err)
		return
	}
	if len(data.Episodes) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "no episodes available")
		return
	}

	episodeIndex = watch.ClampEpisodeIndex(episodeIndex, len(data.Episodes))
	episode := data.Episodes[episodeIndex]
	quality := watch.EffectiveQuality(episode, requestedQuality)

	// The playing URL is the fallback when no CDN entry carries a usable one.
	currentURL := watch.ResolveStreamURL(episode, quality)

	link, err := watch.ResolveDownload(data.Drama, episode, currentURL, quality)
	if err != nil {
		metrics.DownloadsResolvedTotal.WithLabelValues("failed").Inc()
		s.logger.Warn("download resolution failed",
			slog.String("bookId", bookID),
			slog.Int("episode", episodeIndex),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, watch.ErrNoDownloadableSource) {
			writeError(w, http.StatusNotFound, "not_found", "no downloadable source for episode")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to resolve download")
		return
	}

	metrics.DownloadsResolvedTotal.WithLabelValues("ok").Inc()
	s.logger.Info("download resolved",
		slog.String("bookId", bookID),
		slog.Int("episode", episodeIndex),
		slog.Int("quality", link.Quality),
	)
	writeJSON(w, http.StatusOK, link)
}

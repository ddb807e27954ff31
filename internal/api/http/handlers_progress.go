package apihttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"dramastream/watchservice/internal/domain"
	"dramastream/watchservice/internal/metrics"
)

const maxProgressListLimit = 100

type progressUpdateRequest struct {
	Position    float64 `json:"position"`
	Duration    float64 `json:"duration"`
	BookName    string  `json:"bookName"`
	EpisodeName string  `json:"episodeName"`
}

// handleProgressList serves GET /api/progress, the most recently watched
// episodes across all books.
func (s *Server) handleProgressList(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/progress" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.progress == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "watch progress is not configured")
		return
	}

	limit, err := parseNonNegativeInt(r.URL.Query().Get("limit"), 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}
	if limit == 0 || limit > maxProgressListLimit {
		limit = 20
	}

	items, err := s.progress.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("progress list failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list watch progress")
		return
	}
	if items == nil {
		items = []domain.WatchProgress{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handleProgressByID serves GET and PUT /api/progress/{bookId}/{episodeIndex}.
func (s *Server) handleProgressByID(w http.ResponseWriter, r *http.Request) {
	if s.progress == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "watch progress is not configured")
		return
	}

	tail := strings.TrimPrefix(r.URL.Path, "/api/progress/")
	parts := strings.SplitN(tail, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		http.NotFound(w, r)
		return
	}
	bookID := parts[0]
	episodeIndex, err := strconv.Atoi(parts[1])
	if err != nil || episodeIndex < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid episode index")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleProgressGet(w, r, bookID, episodeIndex)
	case http.MethodPut:
		s.handleProgressPut(w, r, bookID, episodeIndex)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleProgressGet(w http.ResponseWriter, r *http.Request, bookID string, episodeIndex int) {
	wp, err := s.progress.Get(r.Context(), bookID, episodeIndex)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no saved position")
			return
		}
		s.logger.Error("progress lookup failed",
			slog.String("bookId", bookID),
			slog.Int("episode", episodeIndex),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load watch progress")
		return
	}
	writeJSON(w, http.StatusOK, wp)
}

func (s *Server) handleProgressPut(w http.ResponseWriter, r *http.Request, bookID string, episodeIndex int) {
	var req progressUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Position < 0 || req.Duration < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "position and duration must not be negative")
		return
	}

	wp := domain.WatchProgress{
		BookID:       bookID,
		EpisodeIndex: episodeIndex,
		Position:     req.Position,
		Duration:     req.Duration,
		BookName:     req.BookName,
		EpisodeName:  req.EpisodeName,
	}
	if err := s.progress.Upsert(r.Context(), wp); err != nil {
		s.logger.Error("progress update failed",
			slog.String("bookId", bookID),
			slog.Int("episode", episodeIndex),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to save watch progress")
		return
	}

	metrics.ProgressUpdatesTotal.Inc()
	w.WriteHeader(http.StatusNoContent)
}

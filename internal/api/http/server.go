package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"dramastream/watchservice/internal/domain"
	"dramastream/watchservice/internal/watch"
)

type WatchService interface {
	Load(ctx context.Context, bookID string) (watch.WatchData, error)
	CatalogDiagnostics() []domain.CatalogEndpointHealth
}

type ProgressStore interface {
	Upsert(ctx context.Context, wp domain.WatchProgress) error
	Get(ctx context.Context, bookID string, episodeIndex int) (domain.WatchProgress, error)
	LatestForBook(ctx context.Context, bookID string) (domain.WatchProgress, error)
	ListRecent(ctx context.Context, limit int) ([]domain.WatchProgress, error)
}

type Server struct {
	watch         WatchService
	progress      ProgressStore
	logger        *slog.Logger
	rateRPS       float64
	rateBurst     int
	imageMaxBytes int64
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithProgressStore(store ProgressStore) ServerOption {
	return func(s *Server) {
		s.progress = store
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 {
			s.rateRPS = rps
		}
		if burst > 0 {
			s.rateBurst = burst
		}
	}
}

func WithImageProxyMaxBytes(limit int64) ServerOption {
	return func(s *Server) {
		if limit > 0 {
			s.imageMaxBytes = limit
		}
	}
}

func NewServer(watchService WatchService, options ...ServerOption) *Server {
	server := &Server{
		watch:         watchService,
		logger:        slog.Default(),
		rateRPS:       50,
		rateBurst:     100,
		imageMaxBytes: defaultImageProxyMaxBytes,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/image", s.handleImageProxy)
	mux.HandleFunc("/api/catalog/health", s.handleCatalogHealth)
	mux.HandleFunc("/api/dramas/", s.handleDramaAPI)
	mux.HandleFunc("/api/progress", s.handleProgressList)
	mux.HandleFunc("/api/progress/", s.handleProgressByID)
	mux.HandleFunc("/watch/", s.handleWatchPage)
	mux.HandleFunc("/", s.handleHomePage)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "drama-watch",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateRPS, s.rateBurst, metricsMiddleware(traced)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleCatalogHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.watch == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "watch service is not configured")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"checkedAt": time.Now().UTC(),
		"items":     s.watch.CatalogDiagnostics(),
	})
}

// writeLoadError maps watch service failures onto the HTTP statuses shared
// by every drama endpoint.
func writeLoadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, watch.ErrInvalidBookID):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "drama not found")
	case errors.Is(err, domain.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "upstream_error", "catalog unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load drama")
	}
}

func parseNonNegativeInt(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return 0, errors.New("invalid value")
	}
	return parsed, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

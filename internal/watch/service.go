package watch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"dramastream/watchservice/internal/domain"
)

var (
	ErrInvalidBookID        = errors.New("bookId is required")
	ErrNoDownloadableSource = errors.New("no downloadable source for episode")
)

// Catalog is the upstream drama API the watch service loads from.
type Catalog interface {
	BookDetail(ctx context.Context, bookID string) (domain.Drama, error)
	ChapterList(ctx context.Context, bookID string) ([]domain.Episode, error)
}

// WatchData bundles everything one watch page needs for a single drama.
type WatchData struct {
	Drama    domain.Drama     `json:"drama"`
	Episodes []domain.Episode `json:"episodes"`
}

type Service struct {
	catalog       Catalog
	timeout       time.Duration
	cacheDisabled bool
	cacheMu       sync.Mutex
	cache         map[string]*cachedWatch
	interest      map[string]*bookInterest
	warmerCfg     watchWarmerConfig
	warmerRun     atomic.Bool
	redisCache    *RedisCacheBackend
	healthMu      sync.Mutex
	health        map[string]*endpointHealth
}

type ServiceOption func(*Service)

func WithRedisCache(backend *RedisCacheBackend) ServiceOption {
	return func(s *Service) {
		s.redisCache = backend
	}
}

func WithCacheTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.warmerCfg.cacheTTL = ttl
			s.warmerCfg.staleTTL = ttl * 3
		}
	}
}

func WithCacheStaleGrace(grace time.Duration) ServiceOption {
	return func(s *Service) {
		if grace > 0 {
			s.warmerCfg.staleTTL = grace
		}
	}
}

func WithCacheMaxEntries(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.warmerCfg.cacheMaxEntries = limit
		}
	}
}

func WithCacheDisabled(disabled bool) ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = disabled
	}
}

// WithWarmBooks pins a set of book IDs that the warmer always refreshes,
// regardless of observed traffic.
func WithWarmBooks(bookIDs []string) ServiceOption {
	return func(s *Service) {
		s.warmerCfg.pinnedBooks = normalizeBookIDs(bookIDs)
	}
}

func WithWarmInterval(interval time.Duration) ServiceOption {
	return func(s *Service) {
		if interval > 0 {
			s.warmerCfg.warmInterval = interval
		}
	}
}

func WithWarmConcurrency(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.warmerCfg.warmConcurrency = limit
		}
	}
}

func NewService(catalog Catalog, timeout time.Duration, opts ...ServiceOption) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	svc := &Service{
		catalog:   catalog,
		timeout:   timeout,
		cache:     make(map[string]*cachedWatch),
		interest:  make(map[string]*bookInterest),
		warmerCfg: defaultWatchWarmerConfig(),
		health:    make(map[string]*endpointHealth),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) StartBackground(ctx context.Context) {
	if s.warmerRun.CompareAndSwap(false, true) {
		go s.runWarmer(ctx)
	}
}

// Load returns the drama detail together with its full episode list.
// Detail and chapters are fetched concurrently; the first error cancels
// the remaining fetch. An empty episode list is not an error.
func (s *Service) Load(ctx context.Context, bookID string) (WatchData, error) {
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return WatchData{}, ErrInvalidBookID
	}

	if s.cacheDisabled {
		return s.loadUpstream(ctx, bookID)
	}

	startedAt := time.Now()
	key := watchCacheKey(bookID)
	if cached, ok, needsRefresh := s.cacheLookup(key, startedAt); ok {
		// Track interest even on cache hits, so the warmer keeps hot books fresh.
		s.markInterest(bookID, startedAt)
		if needsRefresh {
			s.refreshCacheAsync(key, bookID)
		}
		return cached, nil
	}

	data, err := s.loadUpstream(ctx, bookID)
	if err != nil {
		return WatchData{}, err
	}
	s.cacheStore(key, data, time.Now())
	s.markInterest(bookID, time.Now())
	return data, nil
}

func (s *Service) loadUpstream(ctx context.Context, bookID string) (WatchData, error) {
	runCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var data WatchData
	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		if blocked, until, lastErr := s.isEndpointBlocked(endpointDetail, time.Now()); blocked {
			return blockedError(until, lastErr)
		}
		startedAt := time.Now()
		err := RetryWithBackoff(groupCtx, DefaultRetryConfig(), func() error {
			detail, detailErr := s.catalog.BookDetail(groupCtx, bookID)
			if detailErr != nil {
				return detailErr
			}
			data.Drama = detail
			return nil
		})
		s.recordCatalogResult(endpointDetail, err, time.Since(startedAt), time.Now())
		return err
	})
	group.Go(func() error {
		if blocked, until, lastErr := s.isEndpointBlocked(endpointChapters, time.Now()); blocked {
			return blockedError(until, lastErr)
		}
		startedAt := time.Now()
		err := RetryWithBackoff(groupCtx, DefaultRetryConfig(), func() error {
			episodes, chaptersErr := s.catalog.ChapterList(groupCtx, bookID)
			if chaptersErr != nil {
				return chaptersErr
			}
			data.Episodes = episodes
			return nil
		})
		s.recordCatalogResult(endpointChapters, err, time.Since(startedAt), time.Now())
		return err
	})
	if err := group.Wait(); err != nil {
		return WatchData{}, err
	}
	return data, nil
}

func (s *Service) refreshCacheAsync(key, bookID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout+2*time.Second)
		defer cancel()
		data, err := s.loadUpstream(ctx, bookID)
		if err != nil {
			s.cacheClearRefreshing(key)
			return
		}
		s.cacheStore(key, data, time.Now())
	}()
}

func blockedError(until time.Time, lastErr string) error {
	if lastErr == "" {
		lastErr = "repeated upstream failures"
	}
	return &catalogBlockedError{until: until, reason: lastErr}
}

type catalogBlockedError struct {
	until  time.Time
	reason string
}

func (e *catalogBlockedError) Error() string {
	return "catalog temporarily unavailable until " + e.until.UTC().Format(time.RFC3339) + ": " + e.reason
}

func (e *catalogBlockedError) Unwrap() error {
	return domain.ErrUnavailable
}

func normalizeBookIDs(bookIDs []string) []string {
	if len(bookIDs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(bookIDs))
	out := make([]string, 0, len(bookIDs))
	for _, raw := range bookIDs {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

package watch

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"dramastream/watchservice/internal/domain"
	"dramastream/watchservice/internal/metrics"
)

const (
	defaultCacheTTL           = 5 * time.Minute
	defaultStaleTTL           = 30 * time.Minute
	defaultWarmInterval       = 10 * time.Minute
	defaultWarmTopBooks       = 8
	defaultWarmConcurrency    = 4
	defaultCacheMaxEntries    = 512
	defaultInterestMaxEntries = 200
)

type watchWarmerConfig struct {
	cacheTTL           time.Duration
	staleTTL           time.Duration
	warmInterval       time.Duration
	warmTopBooks       int
	warmConcurrency    int
	cacheMaxEntries    int
	interestMaxEntries int
	pinnedBooks        []string
}

type cachedWatch struct {
	data        WatchData
	updatedAt   time.Time
	expiresAt   time.Time
	staleUntil  time.Time
	refreshing  bool
	refreshOnce sync.Once // Ensures only one refresh per stale period
}

type bookInterest struct {
	bookID   string
	hits     int
	lastSeen time.Time
	lastWarm time.Time
}

type warmSpec struct {
	key    string
	bookID string
}

func defaultWatchWarmerConfig() watchWarmerConfig {
	return watchWarmerConfig{
		cacheTTL:           defaultCacheTTL,
		staleTTL:           defaultStaleTTL,
		warmInterval:       defaultWarmInterval,
		warmTopBooks:       defaultWarmTopBooks,
		warmConcurrency:    defaultWarmConcurrency,
		cacheMaxEntries:    defaultCacheMaxEntries,
		interestMaxEntries: defaultInterestMaxEntries,
	}
}

func (s *Service) runWarmer(ctx context.Context) {
	ticker := time.NewTicker(s.warmerCfg.warmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runWarmCycle(ctx)
		}
	}
}

func (s *Service) runWarmCycle(ctx context.Context) {
	now := time.Now()
	specs := s.collectWarmSpecs(now)
	if len(specs) == 0 {
		return
	}

	// Bounded parallelism so a long pinned list cannot stampede the catalog.
	limit := s.warmerCfg.warmConcurrency
	if limit <= 0 {
		limit = defaultWarmConcurrency
	}
	sem := semaphore.NewWeighted(int64(limit))
	var wg sync.WaitGroup

	for _, spec := range specs {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		default:
		}

		wg.Add(1)
		go func(spec warmSpec) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				s.cacheClearRefreshing(spec.key)
				return
			}
			defer sem.Release(1)

			refreshCtx, cancel := context.WithTimeout(ctx, s.timeout+2*time.Second)
			defer cancel()

			data, err := s.loadUpstream(refreshCtx, spec.bookID)
			if err != nil {
				s.cacheClearRefreshing(spec.key)
				return
			}
			s.cacheStore(spec.key, data, time.Now())
		}(spec)
	}

	wg.Wait()
}

// collectWarmSpecs picks the books worth refreshing this cycle: every pinned
// book plus the most watched books observed since startup. Entries that are
// still fresh are skipped.
func (s *Service) collectWarmSpecs(now time.Time) []warmSpec {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	specs := make([]warmSpec, 0, len(s.warmerCfg.pinnedBooks))
	seen := make(map[string]struct{}, len(s.warmerCfg.pinnedBooks))

	appendSpec := func(key, bookID string, interest *bookInterest) {
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		if interest != nil && !interest.lastWarm.IsZero() && now.Sub(interest.lastWarm) < s.warmerCfg.warmInterval/2 {
			return
		}
		if entry, ok := s.cache[key]; ok {
			if now.Before(entry.expiresAt) {
				return
			}
			// A stale-triggered refresh is already in flight for this key.
			if entry.refreshing {
				return
			}
		}
		if interest != nil {
			interest.lastWarm = now
		}
		if entry := s.cache[key]; entry != nil {
			entry.refreshing = true
		}
		specs = append(specs, warmSpec{key: key, bookID: bookID})
	}

	for _, bookID := range s.warmerCfg.pinnedBooks {
		key := watchCacheKey(bookID)
		appendSpec(key, bookID, s.interest[key])
	}

	if len(s.interest) == 0 {
		return specs
	}

	keys := make([]string, 0, len(s.interest))
	for key := range s.interest {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		left := s.interest[keys[i]]
		right := s.interest[keys[j]]
		if left.hits != right.hits {
			return left.hits > right.hits
		}
		return left.lastSeen.After(right.lastSeen)
	})

	limit := s.warmerCfg.warmTopBooks
	if limit <= 0 {
		limit = defaultWarmTopBooks
	}
	if len(keys) < limit {
		limit = len(keys)
	}
	for _, key := range keys[:limit] {
		pop := s.interest[key]
		if pop == nil {
			continue
		}
		appendSpec(key, pop.bookID, pop)
	}
	return specs
}

func (s *Service) cacheLookup(key string, now time.Time) (WatchData, bool, bool) {
	// Try Redis first
	if s.redisCache != nil {
		data, found, err := s.redisCache.Get(context.Background(), key)
		if err == nil && found {
			metrics.CacheHitsTotal.Inc()
			// Keep a local in-memory copy so the warmer can reason about freshness without re-querying Redis.
			s.cacheStoreMemoryOnly(key, data, now)
			return data, true, false
		}
	}

	// Fallback to in-memory
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	entry, ok := s.cache[key]
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return WatchData{}, false, false
	}

	if now.Before(entry.expiresAt) {
		metrics.CacheHitsTotal.Inc()
		return cloneWatchData(entry.data), true, false
	}

	if now.Before(entry.staleUntil) {
		metrics.CacheHitsTotal.Inc()
		// Use sync.Once to ensure only one refresh happens per stale period.
		// This prevents duplicate refreshes even if multiple requests arrive
		// during the stale window or if a previous refresh failed quickly.
		needsRefresh := false
		entry.refreshOnce.Do(func() {
			needsRefresh = true
			entry.refreshing = true
		})
		return cloneWatchData(entry.data), true, needsRefresh
	}

	metrics.CacheMissesTotal.Inc()
	delete(s.cache, key)
	delete(s.interest, key)
	return WatchData{}, false, false
}

func (s *Service) cacheStore(key string, data WatchData, now time.Time) {
	cacheTTL := s.warmerCfg.cacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	staleTTL := s.warmerCfg.staleTTL
	if staleTTL <= cacheTTL {
		staleTTL = cacheTTL * 3
	}

	// Store in Redis if available
	if s.redisCache != nil {
		_ = s.redisCache.Set(context.Background(), key, data, cacheTTL)
	}

	// Also store in memory
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[key] = &cachedWatch{
		data:       cloneWatchData(data),
		updatedAt:  now,
		expiresAt:  now.Add(cacheTTL),
		staleUntil: now.Add(staleTTL),
		refreshing: false,
	}

	s.trimCacheLocked(now)
}

func (s *Service) cacheStoreMemoryOnly(key string, data WatchData, now time.Time) {
	cacheTTL := s.warmerCfg.cacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	staleTTL := s.warmerCfg.staleTTL
	if staleTTL <= cacheTTL {
		staleTTL = cacheTTL * 3
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cache[key] = &cachedWatch{
		data:       cloneWatchData(data),
		updatedAt:  now,
		expiresAt:  now.Add(cacheTTL),
		staleUntil: now.Add(staleTTL),
		refreshing: false,
	}
	s.trimCacheLocked(now)
}

func (s *Service) cacheClearRefreshing(key string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if entry := s.cache[key]; entry != nil {
		entry.refreshing = false
	}
}

func (s *Service) markInterest(bookID string, now time.Time) {
	key := watchCacheKey(bookID)

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	pop, ok := s.interest[key]
	if !ok {
		s.interest[key] = &bookInterest{
			bookID:   bookID,
			hits:     1,
			lastSeen: now,
		}
	} else {
		pop.hits++
		pop.lastSeen = now
	}

	limit := s.warmerCfg.interestMaxEntries
	if limit <= 0 {
		limit = defaultInterestMaxEntries
	}
	if len(s.interest) <= limit {
		return
	}

	// Drop the least watched + oldest book.
	type pair struct {
		key   string
		value *bookInterest
	}
	items := make([]pair, 0, len(s.interest))
	for popKey, value := range s.interest {
		items = append(items, pair{key: popKey, value: value})
	}
	sort.Slice(items, func(i, j int) bool {
		left := items[i].value
		right := items[j].value
		if left.hits != right.hits {
			return left.hits < right.hits
		}
		return left.lastSeen.Before(right.lastSeen)
	})
	for i := 0; i < len(items)-limit; i++ {
		delete(s.interest, items[i].key)
	}
}

func (s *Service) trimCacheLocked(now time.Time) {
	maxEntries := s.warmerCfg.cacheMaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}

	for key, entry := range s.cache {
		if now.After(entry.staleUntil) {
			delete(s.cache, key)
		}
	}

	if len(s.cache) <= maxEntries {
		return
	}

	type pair struct {
		key   string
		entry *cachedWatch
	}
	items := make([]pair, 0, len(s.cache))
	for key, entry := range s.cache {
		items = append(items, pair{key: key, entry: entry})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].entry.updatedAt.Before(items[j].entry.updatedAt)
	})
	for i := 0; i < len(items)-maxEntries; i++ {
		delete(s.cache, items[i].key)
	}
}

func cloneWatchData(data WatchData) WatchData {
	cloned := data
	if data.Episodes != nil {
		cloned.Episodes = make([]domain.Episode, len(data.Episodes))
		for i, episode := range data.Episodes {
			copied := episode
			if episode.CDNs != nil {
				copied.CDNs = make([]domain.CDN, len(episode.CDNs))
				for j, cdn := range episode.CDNs {
					cdnCopy := cdn
					cdnCopy.Sources = append([]domain.VideoSource(nil), cdn.Sources...)
					copied.CDNs[j] = cdnCopy
				}
			}
			cloned.Episodes[i] = copied
		}
	}
	return cloned
}

func watchCacheKey(bookID string) string {
	return "b=" + strings.TrimSpace(bookID)
}

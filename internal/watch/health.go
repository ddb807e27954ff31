package watch

import (
	"context"
	"errors"
	"strings"
	"time"

	"dramastream/watchservice/internal/domain"
	"dramastream/watchservice/internal/metrics"
)

const (
	endpointDetail   = "detail"
	endpointChapters = "chapters"

	catalogFailureThreshold = 3
	catalogBlockBase        = 2 * time.Minute
	catalogBlockMax         = 15 * time.Minute
)

type endpointHealth struct {
	consecutiveFailures int
	blockedUntil        time.Time
	lastError           string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastTimeout         bool
	totalRequests       int64
	totalFailures       int64
	timeoutCount        int64
}

func (s *Service) isEndpointBlocked(endpoint string, now time.Time) (bool, time.Time, string) {
	if s == nil {
		return false, time.Time{}, ""
	}

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	state := s.health[endpoint]
	if state == nil {
		return false, time.Time{}, ""
	}
	if state.blockedUntil.IsZero() || now.After(state.blockedUntil) {
		return false, time.Time{}, ""
	}
	return true, state.blockedUntil, state.lastError
}

func (s *Service) recordCatalogResult(endpoint string, err error, latency time.Duration, now time.Time) {
	if s == nil {
		return
	}
	// A cancelled fetch means the sibling fetch failed first. That says
	// nothing about this endpoint's health, so don't count it.
	if errors.Is(err, context.Canceled) {
		return
	}

	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	state := s.health[endpoint]
	if state == nil {
		state = &endpointHealth{}
		s.health[endpoint] = state
	}
	state.totalRequests++
	if latency > 0 {
		state.lastLatency = latency
		metrics.CatalogRequestDuration.WithLabelValues(endpoint).Observe(latency.Seconds())
	}
	state.lastTimeout = isTimeoutLikeError(err)
	if state.lastTimeout {
		state.timeoutCount++
	}

	// A not-found answer still proves the endpoint is reachable.
	if err == nil || errors.Is(err, domain.ErrNotFound) {
		state.consecutiveFailures = 0
		state.blockedUntil = time.Time{}
		state.lastError = ""
		state.lastSuccessAt = now
		status := "ok"
		if err != nil {
			status = "not_found"
		}
		metrics.CatalogRequestsTotal.WithLabelValues(endpoint, status).Inc()
		metrics.CatalogAvailable.WithLabelValues(endpoint).Set(1)
		return
	}

	state.consecutiveFailures++
	state.totalFailures++
	state.lastFailureAt = now
	state.lastError = err.Error()

	status := "error"
	if state.lastTimeout {
		status = "timeout"
	}
	metrics.CatalogRequestsTotal.WithLabelValues(endpoint, status).Inc()

	if state.consecutiveFailures >= catalogFailureThreshold {
		state.blockedUntil = now.Add(exponentialBlockDuration(state.consecutiveFailures))
		metrics.CatalogAvailable.WithLabelValues(endpoint).Set(0)
	}
}

// exponentialBlockDuration calculates how long to block an endpoint based on
// consecutive failures: baseDuration × 2^(failures - threshold), capped at 15min.
func exponentialBlockDuration(consecutiveFailures int) time.Duration {
	exponent := consecutiveFailures - catalogFailureThreshold
	if exponent < 0 {
		exponent = 0
	}
	d := catalogBlockBase
	for i := 0; i < exponent; i++ {
		d *= 2
		if d > catalogBlockMax {
			return catalogBlockMax
		}
	}
	return d
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "timeout") || strings.Contains(value, "deadline exceeded")
}

// CatalogDiagnostics reports per-endpoint upstream health for the health
// endpoint.
func (s *Service) CatalogDiagnostics() []domain.CatalogEndpointHealth {
	s.healthMu.Lock()
	defer s.healthMu.Unlock()

	endpoints := []string{endpointChapters, endpointDetail}
	items := make([]domain.CatalogEndpointHealth, 0, len(endpoints))
	for _, endpoint := range endpoints {
		item := domain.CatalogEndpointHealth{Endpoint: endpoint}
		if state := s.health[endpoint]; state != nil {
			item.ConsecutiveFailures = state.consecutiveFailures
			if !state.blockedUntil.IsZero() {
				blockedUntil := state.blockedUntil
				item.BlockedUntil = &blockedUntil
			}
			item.LastError = state.lastError
			if !state.lastSuccessAt.IsZero() {
				lastSuccessAt := state.lastSuccessAt
				item.LastSuccessAt = &lastSuccessAt
			}
			if !state.lastFailureAt.IsZero() {
				lastFailureAt := state.lastFailureAt
				item.LastFailureAt = &lastFailureAt
			}
			item.LastLatencyMS = state.lastLatency.Milliseconds()
			item.LastTimeout = state.lastTimeout
			item.TotalRequests = state.totalRequests
			item.TotalFailures = state.totalFailures
			item.TimeoutCount = state.timeoutCount
		}
		items = append(items, item)
	}
	return items
}

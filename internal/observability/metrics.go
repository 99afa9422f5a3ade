package observability

import (
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for the cache and decision paths.
type Metrics struct {
	mu           sync.Mutex
	cacheHits    map[string]int64
	cacheMisses  map[string]int64
	staleServes  map[string]int64
	originFetch  map[string]int64
	decisions    map[string]int64
	requestCount map[string]int64
	errorCount   map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		cacheHits:    make(map[string]int64),
		cacheMisses:  make(map[string]int64),
		staleServes:  make(map[string]int64),
		originFetch:  make(map[string]int64),
		decisions:    make(map[string]int64),
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
	}
}

// RecordCacheHit counts a fresh cache hit for a key class.
func (m *Metrics) RecordCacheHit(class string) {
	m.bump(&m.cacheHits, class)
}

// RecordCacheMiss counts a miss (including version-floor misses).
func (m *Metrics) RecordCacheMiss(class string) {
	m.bump(&m.cacheMisses, class)
}

// RecordStaleServe counts a stale-if-error serve.
func (m *Metrics) RecordStaleServe(class string) {
	m.bump(&m.staleServes, class)
}

// RecordOriginFetch counts an actual origin call.
func (m *Metrics) RecordOriginFetch(class string) {
	m.bump(&m.originFetch, class)
}

// RecordDecision counts an access decision by outcome.
func (m *Metrics) RecordDecision(outcome string) {
	m.bump(&m.decisions, outcome)
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Snapshot copies all counters for exposure on the metrics endpoint.
func (m *Metrics) Snapshot() map[string]map[string]int64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]map[string]int64{
		"cache_hits":     copyCounts(m.cacheHits),
		"cache_misses":   copyCounts(m.cacheMisses),
		"stale_serves":   copyCounts(m.staleServes),
		"origin_fetches": copyCounts(m.originFetch),
		"decisions":      copyCounts(m.decisions),
		"requests":       copyCounts(m.requestCount),
		"errors":         copyCounts(m.errorCount),
	}
}

func (m *Metrics) bump(counts *map[string]int64, key string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	(*counts)[key]++
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

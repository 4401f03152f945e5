package optimize

import (
	"fmt"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/quant-grid/internal/backtest"
)

// CacheKey identifies one evaluation: same rule, same parameters, same
// bars, same engine config means the same report.
type CacheKey struct {
	RuleName          string
	ParamsHash        string
	SeriesFingerprint string
	ConfigHash        string
}

// String returns string representation of the cache key.
func (k CacheKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", k.RuleName, k.ParamsHash, k.SeriesFingerprint, k.ConfigHash)
}

// EvaluationCache provides in-memory caching for evaluation reports, so
// repeated sweeps over the same series skip finished parameter sets.
type EvaluationCache struct {
	cache     *cache.Cache
	ttl       time.Duration
	maxSize   int
	mu        sync.RWMutex
	hitCount  uint64
	missCount uint64
}

// NewEvaluationCache creates an evaluation cache with the given entry TTL
// and size cap.
func NewEvaluationCache(ttl time.Duration, maxSize int) *EvaluationCache {
	return &EvaluationCache{
		cache:   cache.New(ttl, ttl*2),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Get retrieves a cached report.
func (ec *EvaluationCache) Get(key CacheKey) (backtest.Report, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if result, found := ec.cache.Get(key.String()); found {
		if report, ok := result.(backtest.Report); ok {
			ec.hitCount++
			return report, true
		}
	}

	ec.missCount++
	return backtest.Report{}, false
}

// Set stores a report in the cache.
func (ec *EvaluationCache) Set(key CacheKey, report backtest.Report) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if ec.cache.ItemCount() >= ec.maxSize {
		ec.cache.DeleteExpired()
	}

	ec.cache.Set(key.String(), report, ec.ttl)
}

// Clear flushes the entire cache.
func (ec *EvaluationCache) Clear() {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	ec.cache.Flush()
	ec.hitCount = 0
	ec.missCount = 0
}

// Stats returns cache statistics.
func (ec *EvaluationCache) Stats() (hits, misses uint64, ratio float64) {
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	hits = ec.hitCount
	misses = ec.missCount
	total := hits + misses
	if total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// ItemCount returns the number of cached reports.
func (ec *EvaluationCache) ItemCount() int {
	return ec.cache.ItemCount()
}

package cache

import (
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"

	"gitlab.com/nestestates/api/agent-lifecycle-service/internal/observer"
)

// DetectionCache keeps a bloom filter of branch IDs that already have an
// agent row, so roster syncs that mostly re-announce known branches can skip
// the existence lookup. A negative answer is authoritative, a positive one
// still needs the database.
type DetectionCache struct {
	seenFilter     *bloom.BloomFilter
	mu             sync.RWMutex
	hits           atomic.Int64
	misses         atomic.Int64
	falsePositives atomic.Int64
	companyID      string
}

// NewDetectionCache creates a detection cache sized for the expected number
// of branches at the given false positive rate.
func NewDetectionCache(companyID string, expectedBranches uint, fpRate float64) *DetectionCache {
	return &DetectionCache{
		seenFilter: bloom.NewWithEstimates(expectedBranches, fpRate),
		companyID:  companyID,
	}
}

// generateKey creates a cache key from company and branch ID using FNV-1a hash
func (c *DetectionCache) generateKey(branchID string) string {
	h := fnv.New64a()
	h.Write([]byte(c.companyID + ":" + branchID))
	return fmt.Sprintf("%x", h.Sum64())
}

// MightContain reports whether the branch may already have an agent. False
// means the branch has definitely not been seen through this process.
func (c *DetectionCache) MightContain(branchID string) bool {
	key := c.generateKey(branchID)

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.seenFilter.TestString(key) {
		c.hits.Add(1)
		observer.IncDetectionCacheCheck(c.companyID, "hit")
		return true
	}

	c.misses.Add(1)
	observer.IncDetectionCacheCheck(c.companyID, "miss")
	return false
}

// MarkSeen records a branch as having an agent row.
func (c *DetectionCache) MarkSeen(branchID string) {
	key := c.generateKey(branchID)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seenFilter.AddString(key)
}

// RecordFalsePositive tracks a filter hit that the database contradicted.
func (c *DetectionCache) RecordFalsePositive() {
	c.falsePositives.Add(1)
	observer.IncDetectionCacheCheck(c.companyID, "false_positive")
}

// GetStats returns cache statistics
func (c *DetectionCache) GetStats() DetectionCacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	fps := c.falsePositives.Load()
	total := hits + misses

	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	fpRate := float64(0)
	if total > 0 {
		fpRate = float64(fps) / float64(total)
	}

	c.mu.RLock()
	seenSize := c.seenFilter.ApproximatedSize()
	c.mu.RUnlock()

	return DetectionCacheStats{
		Hits:              hits,
		Misses:            misses,
		HitRate:           hitRate,
		FalsePositives:    fps,
		FalsePositiveRate: fpRate,
		SeenSize:          seenSize,
	}
}

type DetectionCacheStats struct {
	Hits              int64
	Misses            int64
	HitRate           float64
	FalsePositives    int64
	FalsePositiveRate float64
	SeenSize          uint32
}

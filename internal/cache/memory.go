package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/fortuna/gridiron/internal/league"
)

// MemoryCache is an in-process Scores implementation. Entries are stored
// encoded so callers never share slices with the cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func (c *MemoryCache) Get(_ context.Context, leagueID string, period int, fingerprint string) ([]league.PeriodScore, bool, error) {
	c.mu.RLock()
	raw, ok := c.entries[scoreKey(leagueID, period)]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("decoding cached scores: %w", err)
	}
	if e.Fingerprint != fingerprint {
		return nil, false, nil
	}
	return e.Scores, true, nil
}

func (c *MemoryCache) Put(_ context.Context, leagueID string, period int, fingerprint string, scores []league.PeriodScore) error {
	data, err := json.Marshal(entry{Fingerprint: fingerprint, Scores: scores})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[scoreKey(leagueID, period)] = data
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, leagueID string, periods ...int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range periods {
		delete(c.entries, scoreKey(leagueID, p))
	}
	return nil
}

// Len returns the number of cached periods.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var (
	_ Scores = (*MemoryCache)(nil)
	_ Scores = (*RedisCache)(nil)
)

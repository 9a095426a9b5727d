package moves

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Fetcher loads a single move from a backing catalog.
type Fetcher interface {
	Fetch(id string) (*Move, error)
}

// Cache is a read-through Catalog over a Fetcher. Successful fetches are kept
// for the life of the Cache; failures are not cached.
//
// Invariant: safe for concurrent use.
type Cache struct {
	src    Fetcher
	logger *zap.Logger

	mu     sync.RWMutex
	moves  map[string]*Move
	hits   int
	misses int
}

// NewCache wraps src.
//
// Precondition: src and logger must be non-nil.
func NewCache(src Fetcher, logger *zap.Logger) *Cache {
	return &Cache{src: src, logger: logger, moves: make(map[string]*Move)}
}

// Lookup returns the cached move for id, fetching it on first use.
func (c *Cache) Lookup(id string) (*Move, bool) {
	c.mu.RLock()
	m, ok := c.moves[id]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return m, true
	}

	m, err := c.src.Fetch(id)
	if err != nil {
		if !errors.Is(err, ErrUnknownMove) {
			c.logger.Warn("move fetch failed", zap.String("move_id", id), zap.Error(err))
		}
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses++
	if cached, ok := c.moves[id]; ok {
		return cached, true
	}
	c.moves[id] = m
	return m, true
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

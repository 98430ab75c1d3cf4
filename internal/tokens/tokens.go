// Package tokens keeps the API token snapshot used by key auth and rate limiting.
package tokens

import (
	"context"
	"sync"
	"time"

	"pdf2html/internal/infra/logging"
)

// Entry is the per-token configuration.
type Entry struct {
	RateLimit int
}

// Repository loads the full token set.
type Repository interface {
	LoadTokens(ctx context.Context) (map[string]Entry, error)
}

// Cache is an in-memory token snapshot. It is not Ready until the first Replace.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCache returns an empty, not-ready cache.
func NewCache() *Cache {
	return &Cache{}
}

// Replace swaps the snapshot with a copy of m.
func (c *Cache) Replace(m map[string]Entry) {
	next := make(map[string]Entry, len(m))
	for k, v := range m {
		next[k] = v
	}
	c.mu.Lock()
	c.entries = next
	c.mu.Unlock()
}

// Ready reports whether a snapshot has been loaded at least once.
func (c *Cache) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries != nil
}

// Valid reports whether token is known.
func (c *Cache) Valid(token string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[token]
	return ok
}

// RateLimit returns the token's limit per interval; 0 disables limiting.
func (c *Cache) RateLimit(token string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[token].RateLimit
}

// Reloader refreshes a Cache from a Repository.
type Reloader struct {
	repo     Repository
	cache    *Cache
	interval time.Duration
}

// NewReloader wires repo to cache.
func NewReloader(repo Repository, cache *Cache, interval time.Duration) *Reloader {
	return &Reloader{repo: repo, cache: cache, interval: interval}
}

// LoadOnce replaces the cache with the repository contents. On error the
// previous snapshot is kept.
func (r *Reloader) LoadOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m, err := r.repo.LoadTokens(ctx)
	if err != nil {
		return err
	}
	r.cache.Replace(m)
	return nil
}

// Start loads once, then reloads every interval until ctx is done.
func (r *Reloader) Start(ctx context.Context) {
	go func() {
		if err := r.LoadOnce(ctx); err != nil {
			logging.Error("Failed to load API tokens", "error", err)
		}
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := r.LoadOnce(ctx); err != nil {
					logging.Error("Failed to reload API tokens", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

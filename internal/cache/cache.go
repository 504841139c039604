// Package cache provides the bounded in-memory caches used by the key
// manager. Entries expire after a TTL and the least recently used entry is
// evicted once the cache is full.
package cache

import (
	"context"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Purge removes every entry
	Purge()

	// Size returns the current number of items in the cache
	Size() int
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// Janitor periodically removes expired entries from registered caches.
type Janitor struct {
	caches    []Cleaner
	onCleaned func(removed int)
}

// NewJanitor creates a janitor. onCleaned, when non-nil, is called after
// every sweep with the number of removed entries.
func NewJanitor(onCleaned func(removed int)) *Janitor {
	return &Janitor{onCleaned: onCleaned}
}

// Register adds a cache to the janitor
func (j *Janitor) Register(c Cleaner) {
	j.caches = append(j.caches, c)
}

// Sweep cleans all registered caches once and returns the removed count.
func (j *Janitor) Sweep() int {
	total := 0
	for _, c := range j.caches {
		total += c.CleanExpired()
	}
	if j.onCleaned != nil {
		j.onCleaned(total)
	}
	return total
}

// Run sweeps every interval until ctx is done.
func (j *Janitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

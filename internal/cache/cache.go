// Package cache implements the worker-side mapping from dataset hash to
// Dataset (C5). It is private to each worker process; cross-worker sharing
// happens only via the wire protocol.
package cache

import (
	"sync"

	"github.com/pangea-net/traincoord/internal/dataset"
)

// Cache holds datasets the worker has received, retained for the process
// lifetime (there is no eviction — the original has unbounded retention
// too, since worker processes are short-lived and re-seeded on restart).
type Cache struct {
	mu   sync.RWMutex
	sets map[dataset.Hash]*dataset.Dataset
}

func New() *Cache {
	return &Cache{sets: make(map[dataset.Hash]*dataset.Dataset)}
}

// Get returns the dataset for hash, if present.
func (c *Cache) Get(h dataset.Hash) (*dataset.Dataset, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.sets[h]
	return d, ok
}

// Has reports whether hash is already cached, used for the DUPL_DATA path
// of REQUEST_RECV_DATASET.
func (c *Cache) Has(h dataset.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sets[h]
	return ok
}

// Put stores d under its own hash, unconditionally overwriting any prior
// entry for that hash (a content-addressed key can never legitimately
// collide with different content).
func (c *Cache) Put(d *dataset.Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets[d.Hash()] = d
}

// Len reports how many datasets are cached, used by tests.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sets)
}

// Package guide consolidates paginated EPG slices into per-channel program
// listings.
package guide

import (
	"sync"

	"github.com/savid/xumo/internal/xumo"
)

// AssetCache accumulates asset metadata across EPG pages for one
// consolidation run. Writes are last-write-wins; the same asset surfaces
// identical data regardless of which page carried it, so merge order does
// not matter. Safe for concurrent use.
type AssetCache struct {
	mu     sync.Mutex
	assets map[string]xumo.Asset
}

// NewAssetCache creates an empty cache.
func NewAssetCache() *AssetCache {
	return &AssetCache{
		assets: make(map[string]xumo.Asset, 1024),
	}
}

// Merge inserts or overwrites every entry of batch.
func (c *AssetCache) Merge(batch map[string]xumo.Asset) {
	if len(batch) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, asset := range batch {
		c.assets[id] = asset
	}
}

// Lookup returns the asset for id. Absence is a normal outcome, not an
// error: the asset may simply never have been fetched.
func (c *AssetCache) Lookup(id string) (xumo.Asset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	asset, ok := c.assets[id]

	return asset, ok
}

// Len returns the number of cached assets.
func (c *AssetCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.assets)
}

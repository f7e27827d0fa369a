// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package client

import (
	"fmt"
	"sync"

	"github.com/treestash/treesync/models"
)

// Strategy controls how aggressively local data is retained for a subtree.
type Strategy string

const (
	// StrategyAll caches everything under the root eagerly.
	StrategyAll Strategy = "ALL"

	// StrategySeen caches only documents that have been accessed.
	StrategySeen Strategy = "SEEN"

	// StrategyFlush keeps no cached data: reads and writes go straight to
	// the remote, and previously cached data without pending changes is
	// dropped.
	StrategyFlush Strategy = "FLUSH"
)

// Caching maps folder roots to caching strategies. Lookups use the longest
// matching claimed prefix; unclaimed paths default to SEEN.
type Caching struct {
	mu    sync.RWMutex
	roots map[string]Strategy
}

// NewCaching returns an empty strategy table.
func NewCaching() *Caching {
	return &Caching{roots: make(map[string]Strategy)}
}

// Set claims a caching strategy for the subtree rooted at folder.
func (c *Caching) Set(folder string, strategy Strategy) error {
	if !models.ValidPath(folder) || !models.IsFolder(folder) {
		return fmt.Errorf("%w: caching roots must be folders, got %q", models.ErrInvalidPath, folder)
	}
	switch strategy {
	case StrategyAll, StrategySeen, StrategyFlush:
	default:
		return fmt.Errorf("unknown caching strategy %q", strategy)
	}

	c.mu.Lock()
	c.roots[folder] = strategy
	c.mu.Unlock()
	return nil
}

// CheckPath returns the strategy claimed for path by its longest matching
// root folder.
func (c *Caching) CheckPath(path string) Strategy {
	c.mu.RLock()
	defer c.mu.RUnlock()

	best := StrategySeen
	bestLen := -1
	for root, strategy := range c.roots {
		if root != path && !models.IsAncestorPath(root, path) {
			continue
		}
		if len(root) > bestLen {
			best = strategy
			bestLen = len(root)
		}
	}
	return best
}

// Cached reports whether reads and writes under path go through the local
// cache at all.
func (c *Caching) Cached(path string) bool {
	return c.CheckPath(path) != StrategyFlush
}

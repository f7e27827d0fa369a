// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

// Package revcache maintains a path-to-revision-tag map and incrementally
// recomputes parent folder tags as a hash of their children's tags, so folder
// change detection never requires a full tree walk.
package revcache

import (
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/treestash/treesync/models"
)

// RevisionCache maps lowercase-normalized paths to opaque revision tags.
// Setting a tag on a non-root key updates the parent folder's per-child
// side table and, while propagation is active, recomputes every ancestor
// folder tag up to the root.
type RevisionCache struct {
	defaultTag string

	mu          sync.Mutex
	entries     map[string]string
	itemsRev    map[string]map[string]string // folder -> child -> tag
	propagation bool
}

// New creates a RevisionCache returning defaultTag for unset keys.
// Propagation starts active.
func New(defaultTag string) *RevisionCache {
	return &RevisionCache{
		defaultTag:  defaultTag,
		entries:     make(map[string]string),
		itemsRev:    make(map[string]map[string]string),
		propagation: true,
	}
}

// Get returns the tag recorded for key, or the configured default if the key
// has never been set. Lookup is case-insensitive.
func (c *RevisionCache) Get(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if tag, ok := c.entries[normalize(key)]; ok {
		return tag
	}
	return c.defaultTag
}

// Set records tag for key and, while propagation is active, recomputes every
// ancestor folder tag. Setting an empty tag removes the key's contribution
// from its parent folder instead of hashing an empty value.
func (c *RevisionCache) Set(key, tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(normalize(key), tag)
}

// Delete removes the tag recorded for key. Equivalent to Set(key, "").
func (c *RevisionCache) Delete(key string) {
	c.Set(key, "")
}

// DeactivatePropagation suspends ancestor recomputation so that a bulk of
// Set calls (e.g. ingesting a complete remote listing) does not trigger one
// upward pass per call. Callers must pair it with ActivatePropagation.
func (c *RevisionCache) DeactivatePropagation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.propagation = false
}

// ActivatePropagation performs one full bottom-up rebuild of all folder tags
// from the per-child side table and turns propagation back on.
func (c *RevisionCache) ActivatePropagation() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// The side table only carries folder-to-subfolder edges once propagation
	// has run, so the rebuild must cover every ancestor of every recorded
	// folder, not just the folders recorded so far.
	folderSet := make(map[string]struct{})
	for folder := range c.itemsRev {
		for p := folder; p != ""; p = models.ParentPath(p) {
			folderSet[p] = struct{}{}
		}
	}
	folders := make([]string, 0, len(folderSet))
	for folder := range folderSet {
		folders = append(folders, folder)
	}
	// Deepest folders first, so each parent hashes already-recomputed
	// child tags.
	sort.Slice(folders, func(i, j int) bool {
		return strings.Count(folders[i], "/") > strings.Count(folders[j], "/")
	})

	for _, folder := range folders {
		c.recompute(folder)
	}
	c.propagation = true
}

func (c *RevisionCache) set(key, tag string) {
	if tag == "" {
		delete(c.entries, key)
	} else {
		c.entries[key] = tag
	}

	parent := models.ParentPath(key)
	if parent == "" {
		return
	}

	children, ok := c.itemsRev[parent]
	if !ok {
		children = make(map[string]string)
		c.itemsRev[parent] = children
	}
	if tag == "" {
		delete(children, key)
		if len(children) == 0 {
			delete(c.itemsRev, parent)
		}
	} else {
		children[key] = tag
	}

	if c.propagation {
		c.set(parent, c.folderTag(parent))
	}
}

func (c *RevisionCache) recompute(folder string) {
	tag := c.folderTag(folder)
	if tag == "" {
		delete(c.entries, folder)
	} else {
		c.entries[folder] = tag
	}
	if parent := models.ParentPath(folder); parent != "" {
		children, ok := c.itemsRev[parent]
		if !ok {
			children = make(map[string]string)
			c.itemsRev[parent] = children
		}
		if tag == "" {
			delete(children, folder)
		} else {
			children[folder] = tag
		}
	}
}

// folderTag hashes the sorted child:tag pairs of folder. The result depends
// only on the set of pairs, never on the order they were recorded in.
func (c *RevisionCache) folderTag(folder string) string {
	children := c.itemsRev[folder]
	if len(children) == 0 {
		return ""
	}

	pairs := make([]string, 0, len(children))
	for child, tag := range children {
		pairs = append(pairs, child+":"+tag)
	}
	sort.Strings(pairs)

	h := fnv.New32a()
	for i, pair := range pairs {
		if i > 0 {
			h.Write([]byte("|"))
		}
		h.Write([]byte(pair))
	}
	return strconv.FormatUint(uint64(h.Sum32()), 16)
}

func normalize(key string) string {
	return strings.ToLower(key)
}

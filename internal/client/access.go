// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package client

import (
	"fmt"
	"sync"

	"github.com/treestash/treesync/models"
)

// Access modes claimable per subtree root.
const (
	ModeRead      = "r"
	ModeReadWrite = "rw"
)

// Access tracks which subtrees the application claimed and with which mode.
// The sync engine consults it before fetching (read) or pushing (write).
type Access struct {
	mu    sync.RWMutex
	roots map[string]string
}

// NewAccess returns an empty claim table.
func NewAccess() *Access {
	return &Access{roots: make(map[string]string)}
}

// Claim grants mode for the subtree rooted at folder. A later claim upgrades
// but never downgrades an earlier one.
func (a *Access) Claim(folder, mode string) error {
	if !models.ValidPath(folder) || !models.IsFolder(folder) {
		return fmt.Errorf("%w: access roots must be folders, got %q", models.ErrInvalidPath, folder)
	}
	if mode != ModeRead && mode != ModeReadWrite {
		return fmt.Errorf("unknown access mode %q", mode)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.roots[folder]; ok && existing == ModeReadWrite {
		return nil
	}
	a.roots[folder] = mode
	return nil
}

// CheckPathPermission reports whether any claimed root covering path grants
// mode. Read-write claims satisfy read checks.
func (a *Access) CheckPathPermission(path, mode string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for root, granted := range a.roots {
		if root != path && !models.IsAncestorPath(root, path) {
			continue
		}
		if granted == ModeReadWrite || granted == mode {
			return true
		}
	}
	return false
}

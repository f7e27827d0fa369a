// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package syncer

import (
	"context"
	"time"

	"github.com/treestash/treesync/internal/store"
	"github.com/treestash/treesync/models"
)

// maxDiffTasksPerCycle bounds one diff pass so a huge tree cannot stall a
// cycle; the remainder is picked up by subsequent cycles.
const maxDiffTasksPerCycle = 100

// needsFetch reports whether the node is waiting on remote content: it is in
// conflict, its confirmed state is a stub without content, or a parent folder
// fetch announced a new revision whose content is still unknown.
func needsFetch(node *models.Node) bool {
	if node.InConflict() {
		return true
	}
	if node.Common != nil && !node.Common.HasContent() {
		return true
	}
	if node.Remote != nil && node.Remote.Revision != "" && !node.Remote.HasContent() {
		return true
	}
	return false
}

// needsPush reports whether the node has a pending local document change with
// no push already in flight. Folders are never pushed directly; their
// listings converge through document pushes.
func needsPush(node *models.Node) bool {
	if models.IsFolder(node.Path) || node.InConflict() {
		return false
	}
	return node.Local != nil && node.Push == nil
}

// collectDiffTasks scans the tree for nodes that need a round trip right now
// and queues their tasks. Returns the number of tasks queued.
func (e *Engine) collectDiffTasks(ctx context.Context) (int, error) {
	added := 0
	err := e.store.ForAllNodes(ctx, func(node *models.Node) error {
		if added >= maxDiffTasksPerCycle {
			return store.ErrStopIteration
		}

		switch {
		case node.Validate() != nil:
			// Corrupt local state self-heals through a fresh fetch.
			e.log.Warn().Str("path", node.Path).Msg("corrupt node scheduled for refetch")
			e.addTask(node.Path)
			added++
		case needsFetch(node) && e.access(node.Path, "r"):
			e.addTask(node.Path)
			added++
		case needsPush(node) && e.access(node.Path, "rw"):
			e.addTask(node.Path)
			added++
		}
		return nil
	})
	if err != nil {
		return added, err
	}
	return added, nil
}

// collectRefreshTasks queues paths whose confirmed state has gone stale. It
// only runs when the diff pass found nothing, and it coalesces work by
// preferring a document's parent folder: one folder fetch refreshes every
// child's revision knowledge at once.
func (e *Engine) collectRefreshTasks(ctx context.Context) error {
	cutoff := time.Now().Add(-e.syncInterval).UnixMilli()

	var stale []string
	existing := make(map[string]struct{})
	err := e.store.ForAllNodes(ctx, func(node *models.Node) error {
		existing[node.Path] = struct{}{}
		if !e.access(node.Path, "r") {
			return nil
		}
		if node.Common != nil && node.Common.Timestamp >= cutoff {
			return nil
		}
		stale = append(stale, node.Path)
		return nil
	})
	if err != nil {
		return err
	}

	// Prefer the parent folder over individual documents: one folder fetch
	// refreshes revision knowledge for all its children. Only coalesce into
	// folders we actually track, so lone documents keep their conditional
	// fetch.
	candidates := make(map[string]struct{}, len(stale))
	for _, path := range stale {
		if models.IsDocument(path) {
			if parent := models.ParentPath(path); parent != "" {
				if _, tracked := existing[parent]; tracked {
					candidates[parent] = struct{}{}
					continue
				}
			}
		}
		candidates[path] = struct{}{}
	}

	deleteChildPathsFromTasks(candidates)
	for path := range candidates {
		e.addTask(path)
	}
	return nil
}

// deleteChildPathsFromTasks prunes tasks already implied by an enqueued
// ancestor folder: fetching the ancestor refreshes knowledge of the subtree.
func deleteChildPathsFromTasks(tasks map[string]struct{}) {
	for path := range tasks {
		for ancestor := models.ParentPath(path); ancestor != ""; ancestor = models.ParentPath(ancestor) {
			if _, queued := tasks[ancestor]; queued {
				delete(tasks, path)
				break
			}
		}
	}
}

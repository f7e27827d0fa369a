// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package syncer

import (
	"bytes"
	"time"

	"github.com/google/uuid"

	"github.com/treestash/treesync/internal/metrics"
	"github.com/treestash/treesync/models"
)

// autoMerge reconciles a freshly observed remote revision into the node's
// common state. It returns the merged node (nil when nothing remains and the
// node should be purged) and the change events to publish.
//
// The algorithm is deterministic and idempotent: re-applying it to its own
// output without new input is a no-op. On genuine content conflicts the
// remote value wins; the discarded local value is only reported through the
// conflict-origin change event.
func autoMerge(node *models.Node) (*models.Node, []models.ChangeEvent) {
	if node == nil || node.Remote == nil {
		return node, nil
	}

	// A bare revision stub has nothing to merge yet; the fetch for its
	// content is still pending.
	if !node.Remote.HasContent() {
		return node, nil
	}

	if node.IsFolder() {
		return mergeFolder(node)
	}
	return mergeDocument(node)
}

func mergeDocument(node *models.Node) (*models.Node, []models.ChangeEvent) {
	remote := node.Remote
	common := node.Common

	if node.Local == nil {
		// No local changes: remote wins outright.
		if remote.Deleted {
			var events []models.ChangeEvent
			if common != nil && common.Body != nil {
				event := newMergeEvent(node.Path, models.OriginRemote)
				event.OldValue = common.Body
				event.OldContentType = common.ContentType
				events = append(events, event)
			}
			return nil, events
		}

		var events []models.ChangeEvent
		if common == nil || !bytes.Equal(common.Body, remote.Body) || common.ContentType != remote.ContentType {
			event := newMergeEvent(node.Path, models.OriginRemote)
			if common != nil {
				event.OldValue = common.Body
				event.OldContentType = common.ContentType
			}
			event.NewValue = remote.Body
			event.NewContentType = remote.ContentType
			events = append(events, event)
		}

		node.Common = promote(remote)
		node.Remote = nil
		return node, events
	}

	// Both sides deleted: they agree, nothing to report, nothing to keep.
	if node.Local.Deleted && remote.Deleted {
		return nil, nil
	}

	// Remote unchanged relative to common: discard the redundant remote
	// observation and keep the pending local change for the next push.
	if hasNoRemoteChanges(common, remote) {
		node.Remote = nil
		return node, nil
	}

	// Genuine content conflict: remote wins, local is discarded. The
	// application learns about the loss through the conflict event.
	event := newMergeEvent(node.Path, models.OriginConflict)
	event.OldValue = node.Local.Body
	event.OldContentType = node.Local.ContentType
	if common != nil {
		event.LastCommonValue = common.Body
		event.LastCommonContentType = common.ContentType
	}
	metrics.RecordConflictResolved()

	if remote.Deleted {
		return nil, []models.ChangeEvent{event}
	}

	event.NewValue = remote.Body
	event.NewContentType = remote.ContentType
	node.Common = promote(remote)
	node.Local = nil
	node.Remote = nil
	node.Push = nil
	return node, []models.ChangeEvent{event}
}

func mergeFolder(node *models.Node) (*models.Node, []models.ChangeEvent) {
	remote := node.Remote
	oldCommon := node.Common

	node.Common = promote(remote)
	node.Remote = nil

	if node.Local == nil {
		return node, nil
	}

	// Items the server's listing stopped mentioning are confirmed deletions
	// unless local has since re-claimed them differently.
	if oldCommon != nil {
		for name, item := range oldCommon.Items {
			if !item.Present {
				continue
			}
			if _, still := node.Common.Items[name]; still {
				continue
			}
			if localItem, claimed := node.Local.Items[name]; claimed && localItem.Present {
				node.Local.Items[name] = models.FolderItem{Present: false}
			}
		}
	}

	// Local listing fully reconciled: no pending changes remain.
	if listingsAgree(node.Local.Items, node.Common.Items) {
		node.Local = nil
	}

	return node, nil
}

// hasNoRemoteChanges reports whether the remote observation matches the
// common baseline, meaning nothing actually changed server-side.
func hasNoRemoteChanges(common, remote *models.Revision) bool {
	if remote.Deleted {
		return common == nil || common.Deleted
	}
	return common != nil &&
		!common.Deleted &&
		bytes.Equal(common.Body, remote.Body) &&
		common.ContentType == remote.ContentType
}

// listingsAgree compares two folder listings by the set of present items,
// ignoring the per-item metadata only remote-derived listings carry.
func listingsAgree(a, b map[string]models.FolderItem) bool {
	present := func(items map[string]models.FolderItem) map[string]bool {
		set := make(map[string]bool, len(items))
		for name, item := range items {
			if item.Present {
				set[name] = true
			}
		}
		return set
	}

	setA, setB := present(a), present(b)
	if len(setA) != len(setB) {
		return false
	}
	for name := range setA {
		if !setB[name] {
			return false
		}
	}
	return true
}

func promote(remote *models.Revision) *models.Revision {
	promoted := remote.Clone()
	promoted.Timestamp = time.Now().UnixMilli()
	return promoted
}

func newMergeEvent(path string, origin models.Origin) models.ChangeEvent {
	return models.ChangeEvent{
		ID:        uuid.NewString(),
		Path:      path,
		Origin:    origin,
		Timestamp: time.Now().UnixMilli(),
	}
}

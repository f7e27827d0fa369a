// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

// Package cache implements the local GET/PUT/DELETE surface on top of a
// NodeStore.
//
// Reads produce the "latest" view of a node, preferring pending local writes
// over the last confirmed state. Writes update the document node and the
// local folder listing of every ancestor in one atomic batch. All
// read-modify-write cycles against the node store funnel through a single
// worker goroutine, so concurrent writers can never lose each other's
// ancestor updates.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/treestash/treesync/internal/events"
	"github.com/treestash/treesync/internal/logger"
	"github.com/treestash/treesync/internal/revcache"
	"github.com/treestash/treesync/internal/store"
	"github.com/treestash/treesync/models"
)

// Response is the result of a local read or write, shaped like a remote
// response so callers can treat cached and direct access uniformly.
type Response struct {
	StatusCode  int
	Body        []byte
	ContentType string
	Revision    string

	// Items is the folder listing, set only for folder reads. Children
	// deleted locally but not yet pushed are already filtered out.
	Items map[string]models.FolderItem
}

// GetFunc fetches a path from the remote instead of the cache. The sync
// engine supplies it so stale reads can be answered with fresh data.
type GetFunc func(ctx context.Context, path string) (Response, error)

// UpdateFunc transforms a batch of nodes inside the single-flight queue. The
// input map holds the current state of the requested paths; missing paths are
// absent. The returned map lists the nodes to write back (nil value deletes
// the path), together with the change events to publish once the write has
// been persisted.
type UpdateFunc func(nodes map[string]*models.Node) (map[string]*models.Node, []models.ChangeEvent, error)

type updateRequest struct {
	ctx     context.Context
	paths   []string
	update  UpdateFunc
	respond chan error
}

// Cache is the caching layer over one NodeStore.
type Cache struct {
	store store.NodeStore
	rev   *revcache.RevisionCache
	bus   *events.Bus
	log   *logger.Logger

	queue chan updateRequest
	done  chan struct{}
}

// New wraps nodeStore in a caching layer and starts its write worker. Close
// must be called to stop the worker.
func New(nodeStore store.NodeStore, rev *revcache.RevisionCache, bus *events.Bus, log *logger.Logger) *Cache {
	c := &Cache{
		store: nodeStore,
		rev:   rev,
		bus:   bus,
		log:   log.WithComponent("cache"),
		queue: make(chan updateRequest),
		done:  make(chan struct{}),
	}
	go c.worker()
	return c
}

// Close stops the write worker. Pending UpdateNodes calls finish first.
func (c *Cache) Close() {
	close(c.queue)
	<-c.done
}

// worker is the single writer against the node store. One read-modify-write
// cycle is in flight at a time; callers queue up in FIFO order.
func (c *Cache) worker() {
	defer close(c.done)
	for req := range c.queue {
		req.respond <- c.runUpdate(req)
	}
}

func (c *Cache) runUpdate(req updateRequest) error {
	if err := req.ctx.Err(); err != nil {
		return err
	}

	nodes, err := c.store.GetNodes(req.ctx, req.paths)
	if err != nil {
		return fmt.Errorf("load nodes: %w", err)
	}

	// Callbacks mutate the loaded nodes in place, so no-op detection needs a
	// snapshot taken before the callback runs.
	before := make(map[string]*models.Node, len(nodes))
	for path, node := range nodes {
		before[path] = node.Clone()
	}

	updated, changes, err := req.update(nodes)
	if err != nil {
		return err
	}

	// Drop no-op writes so untouched nodes do not churn the store.
	toWrite := make(map[string]*models.Node, len(updated))
	for path, node := range updated {
		if prev, ok := before[path]; ok && unchanged(node, prev) {
			continue
		}
		toWrite[path] = node
	}

	if len(toWrite) > 0 {
		if err = c.store.SetNodes(req.ctx, toWrite); err != nil {
			return fmt.Errorf("persist nodes: %w", err)
		}
		c.recordRevisions(toWrite)
	}

	for _, change := range changes {
		c.bus.PublishChange(change)
	}
	return nil
}

// unchanged reports a true no-op: the node is structurally equal to its
// pre-callback snapshot and no revision timestamp moved. Timestamps count as
// changes here because a conditional fetch confirms the common state by
// refreshing its timestamp alone; dropping that write would leave the node
// permanently stale.
func unchanged(after, before *models.Node) bool {
	if !after.Equal(before) {
		return false
	}
	for _, pair := range [][2]*models.Revision{
		{after.Common, before.Common},
		{after.Local, before.Local},
		{after.Remote, before.Remote},
		{after.Push, before.Push},
	} {
		if pair[0] != nil && pair[0].Timestamp != pair[1].Timestamp {
			return false
		}
	}
	return true
}

// recordRevisions feeds confirmed revision tags into the revision cache so
// folder tags stay derivable without a tree walk. Batches use the cache's
// bulk mode to avoid recomputing ancestor tags once per entry.
func (c *Cache) recordRevisions(nodes map[string]*models.Node) {
	if c.rev == nil {
		return
	}

	if len(nodes) > 1 {
		c.rev.DeactivatePropagation()
		defer c.rev.ActivatePropagation()
	}

	for path, node := range nodes {
		switch {
		case node == nil:
			c.rev.Delete(path)
		case node.Common != nil && node.Common.Revision != "":
			c.rev.Set(path, node.Common.Revision)
		}
	}
}

// UpdateNodes queues one read-modify-write cycle over paths. It blocks until
// the cycle has run and the store write (if any) has finished.
func (c *Cache) UpdateNodes(ctx context.Context, paths []string, update UpdateFunc) error {
	req := updateRequest{ctx: ctx, paths: paths, update: update, respond: make(chan error, 1)}

	select {
	case c.queue <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.respond:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns the latest local view of path. When queueGet is non-nil the
// read is delegated to it for paths with no cached node at all, and, when
// maxAge is positive, for nodes that are stale (an unreconciled remote
// revision exists, or the latest timestamp is older than maxAge).
func (c *Cache) Get(ctx context.Context, path string, maxAge time.Duration, queueGet GetFunc) (Response, error) {
	if !models.ValidPath(path) {
		return Response{}, fmt.Errorf("%w: %q", models.ErrInvalidPath, path)
	}

	nodes, err := c.store.GetNodes(ctx, []string{path})
	if err != nil {
		return Response{}, err
	}
	node := nodes[path]

	if queueGet != nil {
		// A path never seen before is always fetched; a known node only
		// when the caller set a staleness bound it no longer meets. A
		// pending local deletion keeps its node around, so it answers 404
		// locally instead of resurrecting the document from the remote.
		if node == nil || (maxAge > 0 && isStale(node, maxAge)) {
			c.log.Debug().Str("path", path).Msg("cached node missing or stale, fetching from remote")
			return queueGet(ctx, path)
		}
	}

	return c.latestView(node), nil
}

func isStale(node *models.Node, maxAge time.Duration) bool {
	if node == nil {
		return true
	}
	if node.Remote != nil {
		return true
	}
	var latest int64
	for _, rev := range []*models.Revision{node.Common, node.Local} {
		if rev != nil && rev.Timestamp > latest {
			latest = rev.Timestamp
		}
	}
	return latest < time.Now().Add(-maxAge).UnixMilli()
}

// latestView renders the caller-visible snapshot of a node: pending local
// state wins over the confirmed common state. Folders whose winning revision
// carries no tag (a pending local listing, typically) fall back to the tag
// the revision cache derives from the children.
func (c *Cache) latestView(node *models.Node) Response {
	if node == nil {
		return Response{StatusCode: 404}
	}

	if node.IsFolder() {
		var rev *models.Revision
		switch {
		case node.Local != nil && node.Local.Items != nil:
			rev = node.Local
		case node.Common != nil && node.Common.Items != nil:
			rev = node.Common
		default:
			return Response{StatusCode: 404}
		}

		items := make(map[string]models.FolderItem, len(rev.Items))
		for name, item := range rev.Items {
			if item.Present {
				items[name] = item
			}
		}
		revision := rev.Revision
		if revision == "" && c.rev != nil {
			revision = c.rev.Get(node.Path)
		}
		return Response{StatusCode: 200, Items: items, Revision: revision}
	}

	switch {
	case node.Local != nil && node.Local.Deleted:
		return Response{StatusCode: 404}
	case node.Local != nil && node.Local.Body != nil:
		return Response{
			StatusCode:  200,
			Body:        node.Local.Body,
			ContentType: node.Local.ContentType,
			Revision:    node.Local.Revision,
		}
	case node.Common != nil && node.Common.Body != nil && !node.Common.Deleted:
		return Response{
			StatusCode:  200,
			Body:        node.Common.Body,
			ContentType: node.Common.ContentType,
			Revision:    node.Common.Revision,
		}
	default:
		return Response{StatusCode: 404}
	}
}

// Put records a local document write and marks the document present in the
// local listing of every ancestor folder, all in one queued cycle.
func (c *Cache) Put(ctx context.Context, path string, body []byte, contentType string) (Response, error) {
	if !models.ValidPath(path) || !models.IsDocument(path) {
		return Response{}, fmt.Errorf("%w: put needs a document path, got %q", models.ErrInvalidPath, path)
	}
	if body == nil {
		body = []byte{}
	}

	chain := models.PathsFromRoot(path)
	err := c.UpdateNodes(ctx, chain, func(nodes map[string]*models.Node) (map[string]*models.Node, []models.ChangeEvent, error) {
		updated := make(map[string]*models.Node, len(chain))

		doc := nodeOrNew(nodes, path)
		previous := c.latestView(doc)
		doc.Local = &models.Revision{
			Body:        body,
			ContentType: contentType,
			Timestamp:   nowMillis(),
		}
		updated[path] = doc

		for _, folder := range chain[1:] {
			node := nodeOrNew(nodes, folder)
			items := localItems(node)
			items[models.ItemName(childOf(folder, chain))] = models.FolderItem{Present: true}
			node.Local = &models.Revision{Items: items, Timestamp: nowMillis()}
			updated[folder] = node
		}

		change := newChangeEvent(path, models.OriginWindow)
		change.OldValue = previous.Body
		change.OldContentType = previous.ContentType
		change.NewValue = body
		change.NewContentType = contentType

		return updated, []models.ChangeEvent{change}, nil
	})
	if err != nil {
		return Response{}, err
	}

	return Response{StatusCode: 200}, nil
}

// Delete records a pending local deletion and removes the document from
// ancestor listings. The ascent stops at the first folder that still has
// other children, since listings above it are unaffected.
func (c *Cache) Delete(ctx context.Context, path string) (Response, error) {
	if !models.ValidPath(path) || !models.IsDocument(path) {
		return Response{}, fmt.Errorf("%w: delete needs a document path, got %q", models.ErrInvalidPath, path)
	}

	chain := models.PathsFromRoot(path)
	err := c.UpdateNodes(ctx, chain, func(nodes map[string]*models.Node) (map[string]*models.Node, []models.ChangeEvent, error) {
		updated := make(map[string]*models.Node, len(chain))

		doc := nodeOrNew(nodes, path)
		previous := c.latestView(doc)
		doc.Local = &models.Revision{Deleted: true, Timestamp: nowMillis()}
		updated[path] = doc

		for _, folder := range chain[1:] {
			node := nodeOrNew(nodes, folder)
			items := localItems(node)
			delete(items, models.ItemName(childOf(folder, chain)))
			node.Local = &models.Revision{Items: items, Timestamp: nowMillis()}
			updated[folder] = node
			if len(items) > 0 {
				break
			}
		}

		change := newChangeEvent(path, models.OriginWindow)
		change.OldValue = previous.Body
		change.OldContentType = previous.ContentType

		return updated, []models.ChangeEvent{change}, nil
	})
	if err != nil {
		return Response{}, err
	}

	return Response{StatusCode: 200}, nil
}

// Flush drops the pending local data of path and all its descendants without
// touching confirmed or remote state. Nodes left with no data at all are
// removed from the store. Emits a local-origin change event for every
// document whose visible value changes.
func (c *Cache) Flush(ctx context.Context, path string) error {
	if !models.ValidPath(path) {
		return fmt.Errorf("%w: %q", models.ErrInvalidPath, path)
	}

	var targets []string
	err := c.store.ForAllNodes(ctx, func(node *models.Node) error {
		if node.Path == path || models.IsAncestorPath(path, node.Path) {
			targets = append(targets, node.Path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("collect flush targets: %w", err)
	}
	if len(targets) == 0 {
		return nil
	}

	return c.UpdateNodes(ctx, targets, func(nodes map[string]*models.Node) (map[string]*models.Node, []models.ChangeEvent, error) {
		updated := make(map[string]*models.Node, len(nodes))
		var changes []models.ChangeEvent

		for nodePath, node := range nodes {
			if node == nil || (node.Local == nil && node.Push == nil) {
				continue
			}

			before := c.latestView(node)
			node.Local = nil
			node.Push = nil
			after := c.latestView(node)

			if node.Common == nil && node.Remote == nil {
				updated[nodePath] = nil
			} else {
				updated[nodePath] = node
			}

			if models.IsDocument(nodePath) && (before.StatusCode != after.StatusCode || !bytesEqual(before.Body, after.Body)) {
				change := newChangeEvent(nodePath, models.OriginLocal)
				change.OldValue = before.Body
				change.OldContentType = before.ContentType
				change.NewValue = after.Body
				change.NewContentType = after.ContentType
				changes = append(changes, change)
			}
		}

		return updated, changes, nil
	})
}

func nodeOrNew(nodes map[string]*models.Node, path string) *models.Node {
	if node, ok := nodes[path]; ok && node != nil {
		return node
	}
	return models.NewNode(path)
}

// localItems returns the node's local listing, cloning the common listing
// the first time a folder gains pending changes.
func localItems(node *models.Node) map[string]models.FolderItem {
	if node.Local != nil && node.Local.Items != nil {
		return node.Local.Items
	}
	items := make(map[string]models.FolderItem)
	if node.Common != nil {
		for name, item := range node.Common.Items {
			items[name] = item
		}
	}
	return items
}

// childOf returns the chain entry directly below folder, i.e. the path whose
// item name must be toggled in folder's listing.
func childOf(folder string, chain []string) string {
	for i, p := range chain {
		if p == folder && i > 0 {
			return chain[i-1]
		}
	}
	return chain[0]
}

func newChangeEvent(path string, origin models.Origin) models.ChangeEvent {
	return models.ChangeEvent{
		ID:        uuid.NewString(),
		Path:      path,
		Origin:    origin,
		Timestamp: nowMillis(),
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func bytesEqual(a, b []byte) bool {
	return string(a) == string(b)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

// Package syncer implements the synchronization engine: the scheduler that
// decides which paths need a network round trip, the bounded-concurrency
// task runner, and the merge logic that reconciles remote observations into
// local state.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/treestash/treesync/internal/adapter"
	"github.com/treestash/treesync/internal/cache"
	"github.com/treestash/treesync/internal/config"
	"github.com/treestash/treesync/internal/events"
	"github.com/treestash/treesync/internal/logger"
	"github.com/treestash/treesync/internal/metrics"
	"github.com/treestash/treesync/internal/store"
	"github.com/treestash/treesync/models"
)

// PermissionChecker reports whether the application holds the given access
// mode ("r" or "rw") for path. The engine never fetches paths it cannot read
// and never pushes paths it cannot write.
type PermissionChecker func(path, mode string) bool

// AllowAll grants every permission. Useful for single-user setups and tests.
func AllowAll(string, string) bool { return true }

type taskAction string

const (
	actionFetch      taskAction = "fetch"
	actionPushPut    taskAction = "push_put"
	actionPushDelete taskAction = "push_delete"
)

// Engine drives every path through unsynced, in-flight, merged.
type Engine struct {
	store  store.NodeStore
	cache  *cache.Cache
	remote adapter.Transport
	bus    *events.Bus
	access PermissionChecker
	log    *logger.Logger

	numThreads   int
	syncInterval time.Duration

	mu      sync.Mutex
	tasks   map[string]struct{}
	running map[string]chan struct{} // closed when the path's task finishes
}

// New wires an engine over the given storage, caching layer and transport.
// The caching layer's write queue is the only way the engine mutates nodes,
// so engine completions and application writes can never interleave within
// one read-modify-write cycle.
func New(nodeStore store.NodeStore, c *cache.Cache, remote adapter.Transport, bus *events.Bus, access PermissionChecker, cfg config.Sync, log *logger.Logger) *Engine {
	if access == nil {
		access = AllowAll
	}
	numThreads := cfg.NumThreads
	if numThreads <= 0 {
		numThreads = config.DefaultNumThreads
	}

	return &Engine{
		store:        nodeStore,
		cache:        c,
		remote:       remote,
		bus:          bus,
		access:       access,
		log:          log.WithComponent("syncer"),
		numThreads:   numThreads,
		syncInterval: cfg.Interval,
		tasks:        make(map[string]struct{}),
		running:      make(map[string]chan struct{}),
	}
}

// maxCyclePasses bounds how often one cycle re-collects follow-up work, so
// a pathological tree cannot keep a cycle alive forever.
const maxCyclePasses = 10

// Sync runs one full cycle: collect the paths that need a round trip, run
// their tasks with bounded concurrency, and announce completion. Completed
// tasks can leave follow-up work behind (a folder fetch stubs out changed
// children), so the cycle keeps collecting and running until the tree
// settles. Paths that stop making progress, typically after a task failure,
// wait for the next cycle instead of being retried in a loop. Network
// failures inside individual tasks do not abort the cycle; they surface as
// error events.
func (e *Engine) Sync(ctx context.Context) error {
	if !e.remote.Connected() {
		return adapter.ErrNotConnected
	}

	var prev map[string]struct{}
	for pass := 0; pass < maxCyclePasses; pass++ {
		added, err := e.collectDiffTasks(ctx)
		if err != nil {
			return fmt.Errorf("collect sync tasks: %w", err)
		}
		if added == 0 {
			if pass == 0 {
				if err = e.collectRefreshTasks(ctx); err != nil {
					return fmt.Errorf("collect refresh tasks: %w", err)
				}
				e.runTasks(ctx)
				continue
			}
			break
		}

		queued := e.queuedTasks()
		if samePaths(prev, queued) {
			break
		}
		prev = queued
		e.runTasks(ctx)

		if ctx.Err() != nil || !e.remote.Online() {
			break
		}
	}

	metrics.RecordSyncCycle()
	e.bus.Publish(events.Event{Kind: events.KindSyncDone, Timestamp: time.Now().UnixMilli()})
	return nil
}

// QueueGetRequest satisfies [cache.GetFunc]: it fetches path from the remote
// right away, merges the result, and returns the refreshed local view. The
// caching layer calls it for reads it considers too stale to answer. When a
// scheduled task already has the path in flight the request waits for that
// task instead of racing it with a second round trip.
func (e *Engine) QueueGetRequest(ctx context.Context, path string) (cache.Response, error) {
	if !e.remote.Connected() {
		return cache.Response{}, adapter.ErrNotConnected
	}

	if inFlight, claimed := e.claim(path); !claimed {
		select {
		case <-inFlight:
		case <-ctx.Done():
			return cache.Response{}, ctx.Err()
		}
	} else {
		e.runTask(ctx, path)
		e.taskDone(path)
	}
	e.bus.Publish(events.Event{Kind: events.KindSyncReqDone, Timestamp: time.Now().UnixMilli()})

	return e.cache.Get(ctx, path, 0, nil)
}

// concurrency returns the in-flight task budget. While the remote looks
// offline a single probe task is allowed, enough to notice recovery without
// hammering a dead link.
func (e *Engine) concurrency() int {
	if !e.remote.Online() {
		return 1
	}
	return e.numThreads
}

func (e *Engine) addTask(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, inFlight := e.running[path]; inFlight {
		return
	}
	e.tasks[path] = struct{}{}
}

// claim marks path as in flight unless another task already holds it. The
// returned channel belongs to the current holder and is closed when that
// task finishes.
func (e *Engine) claim(path string) (chan struct{}, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ch, inFlight := e.running[path]; inFlight {
		return ch, false
	}
	ch := make(chan struct{})
	e.running[path] = ch
	delete(e.tasks, path)
	return ch, true
}

// takeRunnable claims every queued task that is not already in flight.
func (e *Engine) takeRunnable() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	paths := make([]string, 0, len(e.tasks))
	for path := range e.tasks {
		if _, inFlight := e.running[path]; inFlight {
			continue
		}
		e.running[path] = make(chan struct{})
		paths = append(paths, path)
	}
	e.tasks = make(map[string]struct{})
	return paths
}

func (e *Engine) taskDone(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ch, ok := e.running[path]; ok {
		close(ch)
		delete(e.running, path)
	}
}

// queuedTasks snapshots the queued task set.
func (e *Engine) queuedTasks() map[string]struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	queued := make(map[string]struct{}, len(e.tasks))
	for path := range e.tasks {
		queued[path] = struct{}{}
	}
	return queued
}

func samePaths(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for path := range a {
		if _, ok := b[path]; !ok {
			return false
		}
	}
	return true
}

func (e *Engine) runTasks(ctx context.Context) {
	paths := e.takeRunnable()
	if len(paths) == 0 {
		return
	}

	sem := make(chan struct{}, e.concurrency())
	var wg sync.WaitGroup
	for _, path := range paths {
		if ctx.Err() != nil {
			e.taskDone(path)
			continue
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer e.taskDone(path)

			metrics.TaskStarted()
			defer metrics.TaskFinished()
			e.runTask(ctx, path)
		}(path)
	}
	wg.Wait()
}

// runTask decides what kind of round trip path needs, performs it, and
// applies the outcome.
func (e *Engine) runTask(ctx context.Context, path string) {
	nodes, err := e.store.GetNodes(ctx, []string{path})
	if err != nil {
		e.log.Err(err).Str("path", path).Msg("loading node for sync task")
		return
	}
	node := nodes[path]

	switch e.chooseAction(node) {
	case actionPushPut:
		if !e.access(path, "rw") {
			return
		}
		e.pushPut(ctx, path, node)
	case actionPushDelete:
		if !e.access(path, "rw") {
			return
		}
		e.pushDelete(ctx, path, node)
	default:
		e.fetch(ctx, path, node)
	}
}

// chooseAction picks exactly one round trip for the node's current state.
func (e *Engine) chooseAction(node *models.Node) taskAction {
	if node == nil || node.Validate() != nil {
		return actionFetch
	}
	if node.Remote != nil && node.Remote.Revision != "" && !node.Remote.HasContent() {
		// Listed as changed by a parent folder fetch, content still unknown.
		return actionFetch
	}
	if models.IsDocument(node.Path) && node.Local != nil && node.Push == nil && !node.InConflict() {
		if node.Local.Deleted {
			if node.Common != nil && node.Common.Revision != "" {
				return actionPushDelete
			}
			// Nothing known about the remote side yet; learn it first.
			return actionFetch
		}
		if node.Local.Body != nil {
			return actionPushPut
		}
	}
	return actionFetch
}

func (e *Engine) fetch(ctx context.Context, path string, node *models.Node) {
	var opts adapter.GetOptions
	if node != nil && node.Validate() == nil && node.Common != nil && node.Common.Revision != "" && node.Remote == nil {
		opts.IfNoneMatch = node.Common.Revision
	}

	resp, err := e.remote.Get(ctx, path, opts)
	if errors.Is(err, adapter.ErrInvalidListing) {
		// Discarded defensively; the next cycle retries the fetch.
		metrics.RecordTask(string(actionFetch), "invalid_listing")
		return
	}

	status := interpretStatus(resp.StatusCode, err, e.remote.ImpliedAuth())
	metrics.RecordTask(string(actionFetch), outcome(status))
	if !status.Successful {
		e.handleFailure(ctx, path, status, err, resp.StatusCode)
		return
	}

	if merr := e.completeFetch(ctx, path, resp, status); merr != nil {
		e.log.Err(merr).Str("path", path).Msg("applying fetch result")
	}
}

// pushPut snapshots the pending local write into the push revision, persists
// the snapshot, then sends the conditional PUT. The snapshot keeps new local
// writes from racing the in-flight request.
func (e *Engine) pushPut(ctx context.Context, path string, node *models.Node) {
	var push *models.Revision
	err := e.cache.UpdateNodes(ctx, []string{path}, func(nodes map[string]*models.Node) (map[string]*models.Node, []models.ChangeEvent, error) {
		n := nodes[path]
		if n == nil || n.Local == nil || n.Local.Deleted || n.Push != nil {
			return nil, nil, nil
		}
		n.Push = n.Local.Clone()
		n.Push.Timestamp = time.Now().UnixMilli()
		push = n.Push.Clone()
		return map[string]*models.Node{path: n}, nil, nil
	})
	if err != nil || push == nil {
		return
	}

	var opts adapter.PutOptions
	if node.Common != nil && node.Common.Revision != "" {
		opts.IfMatch = node.Common.Revision
	} else {
		opts.IfNoneMatch = "*"
	}

	resp, rerr := e.remote.Put(ctx, path, push.Body, push.ContentType, opts)
	status := interpretStatus(resp.StatusCode, rerr, e.remote.ImpliedAuth())
	metrics.RecordTask(string(actionPushPut), outcome(status))
	if !status.Successful {
		e.handleFailure(ctx, path, status, rerr, resp.StatusCode)
		return
	}

	if merr := e.completePush(ctx, path, resp, status, false); merr != nil {
		e.log.Err(merr).Str("path", path).Msg("applying push result")
	}
}

// pushDelete snapshots the pending deletion into the push revision before
// sending the conditional DELETE, mirroring pushPut. A declined snapshot
// (node gone, deletion withdrawn, or a push already in flight) sends nothing.
func (e *Engine) pushDelete(ctx context.Context, path string, node *models.Node) {
	snapshotted := false
	err := e.cache.UpdateNodes(ctx, []string{path}, func(nodes map[string]*models.Node) (map[string]*models.Node, []models.ChangeEvent, error) {
		n := nodes[path]
		if n == nil || n.Local == nil || !n.Local.Deleted || n.Push != nil {
			return nil, nil, nil
		}
		n.Push = n.Local.Clone()
		n.Push.Timestamp = time.Now().UnixMilli()
		snapshotted = true
		return map[string]*models.Node{path: n}, nil, nil
	})
	if err != nil || !snapshotted {
		return
	}

	resp, rerr := e.remote.Delete(ctx, path, adapter.DeleteOptions{IfMatch: node.Common.Revision})
	status := interpretStatus(resp.StatusCode, rerr, e.remote.ImpliedAuth())
	metrics.RecordTask(string(actionPushDelete), outcome(status))
	if !status.Successful {
		e.handleFailure(ctx, path, status, rerr, resp.StatusCode)
		return
	}

	if merr := e.completePush(ctx, path, resp, status, true); merr != nil {
		e.log.Err(merr).Str("path", path).Msg("applying delete result")
	}
}

// handleFailure is the shared non-success path: the push snapshot is released
// so the next cycle retries the write, and the failure is surfaced once as a
// global error event rather than a per-operation error.
func (e *Engine) handleFailure(ctx context.Context, path string, status statusInfo, err error, statusCode int) {
	clearErr := e.cache.UpdateNodes(ctx, []string{path}, func(nodes map[string]*models.Node) (map[string]*models.Node, []models.ChangeEvent, error) {
		n := nodes[path]
		if n == nil || n.Push == nil {
			return nil, nil, nil
		}
		n.Push = nil
		return map[string]*models.Node{path: n}, nil, nil
	})
	if clearErr != nil {
		e.log.Err(clearErr).Str("path", path).Msg("releasing push snapshot")
	}

	switch {
	case status.UnAuth:
		e.bus.PublishError(fmt.Errorf("%w: status %d for %s", ErrUnauthorized, statusCode, path))
	case status.NetworkProblems:
		e.bus.PublishError(fmt.Errorf("%w: %v", ErrSyncFailed, err))
	default:
		e.bus.PublishError(fmt.Errorf("%w: unexpected status %d for %s", ErrSyncFailed, statusCode, path))
	}
}

// completeFetch applies a successful GET outcome to the node tree.
func (e *Engine) completeFetch(ctx context.Context, path string, resp adapter.RemoteResponse, status statusInfo) error {
	if !status.Changed {
		// 304: the common state is confirmed current.
		return e.cache.UpdateNodes(ctx, []string{path}, func(nodes map[string]*models.Node) (map[string]*models.Node, []models.ChangeEvent, error) {
			n := nodes[path]
			if n == nil || n.Common == nil {
				return nil, nil, nil
			}
			n.Common.Timestamp = time.Now().UnixMilli()
			if n.Remote != nil && !n.Remote.HasContent() && n.Remote.Revision == n.Common.Revision {
				n.Remote = nil
			}
			return map[string]*models.Node{path: n}, nil, nil
		})
	}

	if models.IsFolder(path) {
		items := resp.Items
		if status.NotFound || items == nil {
			items = map[string]models.FolderItem{}
		}
		return e.markChildren(ctx, path, items, resp.Revision)
	}

	return e.cache.UpdateNodes(ctx, []string{path}, func(nodes map[string]*models.Node) (map[string]*models.Node, []models.ChangeEvent, error) {
		n := nodes[path]
		if n == nil || n.Validate() != nil {
			n = models.NewNode(path)
		}

		remote := &models.Revision{
			Revision:  resp.Revision,
			Timestamp: time.Now().UnixMilli(),
		}
		if status.NotFound {
			remote.Deleted = true
		} else {
			body := resp.Body
			if body == nil {
				body = []byte{}
			}
			remote.Body = body
			remote.ContentType = resp.ContentType
		}
		n.Remote = remote

		merged, changes := autoMerge(n)
		if merged == nil {
			metrics.RecordNodesPurged(1)
		}
		return map[string]*models.Node{path: merged}, changes, nil
	})
}

// completePush applies a successful PUT or DELETE outcome. On 412 the write
// lost a race: the push snapshot is dropped and a remote revision stub is
// recorded so the next cycle fetches and merges the winning state.
func (e *Engine) completePush(ctx context.Context, path string, resp adapter.RemoteResponse, status statusInfo, deletion bool) error {
	if status.Conflict {
		return e.cache.UpdateNodes(ctx, []string{path}, func(nodes map[string]*models.Node) (map[string]*models.Node, []models.ChangeEvent, error) {
			n := nodes[path]
			if n == nil {
				return nil, nil, nil
			}
			revision := resp.Revision
			if revision == "" {
				revision = "_conflict"
			}
			n.Push = nil
			n.Remote = &models.Revision{Revision: revision, Timestamp: time.Now().UnixMilli()}
			return map[string]*models.Node{path: n}, nil, nil
		})
	}

	chain := models.PathsFromRoot(path)
	return e.cache.UpdateNodes(ctx, chain, func(nodes map[string]*models.Node) (map[string]*models.Node, []models.ChangeEvent, error) {
		updated := make(map[string]*models.Node, len(chain))

		doc := nodes[path]
		if doc == nil || doc.Push == nil {
			return nil, nil, nil
		}
		newLocalWrites := doc.Local != nil && !doc.Local.Equal(doc.Push)

		if deletion {
			if newLocalWrites {
				doc.Push = nil
				doc.Common = nil
				updated[path] = doc
			} else {
				// Confirmed gone on both sides: no tombstone needed.
				updated[path] = nil
				metrics.RecordNodesPurged(1)
			}
		} else {
			committed := doc.Push.Clone()
			committed.Revision = resp.Revision
			committed.Timestamp = time.Now().UnixMilli()
			doc.Common = committed
			if !newLocalWrites {
				doc.Local = nil
			}
			doc.Push = nil
			updated[path] = doc
		}

		// The remote now agrees about the document's existence, so ancestor
		// listings move from pending-local to confirmed-common.
		child := path
		for _, folder := range chain[1:] {
			node := nodes[folder]
			if node == nil {
				node = models.NewNode(folder)
			}

			items := make(map[string]models.FolderItem)
			if node.Common != nil {
				for name, item := range node.Common.Items {
					items[name] = item
				}
			}
			name := models.ItemName(child)
			if deletion {
				delete(items, name)
			} else {
				items[name] = models.FolderItem{Present: true}
			}

			revision := ""
			if node.Common != nil {
				revision = node.Common.Revision
			}
			node.Common = &models.Revision{
				Items:     items,
				Revision:  revision,
				Timestamp: time.Now().UnixMilli(),
			}
			if node.Local != nil && listingsAgree(node.Local.Items, items) {
				node.Local = nil
			}

			if deletion && len(items) == 0 && node.Local == nil && node.Remote == nil {
				updated[folder] = nil
			} else {
				updated[folder] = node
			}
			child = folder
		}

		return updated, nil, nil
	})
}

// markChildren ingests a folder listing: the folder gains a remote revision,
// children with unknown or changed ETags gain fetch stubs, and children the
// listing stopped mentioning are treated as remotely deleted, including their
// descendants.
func (e *Engine) markChildren(ctx context.Context, folderPath string, items map[string]models.FolderItem, revision string) error {
	existing, err := e.store.GetNodes(ctx, []string{folderPath})
	if err != nil {
		return fmt.Errorf("load folder node: %w", err)
	}

	known := make(map[string]bool)
	if folder := existing[folderPath]; folder != nil {
		for _, rev := range []*models.Revision{folder.Common, folder.Local} {
			if rev == nil {
				continue
			}
			for name, item := range rev.Items {
				if item.Present {
					known[name] = true
				}
			}
		}
	}

	paths := []string{folderPath}
	for name := range items {
		paths = append(paths, folderPath+name)
	}
	var removed []string
	for name := range known {
		if _, still := items[name]; !still {
			removed = append(removed, folderPath+name)
		}
	}

	// Remote deletion of a subtree removes its descendants too.
	descendants, err := e.collectDescendants(ctx, removed)
	if err != nil {
		return err
	}
	paths = append(paths, removed...)
	paths = append(paths, descendants...)

	return e.cache.UpdateNodes(ctx, paths, func(nodes map[string]*models.Node) (map[string]*models.Node, []models.ChangeEvent, error) {
		updated := make(map[string]*models.Node, len(paths))
		var changes []models.ChangeEvent
		purged := 0

		folder := nodes[folderPath]
		if folder == nil || folder.Validate() != nil {
			folder = models.NewNode(folderPath)
		}
		folder.Remote = &models.Revision{
			Items:     items,
			Revision:  revision,
			Timestamp: time.Now().UnixMilli(),
		}
		mergedFolder, folderChanges := autoMerge(folder)
		updated[folderPath] = mergedFolder
		changes = append(changes, folderChanges...)

		for name, item := range items {
			childPath := folderPath + name
			child := nodes[childPath]
			if child == nil {
				child = models.NewNode(childPath)
			}

			if knownRevision(child) == item.ETag {
				continue
			}
			child.Remote = &models.Revision{Revision: item.ETag, Timestamp: time.Now().UnixMilli()}
			updated[childPath] = child
		}

		for _, gonePath := range append(removed, descendants...) {
			node := nodes[gonePath]
			if node == nil {
				continue
			}

			if models.IsFolder(gonePath) {
				node.Remote = &models.Revision{Items: map[string]models.FolderItem{}, Timestamp: time.Now().UnixMilli()}
			} else {
				node.Remote = &models.Revision{Deleted: true, Timestamp: time.Now().UnixMilli()}
			}
			merged, mergeChanges := autoMerge(node)
			if merged == nil {
				purged++
			} else if models.IsFolder(gonePath) && merged.Local == nil &&
				(merged.Common == nil || len(merged.Common.Items) == 0) {
				merged = nil
				purged++
			}
			updated[gonePath] = merged
			changes = append(changes, mergeChanges...)
		}

		if purged > 0 {
			metrics.RecordNodesPurged(purged)
		}
		return updated, changes, nil
	})
}

func (e *Engine) collectDescendants(ctx context.Context, roots []string) ([]string, error) {
	if len(roots) == 0 {
		return nil, nil
	}

	var folders []string
	for _, root := range roots {
		if models.IsFolder(root) {
			folders = append(folders, root)
		}
	}
	if len(folders) == 0 {
		return nil, nil
	}

	var descendants []string
	err := e.store.ForAllNodes(ctx, func(node *models.Node) error {
		for _, folder := range folders {
			if models.IsAncestorPath(folder, node.Path) {
				descendants = append(descendants, node.Path)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect descendants: %w", err)
	}
	return descendants, nil
}

// knownRevision returns the revision tag the engine last saw for a child,
// from either the confirmed state or an earlier fetch stub.
func knownRevision(node *models.Node) string {
	if node.Common != nil && node.Common.Revision != "" {
		return node.Common.Revision
	}
	if node.Remote != nil {
		return node.Remote.Revision
	}
	return ""
}

func outcome(status statusInfo) string {
	switch {
	case status.NetworkProblems:
		return "network_error"
	case status.UnAuth:
		return "unauthorized"
	case status.Conflict:
		return "conflict"
	case status.NotFound:
		return "not_found"
	case status.Successful && !status.Changed:
		return "unchanged"
	case status.Successful:
		return "success"
	default:
		return "error"
	}
}

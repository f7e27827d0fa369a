// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treestash/treesync/internal/events"
	"github.com/treestash/treesync/internal/logger"
	"github.com/treestash/treesync/internal/revcache"
	"github.com/treestash/treesync/internal/store"
	"github.com/treestash/treesync/models"
)

func newTestCache(t *testing.T) (*Cache, store.NodeStore, *events.Bus) {
	t.Helper()
	nodeStore := store.NewMemoryStore()
	bus := events.NewBus()
	c := New(nodeStore, revcache.New("rev"), bus, logger.Nop())
	t.Cleanup(c.Close)
	return c, nodeStore, bus
}

func TestPut_ThenGet(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Put(ctx, "/notes/today.txt", []byte("hello"), "text/plain")
	require.NoError(t, err)

	resp, err := c.Get(ctx, "/notes/today.txt", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, []byte("hello"), resp.Body)
	assert.Equal(t, "text/plain", resp.ContentType)
}

func TestPut_UpdatesAncestorListings(t *testing.T) {
	c, nodeStore, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Put(ctx, "/a/b/c.txt", []byte("x"), "text/plain")
	require.NoError(t, err)

	nodes, err := nodeStore.GetNodes(ctx, []string{"/a/b/", "/a/", "/"})
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	assert.True(t, nodes["/a/b/"].Local.Items["c.txt"].Present)
	assert.True(t, nodes["/a/"].Local.Items["b/"].Present)
	assert.True(t, nodes["/"].Local.Items["a/"].Present)
}

func TestPut_EmitsWindowChangeEvent(t *testing.T) {
	c, _, bus := newTestCache(t)
	ctx := context.Background()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	_, err := c.Put(ctx, "/doc.txt", []byte("v2"), "text/plain")
	require.NoError(t, err)

	select {
	case ev := <-ch:
		require.NotNil(t, ev.Change)
		assert.Equal(t, models.OriginWindow, ev.Change.Origin)
		assert.Equal(t, "/doc.txt", ev.Change.Path)
		assert.Nil(t, ev.Change.OldValue)
		assert.Equal(t, []byte("v2"), ev.Change.NewValue)
		assert.NotEmpty(t, ev.Change.ID)
	case <-time.After(time.Second):
		t.Fatal("expected a change event")
	}
}

func TestPut_RejectsFolderPath(t *testing.T) {
	c, _, _ := newTestCache(t)
	_, err := c.Put(context.Background(), "/folder/", []byte("x"), "text/plain")
	require.ErrorIs(t, err, models.ErrInvalidPath)
}

func TestDelete_HidesDocumentAndPrunesListings(t *testing.T) {
	c, nodeStore, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Put(ctx, "/a/one.txt", []byte("1"), "text/plain")
	require.NoError(t, err)
	_, err = c.Put(ctx, "/a/two.txt", []byte("2"), "text/plain")
	require.NoError(t, err)

	_, err = c.Delete(ctx, "/a/one.txt")
	require.NoError(t, err)

	resp, err := c.Get(ctx, "/a/one.txt", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	// /a/ still has two.txt, so the root listing must keep a/.
	nodes, err := nodeStore.GetNodes(ctx, []string{"/a/", "/"})
	require.NoError(t, err)
	_, hasOne := nodes["/a/"].Local.Items["one.txt"]
	assert.False(t, hasOne)
	assert.True(t, nodes["/a/"].Local.Items["two.txt"].Present)
	assert.True(t, nodes["/"].Local.Items["a/"].Present)
}

func TestDelete_AscendsWhileFoldersEmpty(t *testing.T) {
	c, nodeStore, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Put(ctx, "/a/b/only.txt", []byte("x"), "text/plain")
	require.NoError(t, err)
	_, err = c.Delete(ctx, "/a/b/only.txt")
	require.NoError(t, err)

	nodes, err := nodeStore.GetNodes(ctx, []string{"/a/b/", "/a/", "/"})
	require.NoError(t, err)
	assert.Empty(t, nodes["/a/b/"].Local.Items)
	assert.Empty(t, nodes["/a/"].Local.Items)
	assert.Empty(t, nodes["/"].Local.Items)
}

func TestGet_FolderListingFiltersDeleted(t *testing.T) {
	c, nodeStore, _ := newTestCache(t)
	ctx := context.Background()

	folder := &models.Node{
		Path: "/f/",
		Local: &models.Revision{
			Items: map[string]models.FolderItem{
				"kept.txt": {Present: true},
				"gone.txt": {Present: false},
			},
			Timestamp: 1,
		},
	}
	require.NoError(t, nodeStore.SetNodes(ctx, map[string]*models.Node{folder.Path: folder}))

	resp, err := c.Get(ctx, "/f/", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	require.Len(t, resp.Items, 1)
	assert.Contains(t, resp.Items, "kept.txt")
}

func TestGet_MissingNode(t *testing.T) {
	c, _, _ := newTestCache(t)

	resp, err := c.Get(context.Background(), "/nope.txt", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestGet_StaleDelegatesToRemoteFetch(t *testing.T) {
	c, nodeStore, _ := newTestCache(t)
	ctx := context.Background()

	stale := &models.Node{
		Path: "/doc.txt",
		Common: &models.Revision{
			Body:        []byte("old"),
			ContentType: "text/plain",
			Timestamp:   time.Now().Add(-time.Minute).UnixMilli(),
		},
	}
	require.NoError(t, nodeStore.SetNodes(ctx, map[string]*models.Node{stale.Path: stale}))

	fetched := false
	resp, err := c.Get(ctx, "/doc.txt", 5*time.Second, func(ctx context.Context, path string) (Response, error) {
		fetched = true
		return Response{StatusCode: 200, Body: []byte("fresh")}, nil
	})

	require.NoError(t, err)
	assert.True(t, fetched)
	assert.Equal(t, []byte("fresh"), resp.Body)
}

func TestGet_FreshNodeSkipsRemoteFetch(t *testing.T) {
	c, nodeStore, _ := newTestCache(t)
	ctx := context.Background()

	fresh := &models.Node{
		Path: "/doc.txt",
		Common: &models.Revision{
			Body:      []byte("current"),
			Timestamp: time.Now().UnixMilli(),
		},
	}
	require.NoError(t, nodeStore.SetNodes(ctx, map[string]*models.Node{fresh.Path: fresh}))

	resp, err := c.Get(ctx, "/doc.txt", time.Minute, func(ctx context.Context, path string) (Response, error) {
		t.Fatal("fresh node must not hit the remote")
		return Response{}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []byte("current"), resp.Body)
}

func TestGet_UnreconciledRemoteCountsAsStale(t *testing.T) {
	c, nodeStore, _ := newTestCache(t)
	ctx := context.Background()

	node := &models.Node{
		Path: "/doc.txt",
		Common: &models.Revision{
			Body:      []byte("old"),
			Timestamp: time.Now().UnixMilli(),
		},
		Remote: &models.Revision{Revision: "r2"},
	}
	require.NoError(t, nodeStore.SetNodes(ctx, map[string]*models.Node{node.Path: node}))

	fetched := false
	_, err := c.Get(ctx, "/doc.txt", time.Minute, func(ctx context.Context, path string) (Response, error) {
		fetched = true
		return Response{StatusCode: 200}, nil
	})
	require.NoError(t, err)
	assert.True(t, fetched)
}

func TestConcurrentPuts_NoLostAncestorUpdates(t *testing.T) {
	c, nodeStore, _ := newTestCache(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Put(ctx, fmt.Sprintf("/shared/doc-%02d.txt", i), []byte("x"), "text/plain")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	nodes, err := nodeStore.GetNodes(ctx, []string{"/shared/"})
	require.NoError(t, err)
	require.Contains(t, nodes, "/shared/")
	assert.Len(t, nodes["/shared/"].Local.Items, writers,
		"every concurrent put must survive in the shared folder listing")
}

func TestPut_SecondWriteWins(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Put(ctx, "/doc.txt", []byte("one"), "text/plain")
	require.NoError(t, err)
	_, err = c.Put(ctx, "/doc.txt", []byte("two"), "text/plain")
	require.NoError(t, err)

	resp, err := c.Get(ctx, "/doc.txt", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), resp.Body)
}

func TestUpdateNodes_PersistsInPlaceMutations(t *testing.T) {
	c, nodeStore, _ := newTestCache(t)
	ctx := context.Background()

	node := &models.Node{
		Path:  "/doc.txt",
		Local: &models.Revision{Body: []byte("pending"), Timestamp: 1},
	}
	require.NoError(t, nodeStore.SetNodes(ctx, map[string]*models.Node{node.Path: node}))

	// Callbacks commonly mutate the loaded node instead of rebuilding it;
	// the write must land either way.
	err := c.UpdateNodes(ctx, []string{"/doc.txt"}, func(nodes map[string]*models.Node) (map[string]*models.Node, []models.ChangeEvent, error) {
		n := nodes["/doc.txt"]
		n.Push = n.Local.Clone()
		return map[string]*models.Node{"/doc.txt": n}, nil, nil
	})
	require.NoError(t, err)

	nodes, err := nodeStore.GetNodes(ctx, []string{"/doc.txt"})
	require.NoError(t, err)
	require.NotNil(t, nodes["/doc.txt"].Push)
	assert.Equal(t, []byte("pending"), nodes["/doc.txt"].Push.Body)
}

func TestUpdateNodes_PersistsTimestampOnlyRefresh(t *testing.T) {
	c, nodeStore, _ := newTestCache(t)
	ctx := context.Background()

	node := &models.Node{
		Path:   "/doc.txt",
		Common: &models.Revision{Body: []byte("same"), Revision: "r1", Timestamp: 1},
	}
	require.NoError(t, nodeStore.SetNodes(ctx, map[string]*models.Node{node.Path: node}))

	err := c.UpdateNodes(ctx, []string{"/doc.txt"}, func(nodes map[string]*models.Node) (map[string]*models.Node, []models.ChangeEvent, error) {
		n := nodes["/doc.txt"]
		n.Common.Timestamp = 999
		return map[string]*models.Node{"/doc.txt": n}, nil, nil
	})
	require.NoError(t, err)

	nodes, err := nodeStore.GetNodes(ctx, []string{"/doc.txt"})
	require.NoError(t, err)
	assert.Equal(t, int64(999), nodes["/doc.txt"].Common.Timestamp,
		"a conditional fetch confirms freshness through the timestamp alone")
}

func TestGet_FolderRevisionDerivedFromChildTags(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	seed := func(tag string) {
		err := c.UpdateNodes(ctx, []string{"/f/", "/f/a.txt"}, func(nodes map[string]*models.Node) (map[string]*models.Node, []models.ChangeEvent, error) {
			doc := nodeOrNew(nodes, "/f/a.txt")
			doc.Common = &models.Revision{Body: []byte("a"), Revision: tag, Timestamp: nowMillis()}
			folder := nodeOrNew(nodes, "/f/")
			folder.Local = &models.Revision{
				Items:     map[string]models.FolderItem{"a.txt": {Present: true}},
				Timestamp: nowMillis(),
			}
			return map[string]*models.Node{"/f/a.txt": doc, "/f/": folder}, nil, nil
		})
		require.NoError(t, err)
	}

	seed("r1")
	first, err := c.Get(ctx, "/f/", 0, nil)
	require.NoError(t, err)
	require.Equal(t, 200, first.StatusCode)
	assert.NotEmpty(t, first.Revision)
	assert.NotEqual(t, "rev", first.Revision,
		"an untagged listing gets the derived folder tag, not the unset default")

	seed("r2")
	second, err := c.Get(ctx, "/f/", 0, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Revision, second.Revision,
		"a child revision change must move the folder tag")
}

func TestFlush_DropsLocalDataRecursively(t *testing.T) {
	c, nodeStore, bus := newTestCache(t)
	ctx := context.Background()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	_, err := c.Put(ctx, "/work/a.txt", []byte("a"), "text/plain")
	require.NoError(t, err)
	_, err = c.Put(ctx, "/work/sub/b.txt", []byte("b"), "text/plain")
	require.NoError(t, err)
	drainEvents(ch)

	require.NoError(t, c.Flush(ctx, "/work/"))

	// Purely local nodes disappear entirely.
	nodes, err := nodeStore.GetNodes(ctx, []string{"/work/a.txt", "/work/sub/b.txt", "/work/", "/work/sub/"})
	require.NoError(t, err)
	assert.Empty(t, nodes)

	origins := make(map[models.Origin]int)
	for _, ev := range drainEvents(ch) {
		if ev.Change != nil {
			origins[ev.Change.Origin]++
		}
	}
	assert.Equal(t, 2, origins[models.OriginLocal], "one local-origin event per hidden document")
}

func TestFlush_KeepsConfirmedState(t *testing.T) {
	c, nodeStore, _ := newTestCache(t)
	ctx := context.Background()

	node := &models.Node{
		Path:   "/doc.txt",
		Common: &models.Revision{Body: []byte("confirmed"), Revision: "r1", Timestamp: 1},
		Local:  &models.Revision{Body: []byte("pending"), Timestamp: 2},
	}
	require.NoError(t, nodeStore.SetNodes(ctx, map[string]*models.Node{node.Path: node}))

	require.NoError(t, c.Flush(ctx, "/doc.txt"))

	resp, err := c.Get(ctx, "/doc.txt", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("confirmed"), resp.Body)
}

func drainEvents(ch chan events.Event) []events.Event {
	var drained []events.Event
	for {
		select {
		case ev := <-ch:
			drained = append(drained, ev)
		case <-time.After(50 * time.Millisecond):
			return drained
		}
	}
}

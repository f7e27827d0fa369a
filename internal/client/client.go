// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

// Package client exposes the synced GET/PUT/DELETE surface the application
// talks to. Calls are routed to the local cache or directly to the remote
// transport depending on the caching strategy claimed for the path, and
// calls issued while disconnected are buffered and replayed in order once
// the client reconnects.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/treestash/treesync/internal/adapter"
	"github.com/treestash/treesync/internal/cache"
	"github.com/treestash/treesync/internal/logger"
	"github.com/treestash/treesync/models"
)

// Remote is the subset of the sync engine the client needs: an on-demand
// fetch used for cache misses and stale reads.
type Remote interface {
	QueueGetRequest(ctx context.Context, path string) (cache.Response, error)
}

type pendingCall struct {
	run     func(ctx context.Context) (cache.Response, error)
	respond chan pendingResult
}

type pendingResult struct {
	resp cache.Response
	err  error
}

// Client is the synced GET/PUT/DELETE router.
type Client struct {
	cache   *cache.Cache
	remote  adapter.Transport
	engine  Remote
	caching *Caching
	access  *Access
	log     *logger.Logger

	mu        sync.Mutex
	connected bool
	pending   []pendingCall
}

// New builds a connected client. caching and access may be shared with the
// sync engine's permission checker.
func New(c *cache.Cache, remote adapter.Transport, engine Remote, caching *Caching, access *Access, log *logger.Logger) *Client {
	return &Client{
		cache:     c,
		remote:    remote,
		engine:    engine,
		caching:   caching,
		access:    access,
		log:       log.WithComponent("client"),
		connected: true,
	}
}

// Access returns the claim table, usable as the engine's permission checker.
func (c *Client) Access() *Access {
	return c.access
}

// SetStrategy claims a caching strategy for a subtree. Switching a subtree
// to FLUSH drops its cached data that has no pending local changes.
func (c *Client) SetStrategy(ctx context.Context, folder string, strategy Strategy) error {
	if err := c.caching.Set(folder, strategy); err != nil {
		return err
	}
	if strategy == StrategyFlush {
		return c.cache.Flush(ctx, folder)
	}
	return nil
}

// Get reads path. Cached subtrees answer from the local view, delegating to
// the sync engine when the cached node is missing or staler than maxAge;
// FLUSH subtrees go straight to the remote.
func (c *Client) Get(ctx context.Context, path string, maxAge time.Duration) (cache.Response, error) {
	return c.call(ctx, func(ctx context.Context) (cache.Response, error) {
		if !c.caching.Cached(path) {
			return c.directGet(ctx, path)
		}

		return c.cache.Get(ctx, path, maxAge, c.engine.QueueGetRequest)
	})
}

// Put writes a document. Cached subtrees record the write locally for the
// next sync cycle; FLUSH subtrees push synchronously.
func (c *Client) Put(ctx context.Context, path string, body []byte, contentType string) (cache.Response, error) {
	return c.call(ctx, func(ctx context.Context) (cache.Response, error) {
		if c.caching.Cached(path) {
			return c.cache.Put(ctx, path, body, contentType)
		}

		resp, err := c.remote.Put(ctx, path, body, contentType, adapter.PutOptions{})
		if err != nil {
			return cache.Response{}, err
		}
		return fromRemote(resp), nil
	})
}

// Delete removes a document, with the same routing as Put.
func (c *Client) Delete(ctx context.Context, path string) (cache.Response, error) {
	return c.call(ctx, func(ctx context.Context) (cache.Response, error) {
		if c.caching.Cached(path) {
			return c.cache.Delete(ctx, path)
		}

		resp, err := c.remote.Delete(ctx, path, adapter.DeleteOptions{})
		if err != nil {
			return cache.Response{}, err
		}
		return fromRemote(resp), nil
	})
}

// Disconnect switches the client into buffering mode: subsequent calls
// block and queue up until Connect replays them.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.log.Info().Msg("client disconnected, buffering calls")
}

// Connect leaves buffering mode and replays the buffered calls in the order
// they were issued.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	c.connected = true
	replay := c.pending
	c.pending = nil
	c.mu.Unlock()

	if len(replay) > 0 {
		c.log.Info().Int("calls", len(replay)).Msg("replaying buffered calls")
	}
	for _, call := range replay {
		resp, err := call.run(ctx)
		call.respond <- pendingResult{resp: resp, err: err}
	}
}

// call runs fn immediately when connected, otherwise buffers it and blocks
// the caller until a reconnect replays it.
func (c *Client) call(ctx context.Context, fn func(ctx context.Context) (cache.Response, error)) (cache.Response, error) {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return fn(ctx)
	}

	pending := pendingCall{run: fn, respond: make(chan pendingResult, 1)}
	c.pending = append(c.pending, pending)
	c.mu.Unlock()

	select {
	case result := <-pending.respond:
		return result.resp, result.err
	case <-ctx.Done():
		return cache.Response{}, ctx.Err()
	}
}

func (c *Client) directGet(ctx context.Context, path string) (cache.Response, error) {
	resp, err := c.remote.Get(ctx, path, adapter.GetOptions{})
	if err != nil {
		return cache.Response{}, err
	}
	return fromRemote(resp), nil
}

func fromRemote(resp adapter.RemoteResponse) cache.Response {
	out := cache.Response{
		StatusCode:  resp.StatusCode,
		Body:        resp.Body,
		ContentType: resp.ContentType,
		Revision:    resp.Revision,
	}
	if resp.Items != nil {
		out.Items = make(map[string]models.FolderItem, len(resp.Items))
		for name, item := range resp.Items {
			out.Items[name] = item
		}
	}
	return out
}

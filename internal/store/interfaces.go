// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

// Package store provides the node persistence layer: the NodeStore interface
// consumed by the caching layer and the sync engine, and its in-memory,
// file-backed and sqlite-backed implementations.
//
// Every node read from a persistence backend passes through the validating
// deserializer in the models package. A node that fails validation is
// returned as an empty stub for its path instead of an error, so the sync
// engine can schedule a fresh fetch and self-heal the store.
package store

import (
	"context"

	"github.com/treestash/treesync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/node_store_mock.go -package=mock

// NodeStore persists per-path node records.
type NodeStore interface {
	// GetNodes loads the nodes for the given paths. The returned map only
	// contains entries for paths that exist in the store.
	GetNodes(ctx context.Context, paths []string) (map[string]*models.Node, error)

	// SetNodes writes the given nodes in one batch. A nil map value deletes
	// the node at that path.
	SetNodes(ctx context.Context, nodes map[string]*models.Node) error

	// ForAllNodes visits every node in the store. Returning
	// [ErrStopIteration] from visit stops the scan without error; any other
	// error aborts the scan and is returned.
	ForAllNodes(ctx context.Context, visit func(node *models.Node) error) error

	// Close releases resources held by the store.
	Close() error
}

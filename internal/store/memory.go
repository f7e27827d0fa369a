package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/treestash/treesync/models"
)

// MemoryStore is the map-backed NodeStore used for tests and for the
// "memory" storage backend. All returned nodes are deep copies so callers
// can never alias the store's internal state.
type MemoryStore struct {
	mu     sync.RWMutex
	nodes  map[string]*models.Node
	closed bool
}

// NewMemoryStore creates an empty in-memory node store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nodes: make(map[string]*models.Node)}
}

// GetNodes implements NodeStore.
func (s *MemoryStore) GetNodes(ctx context.Context, paths []string) (map[string]*models.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	found := make(map[string]*models.Node, len(paths))
	for _, path := range paths {
		if node, ok := s.nodes[path]; ok {
			found[path] = node.Clone()
		}
	}
	return found, nil
}

// SetNodes implements NodeStore.
func (s *MemoryStore) SetNodes(ctx context.Context, nodes map[string]*models.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	for path, node := range nodes {
		if node == nil {
			delete(s.nodes, path)
			continue
		}
		if err := node.Validate(); err != nil {
			return fmt.Errorf("set node %q: %w", path, err)
		}
		s.nodes[path] = node.Clone()
	}
	return nil
}

// ForAllNodes implements NodeStore.
func (s *MemoryStore) ForAllNodes(ctx context.Context, visit func(node *models.Node) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	snapshot := make([]*models.Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		snapshot = append(snapshot, node.Clone())
	}
	s.mu.RUnlock()

	for _, node := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := visit(node); err != nil {
			if err == ErrStopIteration {
				return nil
			}
			return err
		}
	}
	return nil
}

// Close implements NodeStore.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.nodes = nil
	return nil
}

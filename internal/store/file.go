package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/treestash/treesync/internal/logger"
	"github.com/treestash/treesync/models"
)

// FileStore is a NodeStore that keeps all nodes in memory and persists a
// JSON snapshot of the tree after every write batch. Suited to small trees
// where a full rewrite per batch is cheaper than a real database.
type FileStore struct {
	path string
	log  *logger.Logger

	mu     sync.RWMutex
	nodes  map[string]*models.Node
	closed bool
}

type filePersistedState struct {
	Nodes map[string]json.RawMessage `json:"nodes"`
}

// NewFileStore opens (or creates) the JSON-backed node store at path.
func NewFileStore(path string, log *logger.Logger) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		log:   log.WithComponent("filestore"),
		nodes: make(map[string]*models.Node),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read node store file: %w", err)
	}

	var st filePersistedState
	if err = json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode node store file: %w", err)
	}

	for path, raw := range st.Nodes {
		node, err := models.DecodeNode(raw)
		if err != nil {
			// Keep a bare stub so the sync engine refetches the path
			// instead of losing it.
			s.log.Warn().Err(err).Str("path", path).Msg("dropping corrupt node, will refetch")
			if models.ValidPath(path) {
				s.nodes[path] = models.NewNode(path)
			}
			continue
		}
		s.nodes[path] = node
	}

	return nil
}

func (s *FileStore) persist() error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create node store dir: %w", err)
		}
	}

	st := filePersistedState{Nodes: make(map[string]json.RawMessage, len(s.nodes))}
	for path, node := range s.nodes {
		encoded, err := models.EncodeNode(node)
		if err != nil {
			return err
		}
		st.Nodes[path] = encoded
	}

	payload, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode node store: %w", err)
	}

	if err = os.WriteFile(s.path, payload, 0o600); err != nil {
		return fmt.Errorf("write node store file: %w", err)
	}

	return nil
}

// GetNodes implements NodeStore.
func (s *FileStore) GetNodes(ctx context.Context, paths []string) (map[string]*models.Node, error) {
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
func (s *FileStore) SetNodes(ctx context.Context, nodes map[string]*models.Node) error {
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

	return s.persist()
}

// ForAllNodes implements NodeStore.
func (s *FileStore) ForAllNodes(ctx context.Context, visit func(node *models.Node) error) error {
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

// Close implements NodeStore. The latest snapshot is already on disk, so
// closing only drops the in-memory state.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.nodes = nil
	return nil
}

package store

import (
	"context"
	"fmt"

	"github.com/treestash/treesync/internal/config"
	"github.com/treestash/treesync/internal/logger"
)

// Storages groups the storage backends used by the engine. Currently it
// holds only the node store; additional stores can be added here as the
// feature set grows.
type Storages struct {
	// Nodes persists the per-path sync state.
	Nodes NodeStore
}

// NewStorages initialises the storage layer for the configured backend.
//
// Returns an error for an unknown backend or if the backend fails to open
// (e.g. the sqlite database cannot be created or migrated).
func NewStorages(cfg config.Storage, log *logger.Logger) (*Storages, error) {
	log.Info().Str("backend", cfg.Backend).Msg("creating node storage...")

	switch cfg.Backend {
	case config.BackendMemory:
		return &Storages{Nodes: NewMemoryStore()}, nil

	case config.BackendFile:
		nodes, err := NewFileStore(cfg.Path, log)
		if err != nil {
			return nil, fmt.Errorf("open file node store: %w", err)
		}
		return &Storages{Nodes: nodes}, nil

	case config.BackendSQLite:
		nodes, err := NewSQLiteStore(context.Background(), cfg.Path, log)
		if err != nil {
			return nil, fmt.Errorf("open sqlite node store: %w", err)
		}
		return &Storages{Nodes: nodes}, nil

	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidStorageConfigs, cfg.Backend)
	}
}

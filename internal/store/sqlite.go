package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/treestash/treesync/internal/logger"
	"github.com/treestash/treesync/migrations"
	"github.com/treestash/treesync/models"
)

// SQLiteStore is a NodeStore backed by a local sqlite database. Nodes are
// stored as JSON documents keyed by path; the validating deserializer runs
// on every read.
type SQLiteStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewSQLiteStore opens the sqlite database at dbPath, creating the file if
// it does not exist, and applies pending schema migrations.
func NewSQLiteStore(ctx context.Context, dbPath string, log *logger.Logger) (*SQLiteStore, error) {
	if err := createLocalDBFileIfNotExists(dbPath); err != nil {
		log.Err(err).Str("func", "NewSQLiteStore").Msg("error creating database file")
		return nil, fmt.Errorf("error creating database file: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		log.Err(err).Str("func", "NewSQLiteStore").Msg("error connecting database")
		return nil, fmt.Errorf("error opening connection to DB: %w", err)
	}

	if err = conn.PingContext(ctx); err != nil {
		log.Err(err).Str("func", "NewSQLiteStore").Msg("error connecting database (ping)")
		return nil, err
	}

	if err = migrations.Migrate(conn); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	log.Debug().Str("func", "NewSQLiteStore").Msg("connected to database successfully")

	return &SQLiteStore{db: conn, log: log.WithComponent("sqlitestore")}, nil
}

func createLocalDBFileIfNotExists(dbFile string) error {
	if _, err := os.Stat(dbFile); os.IsNotExist(err) {
		f, err := os.Create(dbFile)
		if err != nil {
			return fmt.Errorf("error creating DB file: %w", err)
		}
		f.Close()
	}

	return nil
}

// GetNodes implements NodeStore.
func (s *SQLiteStore) GetNodes(ctx context.Context, paths []string) (map[string]*models.Node, error) {
	found := make(map[string]*models.Node, len(paths))
	if len(paths) == 0 {
		return found, nil
	}

	query, args, err := sq.Select("path", "node").
		From("nodes").
		Where(sq.Eq{"path": paths}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutingQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var path string
		var payload []byte
		if err = rows.Scan(&path, &payload); err != nil {
			return nil, fmt.Errorf("scan node row: %w", err)
		}
		found[path] = s.decodeOrStub(path, payload)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutingQuery, err)
	}

	return found, nil
}

// SetNodes implements NodeStore. The whole batch is applied in one
// transaction so ancestor folder updates are never partially persisted.
func (s *SQLiteStore) SetNodes(ctx context.Context, nodes map[string]*models.Node) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin node batch: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for path, node := range nodes {
		if node == nil {
			query, args, err := sq.Delete("nodes").Where(sq.Eq{"path": path}).ToSql()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
			}
			if _, err = tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("delete node %q: %w", path, err)
			}
			continue
		}

		if err = node.Validate(); err != nil {
			return fmt.Errorf("set node %q: %w", path, err)
		}
		payload, err := models.EncodeNode(node)
		if err != nil {
			return err
		}

		query, args, err := sq.Insert("nodes").
			Columns("path", "node", "updated_at").
			Values(path, payload, now).
			Suffix("ON CONFLICT(path) DO UPDATE SET node = excluded.node, updated_at = excluded.updated_at").
			ToSql()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert node %q: %w", path, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit node batch: %w", err)
	}
	return nil
}

// ForAllNodes implements NodeStore.
func (s *SQLiteStore) ForAllNodes(ctx context.Context, visit func(node *models.Node) error) error {
	query, args, err := sq.Select("path", "node").From("nodes").OrderBy("path").ToSql()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExecutingQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		var path string
		var payload []byte
		if err = rows.Scan(&path, &payload); err != nil {
			return fmt.Errorf("scan node row: %w", err)
		}
		if err = visit(s.decodeOrStub(path, payload)); err != nil {
			if err == ErrStopIteration {
				return nil
			}
			return err
		}
	}
	return rows.Err()
}

// Close implements NodeStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// decodeOrStub runs the validating deserializer and degrades a corrupt row
// to an empty stub so the sync engine refetches the path.
func (s *SQLiteStore) decodeOrStub(path string, payload []byte) *models.Node {
	node, err := models.DecodeNode(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("corrupt node row, degrading to stub")
		return models.NewNode(path)
	}
	return node
}

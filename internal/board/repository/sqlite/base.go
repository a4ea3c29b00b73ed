// Package sqlite provides the SQL board repository. It runs on SQLite and,
// through the pgx driver, on PostgreSQL.
package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	commonsqlite "github.com/kandev/taskboard/internal/common/sqlite"
	"github.com/kandev/taskboard/internal/db/dialect"
)

// Repository provides SQL board storage.
type Repository struct {
	db     *sqlx.DB // writer
	ro     *sqlx.DB // reader
	ownsDB bool
}

// NewWithDB creates a repository on shared writer and reader pools.
func NewWithDB(writer, reader *sqlx.DB) (*Repository, error) {
	return newRepository(writer, reader, false)
}

// New creates a repository that owns its single connection.
func New(conn *sqlx.DB) (*Repository, error) {
	return newRepository(conn, conn, true)
}

func newRepository(writer, reader *sqlx.DB, ownsDB bool) (*Repository, error) {
	repo := &Repository{db: writer, ro: reader, ownsDB: ownsDB}
	if err := repo.initSchema(context.Background()); err != nil {
		if ownsDB {
			if closeErr := writer.Close(); closeErr != nil {
				return nil, fmt.Errorf("failed to close database after schema error: %w", closeErr)
			}
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return repo, nil
}

// Close closes the connection when the repository owns it.
func (r *Repository) Close() error {
	if !r.ownsDB {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) driver() string {
	return r.db.DriverName()
}

func (r *Repository) initSchema(ctx context.Context) error {
	ts := dialect.TimestampType(r.driver())

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS board_columns (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			sort_rank TEXT NOT NULL DEFAULT ''
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS board_tasks (
			id TEXT PRIMARY KEY,
			column_id TEXT NOT NULL REFERENCES board_columns(id) ON DELETE CASCADE,
			content TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL,
			updated_by TEXT NOT NULL DEFAULT '',
			sort_rank TEXT NOT NULL DEFAULT '',
			created_at %[1]s NOT NULL,
			updated_at %[1]s NOT NULL
		)`, ts),
		`CREATE INDEX IF NOT EXISTS idx_board_columns_owner ON board_columns(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_board_tasks_owner ON board_tasks(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_board_tasks_column ON board_tasks(column_id)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	if dialect.IsPostgres(r.driver()) {
		return nil
	}
	// Databases created before ranks were persisted.
	if err := commonsqlite.EnsureColumn(ctx, r.db.DB, "board_columns", "sort_rank", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return err
	}
	return commonsqlite.EnsureColumn(ctx, r.db.DB, "board_tasks", "sort_rank", "TEXT NOT NULL DEFAULT ''")
}

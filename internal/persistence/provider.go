// Package persistence opens the configured database and the repositories
// built on it.
package persistence

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	boardrepo "github.com/kandev/taskboard/internal/board/repository"
	"github.com/kandev/taskboard/internal/common/config"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/db"
	userstore "github.com/kandev/taskboard/internal/user/store"
)

// Repositories holds every repository of the service. Pool is nil for the
// memory driver.
type Repositories struct {
	Pool  *db.Pool
	Board boardrepo.Repository
	Users userstore.Repository
}

// Provide opens the database selected by cfg.Database.Driver, creates the
// schema and returns the repositories with a cleanup that closes them.
func Provide(cfg *config.Config, log *logger.Logger) (*Repositories, func() error, error) {
	driver := strings.ToLower(cfg.Database.Driver)
	if driver == "memory" {
		board := boardrepo.NewMemoryRepository()
		users := userstore.NewMemoryRepository()
		log.Warn("Using in-memory storage; the board is lost on restart")
		return &Repositories{Board: board, Users: users}, board.Close, nil
	}

	pool, err := openPool(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	board, closeBoard, err := boardrepo.Provide(pool.Writer(), pool.Reader())
	if err != nil {
		_ = pool.Close()
		return nil, nil, fmt.Errorf("failed to create board repository: %w", err)
	}
	users, err := userstore.NewSQLiteRepository(pool.Writer(), pool.Reader())
	if err != nil {
		_ = closeBoard()
		_ = pool.Close()
		return nil, nil, fmt.Errorf("failed to create user repository: %w", err)
	}

	log.Info("Database initialized",
		zap.String("db_driver", driver),
		zap.String("db_path", cfg.Database.Path))

	cleanup := func() error {
		_ = closeBoard()
		_ = users.Close()
		if pool.DriverName() == "sqlite3" {
			// Refresh query planner statistics before closing.
			_, _ = pool.Writer().Exec("PRAGMA optimize")
		}
		return pool.Close()
	}
	return &Repositories{Pool: pool, Board: board, Users: users}, cleanup, nil
}

func openPool(cfg *config.DatabaseConfig) (*db.Pool, error) {
	switch strings.ToLower(cfg.Driver) {
	case "sqlite", "":
		writer, err := db.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		reader, err := db.OpenSQLiteReader(cfg.Path)
		if err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("failed to open sqlite reader: %w", err)
		}
		return db.NewPool(wrap(writer, "sqlite3"), wrap(reader, "sqlite3")), nil
	case "postgres":
		conn, err := db.OpenPostgres(cfg.DSN(), cfg.MaxConns, cfg.MinConns)
		if err != nil {
			return nil, err
		}
		x := wrap(conn, "pgx")
		return db.NewPool(x, x), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func wrap(conn *sql.DB, driver string) *sqlx.DB {
	return sqlx.NewDb(conn, driver)
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	commonsqlite "github.com/kandev/taskboard/internal/common/sqlite"
	"github.com/kandev/taskboard/internal/db/dialect"
	"github.com/kandev/taskboard/internal/user/models"
)

// SQLiteRepository stores users in the `users` table. Like the board
// repository it also runs on PostgreSQL through the pgx driver.
type SQLiteRepository struct {
	db *sqlx.DB // writer
	ro *sqlx.DB // reader
}

var _ Repository = (*SQLiteRepository)(nil)

func NewSQLiteRepository(writer, reader *sqlx.DB) (*SQLiteRepository, error) {
	repo := &SQLiteRepository{db: writer, ro: reader}
	if err := repo.initSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return repo, nil
}

func (r *SQLiteRepository) initSchema(ctx context.Context) error {
	driver := r.db.DriverName()
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		created_at %[1]s NOT NULL,
		updated_at %[1]s NOT NULL
	)`, dialect.TimestampType(driver))
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	if dialect.IsPostgres(driver) {
		return nil
	}
	if err := commonsqlite.EnsureColumn(ctx, r.db.DB, "users", "username", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return err
	}
	return commonsqlite.EnsureColumn(ctx, r.db.DB, "users", "password_hash", "TEXT NOT NULL DEFAULT ''")
}

// Close is a no-op: the pools belong to the caller.
func (r *SQLiteRepository) Close() error {
	return nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, user *models.User) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO users (id, email, username, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), user.ID, strings.ToLower(user.Email), user.Username, user.PasswordHash, user.CreatedAt, user.UpdatedAt)
	if dialect.IsUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT id, email, username, password_hash, created_at, updated_at FROM users WHERE id = ?`, id)
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT id, email, username, password_hash, created_at, updated_at FROM users WHERE email = ?`,
		strings.ToLower(email))
}

func (r *SQLiteRepository) getOne(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	err := r.ro.GetContext(ctx, &user, r.ro.Rebind(query), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

package sqlite

import (
	"context"

	"github.com/kandev/taskboard/internal/board/models"
	"github.com/kandev/taskboard/internal/db/dialect"
)

// ListColumns returns the owner's columns ordered by rank.
func (r *Repository) ListColumns(ctx context.Context, ownerID string) ([]*models.Column, error) {
	var columns []*models.Column
	err := r.ro.SelectContext(ctx, &columns, r.ro.Rebind(`
		SELECT id, owner_id, title, sort_rank
		FROM board_columns WHERE owner_id = ?
		ORDER BY sort_rank, id
	`), ownerID)
	if err != nil {
		return nil, err
	}
	return columns, nil
}

// CreateColumn inserts a column. Inserting an existing id is a no-op so a
// retried write is harmless.
func (r *Repository) CreateColumn(ctx context.Context, column *models.Column) error {
	prefix, suffix := dialect.UpsertIgnore(r.driver())
	_, err := r.db.ExecContext(ctx, r.db.Rebind(prefix+`
		INTO board_columns (id, owner_id, title, sort_rank) VALUES (?, ?, ?, ?)`+suffix),
		column.ID, column.OwnerID, column.Title, column.Rank)
	return err
}

// RenameColumn updates a column title.
func (r *Repository) RenameColumn(ctx context.Context, id, title string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE board_columns SET title = ? WHERE id = ?`), title, id)
	return err
}

// UpdateColumnRank moves a column within its board.
func (r *Repository) UpdateColumnRank(ctx context.Context, id, rank string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE board_columns SET sort_rank = ? WHERE id = ?`), rank, id)
	return err
}

// DeleteColumn deletes the column and its tasks in one transaction. The
// foreign key cascades too; the explicit delete keeps the contract when
// foreign keys are disabled on the connection.
func (r *Repository) DeleteColumn(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM board_tasks WHERE column_id = ?`), id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM board_columns WHERE id = ?`), id); err != nil {
		return err
	}
	return tx.Commit()
}

package sqlite

import (
	"context"
	"time"

	"github.com/kandev/taskboard/internal/board/models"
	"github.com/kandev/taskboard/internal/db/dialect"
)

// ListTasks returns the owner's tasks ordered by rank.
func (r *Repository) ListTasks(ctx context.Context, ownerID string) ([]*models.Task, error) {
	var tasks []*models.Task
	err := r.ro.SelectContext(ctx, &tasks, r.ro.Rebind(`
		SELECT id, column_id, content, owner_id, updated_by, sort_rank, created_at, updated_at
		FROM board_tasks WHERE owner_id = ?
		ORDER BY sort_rank, id
	`), ownerID)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask inserts a task. Inserting an existing id is a no-op.
func (r *Repository) CreateTask(ctx context.Context, task *models.Task) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	prefix, suffix := dialect.UpsertIgnore(r.driver())
	_, err := r.db.ExecContext(ctx, r.db.Rebind(prefix+`
		INTO board_tasks (id, column_id, content, owner_id, updated_by, sort_rank, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`+suffix),
		task.ID, task.ColumnID, task.Content, task.OwnerID, task.UpdatedBy, task.Rank, task.CreatedAt, task.UpdatedAt)
	return err
}

// UpdateTask writes content, membership, rank and the writer stamp.
func (r *Repository) UpdateTask(ctx context.Context, task *models.Task) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE board_tasks
		SET content = ?, column_id = ?, updated_by = ?, sort_rank = ?, updated_at = ?
		WHERE id = ?
	`), task.Content, task.ColumnID, task.UpdatedBy, task.Rank, task.UpdatedAt.UTC(), task.ID)
	return err
}

// DeleteTask deletes a task by id.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM board_tasks WHERE id = ?`), id)
	return err
}

package repository

import (
	"context"

	"github.com/kandev/taskboard/internal/board/models"
)

// Repository is the persistence gateway for boards. Every read is scoped by
// owner. Writes keyed by id treat a missing row as success: the store is
// last-write-wins and a late write must not resurrect a deleted row.
type Repository interface {
	ListColumns(ctx context.Context, ownerID string) ([]*models.Column, error)
	ListTasks(ctx context.Context, ownerID string) ([]*models.Task, error)

	CreateColumn(ctx context.Context, column *models.Column) error
	RenameColumn(ctx context.Context, id, title string) error
	UpdateColumnRank(ctx context.Context, id, rank string) error
	// DeleteColumn removes the column and every task it contains.
	DeleteColumn(ctx context.Context, id string) error

	CreateTask(ctx context.Context, task *models.Task) error
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, id string) error

	Close() error
}

package writequeue

import (
	"context"
	"fmt"
	"time"

	"github.com/kandev/taskboard/internal/board/models"
	"github.com/kandev/taskboard/internal/board/repository"
)

// Kind identifies the gateway call an Intent performs.
type Kind string

const (
	KindCreateColumn Kind = "create_column"
	KindRenameColumn Kind = "rename_column"
	KindRankColumn   Kind = "rank_column"
	KindDeleteColumn Kind = "delete_column"
	KindCreateTask   Kind = "create_task"
	KindUpdateTask   Kind = "update_task"
	KindDeleteTask   Kind = "delete_task"
)

// Intent is one pending write. Column and Task hold copies taken when the
// intent was created, so later in-memory edits do not leak into it.
type Intent struct {
	Kind       Kind
	EntityID   string
	Column     *models.Column
	Task       *models.Task
	EnqueuedAt time.Time
}

func CreateColumn(c *models.Column) Intent {
	return Intent{Kind: KindCreateColumn, EntityID: c.ID, Column: c.Clone()}
}

func RenameColumn(id, title string) Intent {
	return Intent{Kind: KindRenameColumn, EntityID: id, Column: &models.Column{ID: id, Title: title}}
}

func RankColumn(id, rank string) Intent {
	return Intent{Kind: KindRankColumn, EntityID: id, Column: &models.Column{ID: id, Rank: rank}}
}

func DeleteColumn(id string) Intent {
	return Intent{Kind: KindDeleteColumn, EntityID: id}
}

func CreateTask(t *models.Task) Intent {
	return Intent{Kind: KindCreateTask, EntityID: t.ID, Task: t.Clone()}
}

func UpdateTask(t *models.Task) Intent {
	return Intent{Kind: KindUpdateTask, EntityID: t.ID, Task: t.Clone()}
}

func DeleteTask(id string) Intent {
	return Intent{Kind: KindDeleteTask, EntityID: id}
}

// apply performs the intent against the repository.
func (i Intent) apply(ctx context.Context, repo repository.Repository) error {
	switch i.Kind {
	case KindCreateColumn:
		return repo.CreateColumn(ctx, i.Column)
	case KindRenameColumn:
		return repo.RenameColumn(ctx, i.EntityID, i.Column.Title)
	case KindRankColumn:
		return repo.UpdateColumnRank(ctx, i.EntityID, i.Column.Rank)
	case KindDeleteColumn:
		return repo.DeleteColumn(ctx, i.EntityID)
	case KindCreateTask:
		return repo.CreateTask(ctx, i.Task)
	case KindUpdateTask:
		return repo.UpdateTask(ctx, i.Task)
	case KindDeleteTask:
		return repo.DeleteTask(ctx, i.EntityID)
	default:
		return fmt.Errorf("unknown write intent kind %q", i.Kind)
	}
}

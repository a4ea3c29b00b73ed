package repository

import (
	"context"
	"testing"
	"time"

	"github.com/kandev/taskboard/internal/board/models"
)

func seedBoard(t *testing.T, repo *MemoryRepository) {
	t.Helper()
	ctx := context.Background()
	for _, c := range []*models.Column{
		{ID: "A", Title: "Todo", OwnerID: "owner-1", Rank: "i"},
		{ID: "B", Title: "Done", OwnerID: "owner-1", Rank: "r"},
		{ID: "X", Title: "Other", OwnerID: "owner-2", Rank: "i"},
	} {
		if err := repo.CreateColumn(ctx, c); err != nil {
			t.Fatalf("create column %s: %v", c.ID, err)
		}
	}
	for _, task := range []*models.Task{
		{ID: "1", ColumnID: "A", Content: "Task 1", OwnerID: "owner-1", Rank: "i"},
		{ID: "2", ColumnID: "B", Content: "Task 2", OwnerID: "owner-1", Rank: "r"},
		{ID: "3", ColumnID: "X", Content: "Task 3", OwnerID: "owner-2", Rank: "i"},
	} {
		if err := repo.CreateTask(ctx, task); err != nil {
			t.Fatalf("create task %s: %v", task.ID, err)
		}
	}
}

func TestMemoryRepository_ListScopedByOwner(t *testing.T) {
	repo := NewMemoryRepository()
	seedBoard(t, repo)
	ctx := context.Background()

	columns, err := repo.ListColumns(ctx, "owner-1")
	if err != nil {
		t.Fatalf("list columns: %v", err)
	}
	if len(columns) != 2 || columns[0].ID != "A" || columns[1].ID != "B" {
		t.Fatalf("unexpected columns: %+v", columns)
	}

	tasks, err := repo.ListTasks(ctx, "owner-1")
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "1" || tasks[1].ID != "2" {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}
}

func TestMemoryRepository_ListReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	seedBoard(t, repo)
	ctx := context.Background()

	columns, _ := repo.ListColumns(ctx, "owner-1")
	columns[0].Title = "mutated"

	again, _ := repo.ListColumns(ctx, "owner-1")
	if again[0].Title != "Todo" {
		t.Errorf("expected stored column to be unaffected, got %q", again[0].Title)
	}
}

func TestMemoryRepository_DeleteColumnCascades(t *testing.T) {
	repo := NewMemoryRepository()
	seedBoard(t, repo)
	ctx := context.Background()

	if err := repo.DeleteColumn(ctx, "A"); err != nil {
		t.Fatalf("delete column: %v", err)
	}

	columns, _ := repo.ListColumns(ctx, "owner-1")
	if len(columns) != 1 || columns[0].ID != "B" {
		t.Fatalf("expected only column B, got %+v", columns)
	}
	tasks, _ := repo.ListTasks(ctx, "owner-1")
	if len(tasks) != 1 || tasks[0].ID != "2" {
		t.Fatalf("expected only task 2, got %+v", tasks)
	}
	other, _ := repo.ListTasks(ctx, "owner-2")
	if len(other) != 1 {
		t.Fatalf("expected other owner's task untouched, got %+v", other)
	}
}

func TestMemoryRepository_UpdateTask(t *testing.T) {
	repo := NewMemoryRepository()
	seedBoard(t, repo)
	ctx := context.Background()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := repo.UpdateTask(ctx, &models.Task{
		ID: "1", ColumnID: "B", Content: "edited", UpdatedBy: "owner-1", UpdatedAt: at, Rank: "z",
	})
	if err != nil {
		t.Fatalf("update task: %v", err)
	}

	tasks, _ := repo.ListTasks(ctx, "owner-1")
	last := tasks[len(tasks)-1]
	if last.ID != "1" || last.ColumnID != "B" || last.Content != "edited" || !last.UpdatedAt.Equal(at) {
		t.Fatalf("unexpected task after update: %+v", last)
	}
}

func TestMemoryRepository_MissingRowsAreNotErrors(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.RenameColumn(ctx, "nope", "x"); err != nil {
		t.Errorf("rename: %v", err)
	}
	if err := repo.UpdateColumnRank(ctx, "nope", "i"); err != nil {
		t.Errorf("rank: %v", err)
	}
	if err := repo.DeleteColumn(ctx, "nope"); err != nil {
		t.Errorf("delete column: %v", err)
	}
	if err := repo.UpdateTask(ctx, &models.Task{ID: "nope"}); err != nil {
		t.Errorf("update task: %v", err)
	}
	if err := repo.DeleteTask(ctx, "nope"); err != nil {
		t.Errorf("delete task: %v", err)
	}
	tasks, _ := repo.ListTasks(ctx, "")
	if len(tasks) != 0 {
		t.Errorf("update of a missing task must not create it")
	}
}

func TestMemoryRepository_CreateIsIdempotent(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	col := &models.Column{ID: "A", Title: "first", OwnerID: "o"}
	_ = repo.CreateColumn(ctx, col)
	_ = repo.CreateColumn(ctx, &models.Column{ID: "A", Title: "second", OwnerID: "o"})

	columns, _ := repo.ListColumns(ctx, "o")
	if len(columns) != 1 || columns[0].Title != "first" {
		t.Fatalf("expected first write to win, got %+v", columns)
	}
}

package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kandev/taskboard/internal/board/models"
)

// MemoryRepository keeps boards in process memory.
type MemoryRepository struct {
	columns map[string]*models.Column
	tasks   map[string]*models.Task
	mu      sync.RWMutex
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		columns: make(map[string]*models.Column),
		tasks:   make(map[string]*models.Task),
	}
}

// Close is a no-op for the in-memory repository.
func (r *MemoryRepository) Close() error {
	return nil
}

func (r *MemoryRepository) ListColumns(ctx context.Context, ownerID string) ([]*models.Column, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Column
	for _, c := range r.columns {
		if c.OwnerID == ownerID {
			result = append(result, c.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Rank != result[j].Rank {
			return result[i].Rank < result[j].Rank
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *MemoryRepository) ListTasks(ctx context.Context, ownerID string) ([]*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.Task
	for _, t := range r.tasks {
		if t.OwnerID == ownerID {
			result = append(result, t.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Rank != result[j].Rank {
			return result[i].Rank < result[j].Rank
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *MemoryRepository) CreateColumn(ctx context.Context, column *models.Column) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.columns[column.ID]; exists {
		return nil
	}
	r.columns[column.ID] = column.Clone()
	return nil
}

func (r *MemoryRepository) RenameColumn(ctx context.Context, id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.columns[id]; ok {
		c.Title = title
	}
	return nil
}

func (r *MemoryRepository) UpdateColumnRank(ctx context.Context, id, rank string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.columns[id]; ok {
		c.Rank = rank
	}
	return nil
}

func (r *MemoryRepository) DeleteColumn(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.columns, id)
	for taskID, t := range r.tasks {
		if t.ColumnID == id {
			delete(r.tasks, taskID)
		}
	}
	return nil
}

func (r *MemoryRepository) CreateTask(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[task.ID]; exists {
		return nil
	}
	cp := task.Clone()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = cp.CreatedAt
	}
	r.tasks[cp.ID] = cp
	return nil
}

func (r *MemoryRepository) UpdateTask(ctx context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tasks[task.ID]
	if !ok {
		return nil
	}
	existing.Content = task.Content
	existing.ColumnID = task.ColumnID
	existing.UpdatedBy = task.UpdatedBy
	existing.UpdatedAt = task.UpdatedAt
	existing.Rank = task.Rank
	return nil
}

func (r *MemoryRepository) DeleteTask(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tasks, id)
	return nil
}

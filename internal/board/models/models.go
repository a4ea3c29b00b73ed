package models

import "time"

// Column is a named, ordered container of tasks owned by one user.
type Column struct {
	ID      string `json:"id" db:"id"`
	Title   string `json:"title" db:"title"`
	OwnerID string `json:"owner_id" db:"owner_id"`
	// Rank orders columns within the owner's board.
	Rank string `json:"rank" db:"sort_rank"`
}

// Task is a card with free-text content. ColumnID is its membership and is
// rewritten by drag gestures.
type Task struct {
	ID       string `json:"id" db:"id"`
	ColumnID string `json:"column_id" db:"column_id"`
	Content  string `json:"content" db:"content"`
	// OwnerID identifies the owner of the board the task lives on.
	OwnerID string `json:"owner_id" db:"owner_id"`
	// UpdatedBy is the identity of the last writer.
	UpdatedBy string    `json:"updated_by" db:"updated_by"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	// Rank orders tasks in the board-wide task sequence.
	Rank string `json:"rank" db:"sort_rank"`
}

// Clone returns a copy safe to hand out of the store.
func (c *Column) Clone() *Column {
	cp := *c
	return &cp
}

// Clone returns a copy safe to hand out of the store.
func (t *Task) Clone() *Task {
	cp := *t
	return &cp
}

// ColumnView is a column together with its member tasks in rank order.
type ColumnView struct {
	Column
	Tasks []*Task `json:"tasks"`
}

// Board is a point-in-time snapshot of one owner's board.
type Board struct {
	OwnerID string        `json:"owner_id"`
	Columns []*ColumnView `json:"columns"`
}

// TaskCount returns the number of tasks across all columns.
func (b *Board) TaskCount() int {
	n := 0
	for _, c := range b.Columns {
		n += len(c.Tasks)
	}
	return n
}

// ColumnIDs returns column ids in board order.
func (b *Board) ColumnIDs() []string {
	ids := make([]string, 0, len(b.Columns))
	for _, c := range b.Columns {
		ids = append(ids, c.ID)
	}
	return ids
}

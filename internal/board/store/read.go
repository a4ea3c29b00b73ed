package store

import (
	"github.com/google/uuid"

	"github.com/kandev/taskboard/internal/board/models"
)

// Snapshot returns a deep copy of the board in rank order.
func (s *Store) Snapshot() models.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()

	board := models.Board{
		OwnerID: s.sess.OwnerID,
		Columns: make([]*models.ColumnView, 0, len(s.columns)),
	}
	byColumn := make(map[string]*models.ColumnView, len(s.columns))
	for _, c := range s.columns {
		view := &models.ColumnView{Column: *c, Tasks: []*models.Task{}}
		board.Columns = append(board.Columns, view)
		byColumn[c.ID] = view
	}
	for _, t := range s.tasks {
		if view, ok := byColumn[t.ColumnID]; ok {
			view.Tasks = append(view.Tasks, t.Clone())
		}
	}
	return board
}

// Columns returns the columns in rank order.
func (s *Store) Columns() []models.Column {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Column, 0, len(s.columns))
	for _, c := range s.columns {
		out = append(out, *c)
	}
	return out
}

// Tasks returns the board-wide task sequence.
func (s *Store) Tasks() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out
}

// TasksIn returns the tasks of one column in rank order.
func (s *Store) TasksIn(columnID string) []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Task
	for _, t := range s.tasks {
		if t.ColumnID == columnID {
			out = append(out, *t)
		}
	}
	return out
}

func (s *Store) Column(id string) (models.Column, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c := s.columnLocked(id); c != nil {
		return *c, true
	}
	return models.Column{}, false
}

func (s *Store) Task(id string) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t := s.taskLocked(id); t != nil {
		return *t, true
	}
	return models.Task{}, false
}

func (s *Store) columnIndexLocked(id string) int {
	for i, c := range s.columns {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) columnLocked(id string) *models.Column {
	if i := s.columnIndexLocked(id); i >= 0 {
		return s.columns[i]
	}
	return nil
}

func (s *Store) taskIndexLocked(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) taskLocked(id string) *models.Task {
	if i := s.taskIndexLocked(id); i >= 0 {
		return s.tasks[i]
	}
	return nil
}

func newID() string {
	return uuid.New().String()
}

package store

import (
	"fmt"

	"github.com/kandev/taskboard/internal/board/rank"
	"github.com/kandev/taskboard/internal/board/writequeue"
)

// The primitives below back drag gestures. Task moves only touch memory and
// mark the task dirty; FlushTask hands dirty tasks to the queue when the
// gesture ends. Column swaps are persisted immediately.

// MoveTaskOver removes the active task from the task sequence and reinserts
// it at the position of the over task. The active task adopts the over
// task's column. It reports whether anything changed.
func (s *Store) MoveTaskOver(activeID, overID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.taskIndexLocked(activeID)
	if from < 0 {
		return false, fmt.Errorf("task %s: %w", activeID, ErrNotFound)
	}
	to := s.taskIndexLocked(overID)
	if to < 0 {
		return false, fmt.Errorf("task %s: %w", overID, ErrNotFound)
	}
	if from == to {
		return false, nil
	}

	active := s.tasks[from]
	over := s.tasks[to]

	s.tasks = append(s.tasks[:from], s.tasks[from+1:]...)
	s.tasks = append(s.tasks, nil)
	copy(s.tasks[to+1:], s.tasks[to:])
	s.tasks[to] = active

	if active.ColumnID != over.ColumnID {
		active.ColumnID = over.ColumnID
	}

	lo, hi := "", ""
	if to > 0 {
		lo = s.tasks[to-1].Rank
	}
	if to+1 < len(s.tasks) {
		hi = s.tasks[to+1].Rank
	}
	key, err := rank.Between(lo, hi)
	if err != nil || rank.TooLong(key) {
		s.rebalanceTasksLocked()
	} else {
		active.Rank = key
	}
	s.dirty[active.ID] = struct{}{}
	return true, nil
}

// MoveTaskToColumn sets a task's column without touching its rank.
func (s *Store) MoveTaskToColumn(taskID, columnID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.taskLocked(taskID)
	if t == nil {
		return false, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if s.columnLocked(columnID) == nil {
		return false, fmt.Errorf("column %s: %w", columnID, ErrNotFound)
	}
	if t.ColumnID == columnID {
		return false, nil
	}
	t.ColumnID = columnID
	s.dirty[t.ID] = struct{}{}
	return true, nil
}

// SwapTasks exchanges the positions of two tasks in the task sequence.
func (s *Store) SwapTasks(aID, bID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.taskIndexLocked(aID)
	if i < 0 {
		return false, fmt.Errorf("task %s: %w", aID, ErrNotFound)
	}
	j := s.taskIndexLocked(bID)
	if j < 0 {
		return false, fmt.Errorf("task %s: %w", bID, ErrNotFound)
	}
	if i == j {
		return false, nil
	}
	a, b := s.tasks[i], s.tasks[j]
	if a.Rank == b.Rank {
		s.rebalanceTasksLocked()
	}
	a.Rank, b.Rank = b.Rank, a.Rank
	s.tasks[i], s.tasks[j] = b, a
	s.dirty[a.ID] = struct{}{}
	s.dirty[b.ID] = struct{}{}
	return true, nil
}

// SwapColumns exchanges the positions of two columns and persists both ranks.
func (s *Store) SwapColumns(aID, bID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.columnIndexLocked(aID)
	if i < 0 {
		return false, fmt.Errorf("column %s: %w", aID, ErrNotFound)
	}
	j := s.columnIndexLocked(bID)
	if j < 0 {
		return false, fmt.Errorf("column %s: %w", bID, ErrNotFound)
	}
	if i == j {
		return false, nil
	}
	a, b := s.columns[i], s.columns[j]
	if a.Rank == b.Rank {
		s.rebalanceColumnsLocked()
	}
	a.Rank, b.Rank = b.Rank, a.Rank
	s.columns[i], s.columns[j] = b, a
	s.queue.Enqueue(writequeue.RankColumn(a.ID, a.Rank))
	s.queue.Enqueue(writequeue.RankColumn(b.ID, b.Rank))
	return true, nil
}

// FlushTask stamps a task with the session owner and the current time and
// hands it, with every other dirty task, to the write queue. The task is
// flushed even when nothing about it changed.
func (s *Store) FlushTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.taskLocked(id)
	if t == nil {
		s.flushDirtyLocked()
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	s.stampLocked(t)
	s.dirty[t.ID] = struct{}{}
	s.flushDirtyLocked()
	return nil
}

// Dirty reports whether a task has drag changes not yet handed to the queue.
func (s *Store) Dirty(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dirty[id]
	return ok
}

// compile-time check that the queue satisfies IntentQueue.
var _ IntentQueue = (*writequeue.Queue)(nil)

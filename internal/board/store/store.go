// Package store holds the in-memory board of one session's owner. Every
// mutation is applied synchronously in memory and then handed to the write
// queue as an intent.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kandev/taskboard/internal/board/models"
	"github.com/kandev/taskboard/internal/board/rank"
	"github.com/kandev/taskboard/internal/board/repository"
	"github.com/kandev/taskboard/internal/board/writequeue"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/session"
)

// ErrNotFound is returned when an operation names a column or task that is
// not on the board.
var ErrNotFound = errors.New("not found")

// IntentQueue is the subset of the write queue the store drives.
type IntentQueue interface {
	Enqueue(in writequeue.Intent)
	Discard() int
	WaitIdle(ctx context.Context) error
	Retry() bool
	State() writequeue.State
}

// SyncStatus is the persistence state of the board.
type SyncStatus = writequeue.State

// Store is safe for concurrent use.
type Store struct {
	sess   *session.Session
	repo   repository.Repository
	queue  IntentQueue
	logger *logger.Logger
	now    func() time.Time

	mu      sync.RWMutex
	columns []*models.Column
	// tasks is the board-wide task sequence in rank order.
	tasks []*models.Task
	// dirty holds tasks changed by a drag and not yet handed to the queue.
	dirty map[string]struct{}
}

// New creates an empty store for sess. Call Load to populate it.
func New(sess *session.Session, repo repository.Repository, queue IntentQueue, log *logger.Logger) *Store {
	return &Store{
		sess:   sess,
		repo:   repo,
		queue:  queue,
		logger: log.WithSession(sess.ID, sess.OwnerID),
		now:    func() time.Time { return time.Now().UTC() },
		dirty:  make(map[string]struct{}),
	}
}

// Session returns the session the store was built for.
func (s *Store) Session() *session.Session {
	return s.sess
}

// Load replaces the snapshot with the owner's board from the repository.
func (s *Store) Load(ctx context.Context) error {
	var (
		columns []*models.Column
		tasks   []*models.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		columns, err = s.repo.ListColumns(gctx, s.sess.OwnerID)
		if err != nil {
			return fmt.Errorf("list columns: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		tasks, err = s.repo.ListTasks(gctx, s.sess.OwnerID)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.columns = columns
	sortColumns(s.columns)

	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		known[c.ID] = struct{}{}
	}
	s.tasks = s.tasks[:0:0]
	for _, t := range tasks {
		if _, ok := known[t.ColumnID]; !ok {
			s.logger.Warn("dropping task of unknown column",
				zap.String("task_id", t.ID),
				zap.String("column_id", t.ColumnID))
			s.queue.Enqueue(writequeue.DeleteTask(t.ID))
			continue
		}
		s.tasks = append(s.tasks, t)
	}
	sortTasks(s.tasks)
	s.dirty = make(map[string]struct{})

	if !allRanked(s.columns, func(c *models.Column) string { return c.Rank }) {
		s.rebalanceColumnsLocked()
	}
	if !allRanked(s.tasks, func(t *models.Task) string { return t.Rank }) {
		s.rebalanceTasksLocked()
		s.flushDirtyLocked()
	}

	s.logger.Debug("board loaded",
		zap.Int("columns", len(s.columns)),
		zap.Int("tasks", len(s.tasks)))
	return nil
}

// CreateColumn appends a column after the last one. An empty title becomes
// "Column N" where N is the column count after the insert.
func (s *Store) CreateColumn(title string) (models.Column, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if title == "" {
		title = fmt.Sprintf("Column %d", len(s.columns)+1)
	}
	col := &models.Column{
		ID:      newID(),
		Title:   title,
		OwnerID: s.sess.OwnerID,
		Rank:    s.appendColumnRankLocked(),
	}
	s.columns = append(s.columns, col)
	s.queue.Enqueue(writequeue.CreateColumn(col))
	return *col, nil
}

// RenameColumn sets a column's title. An unknown id changes nothing in
// memory but the rename is still sent to the repository.
func (s *Store) RenameColumn(id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c := s.columnLocked(id); c != nil {
		c.Title = title
	}
	s.queue.Enqueue(writequeue.RenameColumn(id, title))
	return nil
}

// DeleteColumn removes a column together with its tasks and returns the ids
// of the removed tasks. The repository deletes the column's tasks as well.
func (s *Store) DeleteColumn(id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.columnIndexLocked(id)
	if idx < 0 {
		return nil, fmt.Errorf("column %s: %w", id, ErrNotFound)
	}
	s.columns = append(s.columns[:idx], s.columns[idx+1:]...)

	var removed []string
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if t.ColumnID == id {
			removed = append(removed, t.ID)
			delete(s.dirty, t.ID)
			continue
		}
		kept = append(kept, t)
	}
	for i := len(kept); i < len(s.tasks); i++ {
		s.tasks[i] = nil
	}
	s.tasks = kept

	s.queue.Enqueue(writequeue.DeleteColumn(id))
	return removed, nil
}

// CreateTask appends a task at the end of the task sequence. Empty content
// becomes "Task N" where N is the task count after the insert.
func (s *Store) CreateTask(columnID, content string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.columnLocked(columnID) == nil {
		return models.Task{}, fmt.Errorf("column %s: %w", columnID, ErrNotFound)
	}
	if content == "" {
		content = fmt.Sprintf("Task %d", len(s.tasks)+1)
	}
	now := s.now()
	task := &models.Task{
		ID:        newID(),
		ColumnID:  columnID,
		Content:   content,
		OwnerID:   s.sess.OwnerID,
		UpdatedBy: s.sess.OwnerID,
		CreatedAt: now,
		UpdatedAt: now,
		Rank:      s.appendTaskRankLocked(),
	}
	s.tasks = append(s.tasks, task)
	s.queue.Enqueue(writequeue.CreateTask(task))
	return *task, nil
}

// UpdateTask sets a task's content and column. An empty columnID keeps the
// current column. An unknown task id is a no-op.
func (s *Store) UpdateTask(id, content, columnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if columnID != "" && s.columnLocked(columnID) == nil {
		return fmt.Errorf("column %s: %w", columnID, ErrNotFound)
	}
	t := s.taskLocked(id)
	if t == nil {
		return nil
	}
	t.Content = content
	if columnID != "" {
		t.ColumnID = columnID
	}
	s.stampLocked(t)
	delete(s.dirty, id)
	s.queue.Enqueue(writequeue.UpdateTask(t))
	return nil
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.taskIndexLocked(id); idx >= 0 {
		s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
		delete(s.dirty, id)
	}
	s.queue.Enqueue(writequeue.DeleteTask(id))
	return nil
}

// Status reports whether the board is persisted.
func (s *Store) Status() SyncStatus {
	return s.queue.State()
}

// Retry resumes a failed write queue. It reports false when the queue was
// not failed.
func (s *Store) Retry() bool {
	return s.queue.Retry()
}

// Reconcile drops pending writes and reloads the board from the repository.
func (s *Store) Reconcile(ctx context.Context) error {
	dropped := s.queue.Discard()
	if dropped > 0 {
		s.logger.Warn("discarding unsynced writes", zap.Int("intents", dropped))
	}
	// A write that was already running may still land; read after it.
	if err := s.queue.WaitIdle(ctx); err != nil {
		return fmt.Errorf("reconcile board: %w", err)
	}
	if err := s.Load(ctx); err != nil {
		return fmt.Errorf("reconcile board: %w", err)
	}
	return nil
}

func (s *Store) stampLocked(t *models.Task) {
	t.UpdatedAt = s.now()
	t.UpdatedBy = s.sess.OwnerID
}

func (s *Store) appendColumnRankLocked() string {
	last := ""
	if n := len(s.columns); n > 0 {
		last = s.columns[n-1].Rank
	}
	key, err := rank.After(last)
	if err != nil || rank.TooLong(key) {
		s.rebalanceColumnsLocked()
		key, _ = rank.After(s.columns[len(s.columns)-1].Rank)
	}
	return key
}

func (s *Store) appendTaskRankLocked() string {
	last := ""
	if n := len(s.tasks); n > 0 {
		last = s.tasks[n-1].Rank
	}
	key, err := rank.After(last)
	if err != nil || rank.TooLong(key) {
		s.rebalanceTasksLocked()
		s.flushDirtyLocked()
		key, _ = rank.After(s.tasks[len(s.tasks)-1].Rank)
	}
	return key
}

// rebalanceColumnsLocked respaces every column rank in the current order and
// persists the ones that changed.
func (s *Store) rebalanceColumnsLocked() {
	keys := rank.Initial(len(s.columns))
	changed := 0
	for i, c := range s.columns {
		if c.Rank == keys[i] {
			continue
		}
		c.Rank = keys[i]
		s.queue.Enqueue(writequeue.RankColumn(c.ID, c.Rank))
		changed++
	}
	s.logger.Info("rebalanced column ranks", zap.Int("changed", changed))
}

// rebalanceTasksLocked respaces every task rank in the current order and marks
// the changed tasks dirty.
func (s *Store) rebalanceTasksLocked() {
	keys := rank.Initial(len(s.tasks))
	changed := 0
	for i, t := range s.tasks {
		if t.Rank == keys[i] {
			continue
		}
		t.Rank = keys[i]
		s.dirty[t.ID] = struct{}{}
		changed++
	}
	s.logger.Info("rebalanced task ranks", zap.Int("changed", changed))
}

// flushDirtyLocked hands every dirty task to the queue in sequence order.
func (s *Store) flushDirtyLocked() {
	if len(s.dirty) == 0 {
		return
	}
	for _, t := range s.tasks {
		if _, ok := s.dirty[t.ID]; ok {
			s.queue.Enqueue(writequeue.UpdateTask(t))
		}
	}
	s.dirty = make(map[string]struct{})
}

func allRanked[T any](items []T, key func(T) string) bool {
	for _, it := range items {
		if !rank.Valid(key(it)) {
			return false
		}
	}
	return true
}

func sortColumns(cs []*models.Column) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Rank != cs[j].Rank {
			return cs[i].Rank < cs[j].Rank
		}
		return cs[i].ID < cs[j].ID
	})
}

func sortTasks(ts []*models.Task) {
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].Rank != ts[j].Rank {
			return ts[i].Rank < ts[j].Rank
		}
		return ts[i].ID < ts[j].ID
	})
}

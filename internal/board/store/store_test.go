package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/taskboard/internal/board/models"
	"github.com/kandev/taskboard/internal/board/repository"
	"github.com/kandev/taskboard/internal/board/writequeue"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/session"
)

// recordingQueue collects intents instead of persisting them.
type recordingQueue struct {
	mu      sync.Mutex
	intents []writequeue.Intent
	state   writequeue.State
	retried bool
	// inFlight runs inside WaitIdle, standing in for a write that lands
	// after Discard.
	inFlight func()
}

func (q *recordingQueue) Enqueue(in writequeue.Intent) {
	q.mu.Lock()
	q.intents = append(q.intents, in)
	q.mu.Unlock()
}

func (q *recordingQueue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.intents)
	q.intents = nil
	q.state = writequeue.State{Status: writequeue.StatusSynced}
	return n
}

func (q *recordingQueue) WaitIdle(ctx context.Context) error {
	if q.inFlight != nil {
		q.inFlight()
	}
	return ctx.Err()
}

func (q *recordingQueue) Retry() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retried = q.state.Status == writequeue.StatusFailed
	return q.retried
}

func (q *recordingQueue) State() writequeue.State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

func (q *recordingQueue) kinds() []writequeue.Kind {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]writequeue.Kind, 0, len(q.intents))
	for _, in := range q.intents {
		out = append(out, in.Kind)
	}
	return out
}

func (q *recordingQueue) reset() {
	q.mu.Lock()
	q.intents = nil
	q.mu.Unlock()
}

func (q *recordingQueue) last() writequeue.Intent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.intents[len(q.intents)-1]
}

func testSession() *session.Session {
	return &session.Session{ID: "session-1", OwnerID: "owner-1", Email: "ada@example.com"}
}

// seedRepo creates columns A and B with task 1 in A and task 2 in B.
func seedRepo(t *testing.T) *repository.MemoryRepository {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	require.NoError(t, repo.CreateColumn(ctx, &models.Column{ID: "A", Title: "Todo", OwnerID: "owner-1", Rank: "i"}))
	require.NoError(t, repo.CreateColumn(ctx, &models.Column{ID: "B", Title: "Done", OwnerID: "owner-1", Rank: "r"}))
	require.NoError(t, repo.CreateTask(ctx, &models.Task{ID: "1", ColumnID: "A", Content: "one", OwnerID: "owner-1", Rank: "i"}))
	require.NoError(t, repo.CreateTask(ctx, &models.Task{ID: "2", ColumnID: "B", Content: "two", OwnerID: "owner-1", Rank: "r"}))
	return repo
}

func newLoadedStore(t *testing.T, repo repository.Repository) (*Store, *recordingQueue) {
	t.Helper()
	q := &recordingQueue{state: writequeue.State{Status: writequeue.StatusSynced}}
	s := New(testSession(), repo, q, logger.NewNop())
	require.NoError(t, s.Load(context.Background()))
	q.reset()
	return s, q
}

func columnIDs(s *Store) []string {
	var ids []string
	for _, c := range s.Columns() {
		ids = append(ids, c.ID)
	}
	return ids
}

func taskIDs(s *Store) []string {
	var ids []string
	for _, t := range s.Tasks() {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestLoad_OrdersByRank(t *testing.T) {
	s, _ := newLoadedStore(t, seedRepo(t))

	assert.Equal(t, []string{"A", "B"}, columnIDs(s))
	assert.Equal(t, []string{"1", "2"}, taskIDs(s))

	board := s.Snapshot()
	require.Len(t, board.Columns, 2)
	assert.Equal(t, "owner-1", board.OwnerID)
	assert.Equal(t, 2, board.TaskCount())
	assert.Equal(t, "1", board.Columns[0].Tasks[0].ID)
}

func TestLoad_DropsTasksOfMissingColumns(t *testing.T) {
	repo := seedRepo(t)
	require.NoError(t, repo.CreateTask(context.Background(),
		&models.Task{ID: "orphan", ColumnID: "gone", OwnerID: "owner-1", Rank: "z"}))

	q := &recordingQueue{}
	s := New(testSession(), repo, q, logger.NewNop())
	require.NoError(t, s.Load(context.Background()))

	assert.Equal(t, []string{"1", "2"}, taskIDs(s))
	require.Len(t, q.intents, 1)
	assert.Equal(t, writequeue.KindDeleteTask, q.intents[0].Kind)
	assert.Equal(t, "orphan", q.intents[0].EntityID)
}

func TestLoad_AssignsMissingRanks(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	require.NoError(t, repo.CreateColumn(ctx, &models.Column{ID: "A", OwnerID: "owner-1"}))
	require.NoError(t, repo.CreateColumn(ctx, &models.Column{ID: "B", OwnerID: "owner-1"}))
	require.NoError(t, repo.CreateTask(ctx, &models.Task{ID: "1", ColumnID: "A", OwnerID: "owner-1"}))

	q := &recordingQueue{}
	s := New(testSession(), repo, q, logger.NewNop())
	require.NoError(t, s.Load(ctx))

	cols := s.Columns()
	require.Len(t, cols, 2)
	assert.NotEmpty(t, cols[0].Rank)
	assert.Less(t, cols[0].Rank, cols[1].Rank)
	task, ok := s.Task("1")
	require.True(t, ok)
	assert.NotEmpty(t, task.Rank)

	assert.Equal(t, []writequeue.Kind{
		writequeue.KindRankColumn,
		writequeue.KindRankColumn,
		writequeue.KindUpdateTask,
	}, q.kinds())
}

func TestCreateColumn_DefaultTitleAndOrder(t *testing.T) {
	s, q := newLoadedStore(t, seedRepo(t))

	col, err := s.CreateColumn("")
	require.NoError(t, err)
	assert.Equal(t, "Column 3", col.Title)
	assert.Equal(t, "owner-1", col.OwnerID)
	assert.Equal(t, []string{"A", "B", col.ID}, columnIDs(s))

	named, err := s.CreateColumn("Review")
	require.NoError(t, err)
	assert.Equal(t, "Review", named.Title)
	assert.Less(t, col.Rank, named.Rank)

	assert.Equal(t, []writequeue.Kind{writequeue.KindCreateColumn, writequeue.KindCreateColumn}, q.kinds())
}

func TestRenameColumn_UnknownIDStillPersists(t *testing.T) {
	s, q := newLoadedStore(t, seedRepo(t))

	require.NoError(t, s.RenameColumn("A", "Backlog"))
	col, _ := s.Column("A")
	assert.Equal(t, "Backlog", col.Title)

	require.NoError(t, s.RenameColumn("missing", "Nope"))
	assert.Equal(t, []string{"A", "B"}, columnIDs(s))
	assert.Equal(t, []writequeue.Kind{writequeue.KindRenameColumn, writequeue.KindRenameColumn}, q.kinds())
	assert.Equal(t, "missing", q.last().EntityID)
}

// Deleting a column removes exactly its own tasks.
func TestDeleteColumn_Cascades(t *testing.T) {
	s, q := newLoadedStore(t, seedRepo(t))

	removed, err := s.DeleteColumn("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, removed)
	assert.Equal(t, []string{"B"}, columnIDs(s))

	tasks := s.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "2", tasks[0].ID)
	assert.Equal(t, "B", tasks[0].ColumnID)

	assert.Equal(t, []writequeue.Kind{writequeue.KindDeleteColumn}, q.kinds())

	_, err = s.DeleteColumn("A")
	assert.ErrorIs(t, err, ErrNotFound)
}

// The cascade reaches the repository once the queue drains.
func TestDeleteColumn_CascadesInRepository(t *testing.T) {
	repo := seedRepo(t)
	sess := testSession()
	q := writequeue.New(writequeue.Config{MaxAttempts: 1}, repo, nil, sess.ID, sess.OwnerID, logger.NewNop())
	q.Start(context.Background())
	t.Cleanup(q.Stop)

	s := New(sess, repo, q, logger.NewNop())
	require.NoError(t, s.Load(context.Background()))

	_, err := s.DeleteColumn("A")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Flush(ctx))

	tasks, err := repo.ListTasks(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "2", tasks[0].ID)
}

func TestCreateTask(t *testing.T) {
	s, q := newLoadedStore(t, seedRepo(t))

	task, err := s.CreateTask("A", "")
	require.NoError(t, err)
	assert.Equal(t, "Task 3", task.Content)
	assert.Equal(t, "A", task.ColumnID)
	assert.Equal(t, "owner-1", task.OwnerID)
	assert.Equal(t, []string{"1", "2", task.ID}, taskIDs(s))

	inA := s.TasksIn("A")
	require.Len(t, inA, 2)
	assert.Equal(t, task.ID, inA[1].ID)

	_, err = s.CreateTask("missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []writequeue.Kind{writequeue.KindCreateTask}, q.kinds())
}

func TestUpdateTask(t *testing.T) {
	s, q := newLoadedStore(t, seedRepo(t))
	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return stamp }

	require.NoError(t, s.UpdateTask("1", "edited", "B"))
	task, _ := s.Task("1")
	assert.Equal(t, "edited", task.Content)
	assert.Equal(t, "B", task.ColumnID)
	assert.Equal(t, stamp, task.UpdatedAt)
	assert.Equal(t, "owner-1", task.UpdatedBy)

	in := q.last()
	assert.Equal(t, writequeue.KindUpdateTask, in.Kind)
	assert.Equal(t, "edited", in.Task.Content)

	assert.ErrorIs(t, s.UpdateTask("1", "x", "missing"), ErrNotFound)
	require.NoError(t, s.UpdateTask("missing", "x", "A"))
	assert.Len(t, q.kinds(), 1)
}

func TestDeleteTask(t *testing.T) {
	s, q := newLoadedStore(t, seedRepo(t))

	require.NoError(t, s.DeleteTask("1"))
	assert.Equal(t, []string{"2"}, taskIDs(s))
	assert.Equal(t, []writequeue.Kind{writequeue.KindDeleteTask}, q.kinds())
}

func TestSnapshotIsACopy(t *testing.T) {
	s, _ := newLoadedStore(t, seedRepo(t))

	board := s.Snapshot()
	board.Columns[0].Tasks[0].Content = "mutated"
	board.Columns[0].Title = "mutated"

	task, _ := s.Task("1")
	col, _ := s.Column("A")
	assert.Equal(t, "one", task.Content)
	assert.Equal(t, "Todo", col.Title)
}

func TestReconcile_ReplacesSnapshot(t *testing.T) {
	repo := seedRepo(t)
	s, q := newLoadedStore(t, repo)

	_, err := s.CreateTask("A", "local only")
	require.NoError(t, err)
	q.state = writequeue.State{Status: writequeue.StatusFailed, Pending: 1}

	require.NoError(t, s.Reconcile(context.Background()))
	assert.Equal(t, []string{"1", "2"}, taskIDs(s))
	assert.Empty(t, q.kinds())
	assert.Equal(t, writequeue.StatusSynced, s.Status().Status)
}

func TestReconcile_ReadsAfterWriteInFlight(t *testing.T) {
	repo := seedRepo(t)
	s, q := newLoadedStore(t, repo)

	created, err := s.CreateTask("A", "racing")
	require.NoError(t, err)
	q.inFlight = func() {
		task := created
		require.NoError(t, repo.CreateTask(context.Background(), &task))
	}

	require.NoError(t, s.Reconcile(context.Background()))
	_, ok := s.Task(created.ID)
	assert.True(t, ok)
}

func TestReconcile_StopsWhenWaitIsCancelled(t *testing.T) {
	s, _ := newLoadedStore(t, seedRepo(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Reconcile(ctx), context.Canceled)
}

func TestRetry_DelegatesToQueue(t *testing.T) {
	s, q := newLoadedStore(t, seedRepo(t))
	assert.False(t, s.Retry())

	q.state = writequeue.State{Status: writequeue.StatusFailed}
	assert.True(t, s.Retry())
}

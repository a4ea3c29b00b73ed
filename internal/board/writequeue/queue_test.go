package writequeue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kandev/taskboard/internal/board/models"
	"github.com/kandev/taskboard/internal/board/repository"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/events"
	"github.com/kandev/taskboard/internal/events/bus"
)

var errStoreDown = errors.New("store unavailable")

// flakyRepo fails the next `failures` writes and records the order of
// successful calls.
type flakyRepo struct {
	*repository.MemoryRepository
	mu       sync.Mutex
	failures int
	calls    []string
}

func newFlakyRepo(failures int) *flakyRepo {
	return &flakyRepo{MemoryRepository: repository.NewMemoryRepository(), failures: failures}
}

func (r *flakyRepo) setFailures(n int) {
	r.mu.Lock()
	r.failures = n
	r.mu.Unlock()
}

func (r *flakyRepo) gate(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures != 0 {
		if r.failures > 0 {
			r.failures--
		}
		return errStoreDown
	}
	r.calls = append(r.calls, call)
	return nil
}

func (r *flakyRepo) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *flakyRepo) CreateColumn(ctx context.Context, c *models.Column) error {
	if err := r.gate("create_column:" + c.ID); err != nil {
		return err
	}
	return r.MemoryRepository.CreateColumn(ctx, c)
}

func (r *flakyRepo) CreateTask(ctx context.Context, t *models.Task) error {
	if err := r.gate("create_task:" + t.ID); err != nil {
		return err
	}
	return r.MemoryRepository.CreateTask(ctx, t)
}

func (r *flakyRepo) RenameColumn(ctx context.Context, id, title string) error {
	if err := r.gate("rename_column:" + id); err != nil {
		return err
	}
	return r.MemoryRepository.RenameColumn(ctx, id, title)
}

func testQueue(t *testing.T, repo repository.Repository, eventBus bus.EventBus, attempts int) *Queue {
	t.Helper()
	q := New(Config{MaxAttempts: attempts, RetryInitial: time.Millisecond, RetryMax: 4 * time.Millisecond},
		repo, eventBus, "session-1", "owner-1", logger.NewNop())
	q.Start(context.Background())
	t.Cleanup(q.Stop)
	return q
}

func flush(t *testing.T, q *Queue) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return q.Flush(ctx)
}

func TestQueue_PersistsInOrder(t *testing.T) {
	repo := newFlakyRepo(0)
	q := testQueue(t, repo, nil, 3)

	q.Enqueue(CreateColumn(&models.Column{ID: "A", OwnerID: "owner-1", Rank: "i"}))
	q.Enqueue(CreateTask(&models.Task{ID: "1", ColumnID: "A", OwnerID: "owner-1", Rank: "i"}))
	q.Enqueue(RenameColumn("A", "Todo"))

	require.NoError(t, flush(t, q))
	assert.Equal(t, []string{"create_column:A", "create_task:1", "rename_column:A"}, repo.recorded())
	assert.Equal(t, StatusSynced, q.State().Status)

	columns, err := repo.ListColumns(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, columns, 1)
	assert.Equal(t, "Todo", columns[0].Title)
}

func TestQueue_RetriesTransientFailures(t *testing.T) {
	repo := newFlakyRepo(2)
	q := testQueue(t, repo, nil, 3)

	q.Enqueue(CreateColumn(&models.Column{ID: "A", OwnerID: "owner-1"}))

	require.NoError(t, flush(t, q))
	assert.Equal(t, []string{"create_column:A"}, repo.recorded())
}

func TestQueue_ParksAfterMaxAttemptsAndRecovers(t *testing.T) {
	repo := newFlakyRepo(-1)
	eventBus := bus.NewMemoryEventBus(logger.NewNop())
	defer eventBus.Close()

	received := make(chan *bus.Event, 4)
	_, err := eventBus.Subscribe(events.SessionWildcard("session-1"), func(ctx context.Context, e *bus.Event) error {
		received <- e
		return nil
	})
	require.NoError(t, err)

	q := testQueue(t, repo, eventBus, 2)
	q.Enqueue(CreateColumn(&models.Column{ID: "A", OwnerID: "owner-1"}))
	q.Enqueue(CreateTask(&models.Task{ID: "1", ColumnID: "A", OwnerID: "owner-1"}))

	err = flush(t, q)
	require.ErrorIs(t, err, ErrFailed)

	st := q.State()
	assert.Equal(t, StatusFailed, st.Status)
	assert.Equal(t, 2, st.Pending)
	assert.Equal(t, KindCreateColumn, st.FailedKind)
	assert.Contains(t, st.LastError, errStoreDown.Error())

	select {
	case e := <-received:
		assert.Equal(t, events.BoardSyncFailed, e.Type)
		assert.Equal(t, "session-1", e.SessionID)
		assert.Equal(t, "owner-1", e.OwnerID)
	case <-time.After(time.Second):
		t.Fatal("expected a sync failed event")
	}

	// Later intents wait behind the failed one.
	q.Enqueue(RenameColumn("A", "Todo"))
	assert.Equal(t, 3, q.State().Pending)

	repo.setFailures(0)
	require.True(t, q.Retry())
	require.NoError(t, flush(t, q))
	assert.Equal(t, []string{"create_column:A", "create_task:1", "rename_column:A"}, repo.recorded())

	select {
	case e := <-received:
		assert.Equal(t, events.BoardSyncRecovered, e.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a sync recovered event")
	}
}

func TestQueue_RetryWhenNotFailedIsNoop(t *testing.T) {
	q := testQueue(t, newFlakyRepo(0), nil, 1)
	assert.False(t, q.Retry())
}

func TestQueue_DiscardClearsFailure(t *testing.T) {
	repo := newFlakyRepo(-1)
	q := testQueue(t, repo, nil, 1)

	q.Enqueue(CreateColumn(&models.Column{ID: "A", OwnerID: "owner-1"}))
	require.ErrorIs(t, flush(t, q), ErrFailed)

	assert.Equal(t, 1, q.Discard())
	st := q.State()
	assert.Equal(t, StatusSynced, st.Status)
	assert.Empty(t, st.LastError)
	require.NoError(t, flush(t, q))
}

// blockingRepo holds every CreateTask until release is closed.
type blockingRepo struct {
	*repository.MemoryRepository
	started chan struct{}
	release chan struct{}
}

func (r *blockingRepo) CreateTask(ctx context.Context, t *models.Task) error {
	close(r.started)
	<-r.release
	return r.MemoryRepository.CreateTask(ctx, t)
}

func TestQueue_WaitIdleWaitsForWriteInFlight(t *testing.T) {
	repo := &blockingRepo{
		MemoryRepository: repository.NewMemoryRepository(),
		started:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	require.NoError(t, repo.CreateColumn(context.Background(), &models.Column{ID: "A", OwnerID: "owner-1"}))
	q := testQueue(t, repo, nil, 1)

	q.Enqueue(CreateTask(&models.Task{ID: "1", ColumnID: "A", OwnerID: "owner-1"}))
	<-repo.started
	assert.Equal(t, 1, q.Discard())

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.WaitIdle(short), context.DeadlineExceeded)

	close(repo.release)
	ctx, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	require.NoError(t, q.WaitIdle(ctx))

	tasks, err := repo.ListTasks(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, StatusSynced, q.State().Status)
}

func TestQueue_WaitIdleWithNothingRunning(t *testing.T) {
	q := testQueue(t, newFlakyRepo(0), nil, 1)
	require.NoError(t, q.WaitIdle(context.Background()))
}

func TestQueue_IntentCopiesArePinned(t *testing.T) {
	repo := newFlakyRepo(0)
	q := New(Config{MaxAttempts: 1}, repo, nil, "s", "owner-1", logger.NewNop())

	task := &models.Task{ID: "1", ColumnID: "A", Content: "before", OwnerID: "owner-1"}
	require.NoError(t, repo.MemoryRepository.CreateColumn(context.Background(), &models.Column{ID: "A", OwnerID: "owner-1"}))
	q.Enqueue(CreateTask(task))
	task.Content = "after"

	q.Start(context.Background())
	defer q.Stop()
	require.NoError(t, flush(t, q))

	tasks, err := repo.ListTasks(context.Background(), "owner-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "before", tasks[0].Content)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, defaultMaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, defaultRetryInitial, cfg.RetryInitial)
	assert.Equal(t, defaultRetryMax, cfg.RetryMax)
}

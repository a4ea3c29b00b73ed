package service

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
	"github.com/kandev/taskboard/internal/board/writequeue"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/events"
	"github.com/kandev/taskboard/internal/events/bus"
	"github.com/kandev/taskboard/internal/session"
)

func testConfig() Config {
	return Config{
		Queue:        writequeue.Config{MaxAttempts: 2, RetryInitial: time.Millisecond, RetryMax: 2 * time.Millisecond},
		FlushTimeout: 2 * time.Second,
	}
}

func newTestService(t *testing.T, repo repository.Repository, eventBus bus.EventBus) (*Service, session.Store) {
	t.Helper()
	sessions := session.NewMemoryStore()
	svc := NewService(repo, eventBus, sessions, testConfig(), logger.NewNop())
	t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	return svc, sessions
}

func seed(t *testing.T, repo *repository.MemoryRepository, ownerID string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.CreateColumn(ctx, &models.Column{ID: ownerID + "-A", Title: "Todo", OwnerID: ownerID, Rank: "i"}))
	require.NoError(t, repo.CreateTask(ctx, &models.Task{ID: ownerID + "-1", ColumnID: ownerID + "-A", OwnerID: ownerID, Rank: "i"}))
}

func TestOpen_LoadsOwnerBoard(t *testing.T) {
	repo := repository.NewMemoryRepository()
	seed(t, repo, "owner-1")
	seed(t, repo, "owner-2")
	svc, _ := newTestService(t, repo, nil)

	sess := session.New("owner-1", "ada@example.com", time.Hour)
	ws, err := svc.Open(context.Background(), sess)
	require.NoError(t, err)

	board := ws.Store.Snapshot()
	require.Len(t, board.Columns, 1)
	assert.Equal(t, "owner-1-A", board.Columns[0].ID)
	assert.Equal(t, 1, board.TaskCount())

	again, err := svc.Open(context.Background(), sess)
	require.NoError(t, err)
	assert.Same(t, ws, again)
	assert.Equal(t, 1, svc.Len())
}

func TestGet_RebuildsFromSessionStore(t *testing.T) {
	repo := repository.NewMemoryRepository()
	seed(t, repo, "owner-1")
	svc, sessions := newTestService(t, repo, nil)
	ctx := context.Background()

	sess := session.New("owner-1", "ada@example.com", time.Hour)
	require.NoError(t, sessions.Save(ctx, sess))

	ws, err := svc.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", ws.Session.OwnerID)
	assert.Len(t, ws.Store.Columns(), 1)

	_, err = svc.Get(ctx, "unknown")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestClose_FlushesPendingWrites(t *testing.T) {
	repo := repository.NewMemoryRepository()
	seed(t, repo, "owner-1")
	svc, _ := newTestService(t, repo, nil)
	ctx := context.Background()

	sess := session.New("owner-1", "ada@example.com", time.Hour)
	ws, err := svc.Open(ctx, sess)
	require.NoError(t, err)

	col, err := ws.Store.CreateColumn("Doing")
	require.NoError(t, err)
	_, err = ws.Store.CreateTask(col.ID, "")
	require.NoError(t, err)

	require.NoError(t, svc.Close(ctx, sess.ID))
	assert.Equal(t, 0, svc.Len())

	columns, err := repo.ListColumns(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, columns, 2)
	tasks, err := repo.ListTasks(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	require.NoError(t, svc.Close(ctx, sess.ID))
}

// failingRepo rejects every write.
type failingRepo struct {
	*repository.MemoryRepository
}

func (failingRepo) CreateColumn(ctx context.Context, c *models.Column) error {
	return errors.New("database unavailable")
}

func TestWorkspace_FailureIsSurfacedAndReconciled(t *testing.T) {
	repo := failingRepo{repository.NewMemoryRepository()}
	eventBus := bus.NewMemoryEventBus(logger.NewNop())
	t.Cleanup(eventBus.Close)
	svc, _ := newTestService(t, repo, eventBus)
	ctx := context.Background()

	sess := session.New("owner-1", "ada@example.com", time.Hour)

	var (
		mu   sync.Mutex
		seen []string
	)
	_, err := eventBus.Subscribe(events.SessionWildcard(sess.ID), func(ctx context.Context, e *bus.Event) error {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	ws, err := svc.Open(ctx, sess)
	require.NoError(t, err)
	_, err = ws.Store.CreateColumn("")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return ws.Store.Status().Status == writequeue.StatusFailed
	}, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, ws.Store.Columns(), 1, "memory keeps the optimistic column")

	require.NoError(t, ws.Reconcile(ctx))
	assert.Equal(t, writequeue.StatusSynced, ws.Store.Status().Status)
	assert.Empty(t, ws.Store.Columns())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return contains(seen, events.BoardSyncFailed) && contains(seen, events.BoardReconciled)
	}, 2*time.Second, 5*time.Millisecond)
}

func TestShutdown_ClosesEverything(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc, _ := newTestService(t, repo, nil)
	ctx := context.Background()

	for _, owner := range []string{"owner-1", "owner-2"} {
		ws, err := svc.Open(ctx, session.New(owner, owner+"@example.com", time.Hour))
		require.NoError(t, err)
		_, err = ws.Store.CreateColumn("")
		require.NoError(t, err)
	}
	require.NoError(t, svc.Shutdown(ctx))
	assert.Equal(t, 0, svc.Len())

	for _, owner := range []string{"owner-1", "owner-2"} {
		cols, err := repo.ListColumns(ctx, owner)
		require.NoError(t, err)
		assert.Len(t, cols, 1)
	}
}

func TestExportBoard(t *testing.T) {
	repo := repository.NewMemoryRepository()
	seed(t, repo, "owner-1")
	svc, _ := newTestService(t, repo, nil)

	board, err := svc.ExportBoard(context.Background(), "owner-1")
	require.NoError(t, err)
	assert.Equal(t, "owner-1", board.OwnerID)
	assert.Equal(t, []string{"owner-1-A"}, board.ColumnIDs())
	assert.Equal(t, 1, board.TaskCount())
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

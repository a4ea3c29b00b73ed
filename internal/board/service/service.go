// Package service keeps one board workspace per signed-in session.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kandev/taskboard/internal/board/drag"
	"github.com/kandev/taskboard/internal/board/models"
	"github.com/kandev/taskboard/internal/board/repository"
	"github.com/kandev/taskboard/internal/board/store"
	"github.com/kandev/taskboard/internal/board/writequeue"
	"github.com/kandev/taskboard/internal/common/appctx"
	"github.com/kandev/taskboard/internal/common/config"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/events"
	"github.com/kandev/taskboard/internal/events/bus"
	"github.com/kandev/taskboard/internal/session"
)

const defaultFlushTimeout = 10 * time.Second

// Config controls workspace persistence.
type Config struct {
	Queue        writequeue.Config
	FlushTimeout time.Duration
}

// ConfigFrom converts the write queue section of the app config.
func ConfigFrom(cfg config.WriteQueueConfig) Config {
	return Config{
		Queue: writequeue.Config{
			MaxAttempts:  cfg.MaxAttempts,
			RetryInitial: cfg.RetryInitial(),
			RetryMax:     cfg.RetryMax(),
		},
		FlushTimeout: cfg.FlushTimeoutDuration(),
	}
}

// Workspace is the live board of one session.
type Workspace struct {
	Session *session.Session
	Store   *store.Store
	Drag    *drag.Controller
	Queue   *writequeue.Queue

	eventBus bus.Publisher
	logger   *logger.Logger
}

// Reconcile drops unsynced writes, reloads the board and notifies the
// session's sockets.
func (w *Workspace) Reconcile(ctx context.Context) error {
	if err := w.Store.Reconcile(ctx); err != nil {
		return err
	}
	w.publish(ctx, events.BoardReconciled, nil)
	return nil
}

func (w *Workspace) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if w.eventBus == nil {
		return
	}
	subject := events.SessionSubject(w.Session.ID, eventType)
	event := bus.NewEvent(eventType, "board-service", data).ForSession(w.Session.ID, w.Session.OwnerID)
	if err := w.eventBus.Publish(ctx, subject, event); err != nil {
		w.logger.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

// Service is the registry of workspaces keyed by session id.
type Service struct {
	repo     repository.Repository
	eventBus bus.Publisher
	sessions session.Store
	cfg      Config
	logger   *logger.Logger

	mu         sync.Mutex
	workspaces map[string]*Workspace

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewService creates a board service. eventBus may be nil.
func NewService(repo repository.Repository, eventBus bus.Publisher, sessions session.Store, cfg Config, log *logger.Logger) *Service {
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaultFlushTimeout
	}
	return &Service{
		repo:       repo,
		eventBus:   eventBus,
		sessions:   sessions,
		cfg:        cfg,
		logger:     log.WithFields(zap.String("component", "board-service")),
		workspaces: make(map[string]*Workspace),
		stopCh:     make(chan struct{}),
	}
}

// Open returns the workspace of sess, building and loading it if needed.
func (s *Service) Open(ctx context.Context, sess *session.Session) (*Workspace, error) {
	s.mu.Lock()
	if ws, ok := s.workspaces[sess.ID]; ok {
		s.mu.Unlock()
		return ws, nil
	}
	s.mu.Unlock()

	ws, err := s.build(ctx, sess)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.workspaces[sess.ID]; ok {
		s.mu.Unlock()
		ws.Queue.Stop()
		return existing, nil
	}
	s.workspaces[sess.ID] = ws
	s.mu.Unlock()

	ws.publish(ctx, events.SessionOpened, nil)
	ws.logger.Info("board workspace opened",
		zap.Int("columns", len(ws.Store.Columns())),
		zap.Int("tasks", len(ws.Store.Tasks())))
	return ws, nil
}

func (s *Service) build(ctx context.Context, sess *session.Session) (*Workspace, error) {
	log := s.logger.WithSession(sess.ID, sess.OwnerID)
	queue := writequeue.New(s.cfg.Queue, s.repo, s.eventBus, sess.ID, sess.OwnerID, s.logger)
	queue.Start(context.WithoutCancel(ctx))

	st := store.New(sess, s.repo, queue, s.logger)
	if err := st.Load(ctx); err != nil {
		queue.Stop()
		return nil, fmt.Errorf("load board: %w", err)
	}
	return &Workspace{
		Session:  sess,
		Store:    st,
		Drag:     drag.NewController(st, log),
		Queue:    queue,
		eventBus: s.eventBus,
		logger:   log,
	}, nil
}

// Get returns the live workspace of a session. A session that is still
// valid in the session store but has no workspace, for example after a
// restart, gets a freshly loaded one.
func (s *Service) Get(ctx context.Context, sessionID string) (*Workspace, error) {
	s.mu.Lock()
	ws, ok := s.workspaces[sessionID]
	s.mu.Unlock()
	if ok {
		return ws, nil
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Expired(time.Now()) {
		return nil, session.ErrNotFound
	}
	return s.Open(ctx, sess)
}

// Close flushes and stops a session's workspace. The flush outlives ctx's
// cancellation but is bounded by the flush timeout.
func (s *Service) Close(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	ws, ok := s.workspaces[sessionID]
	delete(s.workspaces, sessionID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.closeWorkspace(ctx, ws)
}

func (s *Service) closeWorkspace(ctx context.Context, ws *Workspace) error {
	flushCtx, cancel := appctx.Detached(ctx, s.stopCh, s.cfg.FlushTimeout)
	defer cancel()

	if _, err := ws.Drag.Cancel(); err != nil {
		ws.logger.Warn("failed to finish drag on close", zap.Error(err))
	}
	err := ws.Queue.Flush(flushCtx)
	ws.Queue.Stop()
	if err != nil {
		ws.logger.Error("board workspace closed with unsynced writes",
			zap.Int("pending", ws.Queue.State().Pending),
			zap.Error(err))
		ws.publish(ctx, events.SessionClosed, map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("flush board: %w", err)
	}
	ws.publish(ctx, events.SessionClosed, nil)
	ws.logger.Info("board workspace closed")
	return nil
}

// Shutdown closes every workspace. When ctx ends first, outstanding flushes
// are abandoned.
func (s *Service) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.stopOnce.Do(func() { close(s.stopCh) })
		case <-done:
		}
	}()

	s.mu.Lock()
	all := make([]*Workspace, 0, len(s.workspaces))
	for id, ws := range s.workspaces {
		all = append(all, ws)
		delete(s.workspaces, id)
	}
	s.mu.Unlock()

	var (
		errMu sync.Mutex
		errs  []error
	)
	g := new(errgroup.Group)
	for _, ws := range all {
		g.Go(func() error {
			if err := s.closeWorkspace(ctx, ws); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Len returns the number of open workspaces.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workspaces)
}

// ExportBoard reads an owner's board straight from the repository.
func (s *Service) ExportBoard(ctx context.Context, ownerID string) (models.Board, error) {
	st := store.New(&session.Session{ID: "export", OwnerID: ownerID}, s.repo, readOnlyQueue{}, s.logger)
	if err := st.Load(ctx); err != nil {
		return models.Board{}, err
	}
	return st.Snapshot(), nil
}

// readOnlyQueue drops every intent. Exports never write back.
type readOnlyQueue struct{}

func (readOnlyQueue) Enqueue(writequeue.Intent)      {}
func (readOnlyQueue) Discard() int                   { return 0 }
func (readOnlyQueue) WaitIdle(context.Context) error { return nil }
func (readOnlyQueue) Retry() bool                    { return false }
func (readOnlyQueue) State() writequeue.State {
	return writequeue.State{Status: writequeue.StatusSynced}
}

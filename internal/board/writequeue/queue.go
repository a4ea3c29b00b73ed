// Package writequeue persists board mutations in order, retrying each write
// a bounded number of times before parking the queue in a failed state.
package writequeue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/board/repository"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/common/tracing"
	"github.com/kandev/taskboard/internal/events"
	"github.com/kandev/taskboard/internal/events/bus"
)

const (
	defaultMaxAttempts  = 5
	defaultRetryInitial = 200 * time.Millisecond
	defaultRetryMax     = 5 * time.Second
	attemptTimeout      = 10 * time.Second
)

// ErrFailed is returned by Flush when the queue is parked after exhausting
// retries.
var ErrFailed = errors.New("write queue failed")

// Status is the sync state of a queue.
type Status string

const (
	StatusSynced  Status = "synced"
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
)

// State is a point-in-time view of the queue.
type State struct {
	Status    Status    `json:"status"`
	Pending   int       `json:"pending"`
	LastError string    `json:"last_error,omitempty"`
	FailedAt  time.Time `json:"failed_at,omitempty"`
	// FailedKind is the kind of the intent at the head of a failed queue.
	FailedKind Kind `json:"failed_kind,omitempty"`
}

// Config bounds the retry policy.
type Config struct {
	MaxAttempts  int
	RetryInitial time.Duration
	RetryMax     time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = defaultRetryInitial
	}
	if c.RetryMax < c.RetryInitial {
		c.RetryMax = defaultRetryMax
		if c.RetryMax < c.RetryInitial {
			c.RetryMax = c.RetryInitial
		}
	}
	return c
}

// Queue is a per-session FIFO of write intents drained by one worker.
type Queue struct {
	cfg       Config
	repo      repository.Repository
	eventBus  bus.Publisher
	sessionID string
	ownerID   string
	logger    *logger.Logger
	tracer    trace.Tracer

	mu         sync.Mutex
	items      []*Intent
	failed     bool
	lastErr    error
	failedAt   time.Time
	recovering bool
	inflight   *Intent
	changed    chan struct{}

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a queue writing to repo on behalf of one session. eventBus may
// be nil.
func New(cfg Config, repo repository.Repository, eventBus bus.Publisher, sessionID, ownerID string, log *logger.Logger) *Queue {
	return &Queue{
		cfg:       cfg.withDefaults(),
		repo:      repo,
		eventBus:  eventBus,
		sessionID: sessionID,
		ownerID:   ownerID,
		logger:    log.WithSession(sessionID, ownerID),
		tracer:    tracing.Tracer("taskboard.writequeue"),
		changed:   make(chan struct{}),
		wake:      make(chan struct{}, 1),
	}
}

// Start launches the worker. It stops when ctx is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.wg.Add(1)
	go q.run(ctx)
	q.signal()
}

// Stop cancels the worker and waits for it to exit. Pending intents stay
// queued; call Flush first to persist them.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

// Enqueue appends an intent and wakes the worker.
func (q *Queue) Enqueue(in Intent) {
	in.EnqueuedAt = time.Now().UTC()
	q.mu.Lock()
	q.items = append(q.items, &in)
	q.notifyLocked()
	q.mu.Unlock()
	q.signal()
}

// State reports the current sync state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stateLocked()
}

func (q *Queue) stateLocked() State {
	st := State{Pending: len(q.items)}
	switch {
	case q.failed:
		st.Status = StatusFailed
		st.FailedAt = q.failedAt
		if q.lastErr != nil {
			st.LastError = q.lastErr.Error()
		}
		if len(q.items) > 0 {
			st.FailedKind = q.items[0].Kind
		}
	case len(q.items) > 0:
		st.Status = StatusPending
	default:
		st.Status = StatusSynced
	}
	return st
}

// Retry resumes a failed queue starting with the intent that failed.
func (q *Queue) Retry() bool {
	q.mu.Lock()
	if !q.failed {
		q.mu.Unlock()
		return false
	}
	q.failed = false
	q.recovering = true
	q.notifyLocked()
	q.mu.Unlock()
	q.signal()
	return true
}

// Discard drops every pending intent and clears a failed state. A write
// already in flight still completes; see WaitIdle.
func (q *Queue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	q.failed = false
	q.lastErr = nil
	q.recovering = false
	q.notifyLocked()
	return n
}

// Flush blocks until the queue is empty or failed.
func (q *Queue) Flush(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.failed {
			err := q.lastErr
			q.mu.Unlock()
			return fmt.Errorf("%w: %v", ErrFailed, err)
		}
		if len(q.items) == 0 {
			q.mu.Unlock()
			return nil
		}
		ch := q.changed
		q.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitIdle blocks until no write is in flight. Queued intents are not
// waited for; Flush does that.
func (q *Queue) WaitIdle(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.inflight == nil {
			q.mu.Unlock()
			return nil
		}
		ch := q.changed
		q.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// notifyLocked wakes every Flush waiter. Callers hold q.mu.
func (q *Queue) notifyLocked() {
	close(q.changed)
	q.changed = make(chan struct{})
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
			q.drain(ctx)
		}
	}
}

func (q *Queue) drain(ctx context.Context) {
	for {
		q.mu.Lock()
		if q.failed {
			q.mu.Unlock()
			return
		}
		if len(q.items) == 0 {
			recovered := q.recovering
			q.recovering = false
			q.mu.Unlock()
			if recovered {
				q.publish(ctx, events.BoardSyncRecovered, nil)
			}
			return
		}
		head := q.items[0]
		q.inflight = head
		q.mu.Unlock()

		err := q.attempt(ctx, head)

		q.mu.Lock()
		q.inflight = nil
		q.notifyLocked()
		if ctx.Err() != nil {
			q.mu.Unlock()
			return
		}
		if len(q.items) == 0 || q.items[0] != head {
			// Discarded while the write was in flight.
			q.mu.Unlock()
			continue
		}
		if err != nil {
			q.failed = true
			q.lastErr = err
			q.failedAt = time.Now().UTC()
			q.notifyLocked()
			st := q.stateLocked()
			q.mu.Unlock()

			q.logger.Error("write intent failed, queue parked",
				zap.String("kind", string(head.Kind)),
				zap.String("entity_id", head.EntityID),
				zap.Int("pending", st.Pending),
				zap.Error(err))
			q.publish(ctx, events.BoardSyncFailed, map[string]interface{}{
				"error":   err.Error(),
				"kind":    string(head.Kind),
				"pending": st.Pending,
			})
			return
		}
		q.items = q.items[1:]
		q.notifyLocked()
		q.mu.Unlock()
	}
}

// attempt applies one intent with exponential backoff between tries.
func (q *Queue) attempt(ctx context.Context, in *Intent) error {
	delay := q.cfg.RetryInitial
	var err error
	for n := 1; n <= q.cfg.MaxAttempts; n++ {
		err = q.applyOnce(ctx, in, n)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if n == q.cfg.MaxAttempts {
			break
		}

		q.logger.Warn("write intent attempt failed",
			zap.String("kind", string(in.Kind)),
			zap.String("entity_id", in.EntityID),
			zap.Int("attempt", n),
			zap.Duration("retry_in", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > q.cfg.RetryMax {
			delay = q.cfg.RetryMax
		}
	}
	return fmt.Errorf("%s %s after %d attempts: %w", in.Kind, in.EntityID, q.cfg.MaxAttempts, err)
}

func (q *Queue) applyOnce(ctx context.Context, in *Intent, attempt int) error {
	ctx, span := q.tracer.Start(ctx, "writequeue."+string(in.Kind),
		trace.WithAttributes(
			attribute.String("entity.id", in.EntityID),
			attribute.String("session.id", q.sessionID),
			attribute.Int("attempt", attempt),
		))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	if err := in.apply(ctx, q.repo); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (q *Queue) publish(ctx context.Context, eventType string, extra map[string]interface{}) {
	if q.eventBus == nil {
		return
	}
	subject := events.SessionSubject(q.sessionID, eventType)
	event := bus.NewEvent(eventType, "writequeue", extra).ForSession(q.sessionID, q.ownerID)
	if err := q.eventBus.Publish(ctx, subject, event); err != nil {
		q.logger.Warn("failed to publish sync event", zap.String("subject", subject), zap.Error(err))
	}
}

package bus

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/common/logger"
)

var errBusClosed = errors.New("event bus is closed")

// MemoryEventBus delivers events to in-process subscribers. Each
// subscription sees events in publish order, as with NATS, so a session's
// sync.failed is never overtaken by the sync.recovered that follows it.
type MemoryEventBus struct {
	subs   []*memorySubscription
	mu     sync.RWMutex
	logger *logger.Logger
	closed bool
}

var _ EventBus = (*MemoryEventBus)(nil)

type delivery struct {
	ctx     context.Context
	subject string
	event   *Event
}

type memorySubscription struct {
	bus     *MemoryEventBus
	subject string
	pattern *regexp.Regexp
	handler EventHandler

	mu      sync.Mutex
	pending []delivery
	active  bool
	wake    chan struct{}
	stop    chan struct{}
}

func newMemorySubscription(b *MemoryEventBus, subject string, handler EventHandler) *memorySubscription {
	s := &memorySubscription{
		bus:     b,
		subject: subject,
		pattern: compilePattern(subject),
		handler: handler,
		active:  true,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *memorySubscription) enqueue(d delivery) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, d)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run hands queued events to the handler one at a time.
func (s *memorySubscription) run() {
	for {
		select {
		case <-s.stop:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if !s.active || len(s.pending) == 0 {
				s.mu.Unlock()
				break
			}
			d := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()

			if err := s.handler(d.ctx, d.event); err != nil {
				s.bus.logger.Error("Event handler error",
					zap.String("subject", d.subject),
					zap.String("event_type", d.event.Type),
					zap.String("session_id", d.event.SessionID),
					zap.Error(err))
			}
		}
	}
}

// deactivate stops delivery and drops undelivered events. It reports false
// when the subscription was already inactive.
func (s *memorySubscription) deactivate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.active = false
	s.pending = nil
	close(s.stop)
	return true
}

func (s *memorySubscription) Unsubscribe() error {
	if !s.deactivate() {
		return nil
	}
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	for i, sub := range s.bus.subs {
		if sub == s {
			s.bus.subs = append(s.bus.subs[:i], s.bus.subs[i+1:]...)
			break
		}
	}
	return nil
}

func (s *memorySubscription) IsValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// NewMemoryEventBus creates an in-memory event bus.
func NewMemoryEventBus(log *logger.Logger) *MemoryEventBus {
	return &MemoryEventBus{logger: log}
}

// Publish queues event for every matching subscription and returns without
// waiting for handlers. Handlers get ctx's values but not its cancellation,
// since the publishing request usually ends first.
func (b *MemoryEventBus) Publish(ctx context.Context, subject string, event *Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return errBusClosed
	}

	d := delivery{ctx: context.WithoutCancel(ctx), subject: subject, event: event}
	for _, sub := range b.subs {
		if matches(subject, sub.subject, sub.pattern) {
			sub.enqueue(d)
		}
	}

	b.logger.Debug("Published event",
		zap.String("subject", subject),
		zap.String("event_id", event.ID),
		zap.String("event_type", event.Type),
		zap.String("session_id", event.SessionID))
	return nil
}

// Subscribe registers handler for subject. See EventBus for wildcards.
func (b *MemoryEventBus) Subscribe(subject string, handler EventHandler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errBusClosed
	}
	sub := newMemorySubscription(b, subject, handler)
	b.subs = append(b.subs, sub)

	b.logger.Debug("Subscribed to subject", zap.String("subject", subject))
	return sub, nil
}

// Close stops every subscription. Publishing afterwards fails.
func (b *MemoryEventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for _, sub := range b.subs {
		sub.deactivate()
	}
	b.subs = nil
	b.logger.Info("Memory event bus closed")
}

// IsConnected reports whether the bus is still open.
func (b *MemoryEventBus) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.closed
}

func matches(subject, pattern string, re *regexp.Regexp) bool {
	if re == nil {
		return subject == pattern
	}
	return re.MatchString(subject)
}

// compilePattern turns a wildcard subject into an anchored regexp. Subjects
// without wildcards return nil and match exactly.
func compilePattern(pattern string) *regexp.Regexp {
	if !strings.ContainsAny(pattern, "*>") {
		return nil
	}
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, `[^.]+`)
	escaped = strings.ReplaceAll(escaped, `>`, `.+`)
	re, err := regexp.Compile("^" + escaped + "$")
	if err != nil {
		return nil
	}
	return re
}

// Package bus carries board and account events between the write queues,
// the board service and the WebSocket gateway.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is one board or account event. Events raised on behalf of a
// signed-in session carry its ids; the gateway routes on SessionID.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	SessionID string                 `json:"session_id,omitempty"`
	OwnerID   string                 `json:"owner_id,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

func NewEvent(eventType, source string, data map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// ForSession scopes e to a board session and returns it.
func (e *Event) ForSession(sessionID, ownerID string) *Event {
	e.SessionID = sessionID
	e.OwnerID = ownerID
	return e
}

// SessionScoped reports whether e belongs to a board session.
func (e *Event) SessionScoped() bool {
	return e.SessionID != ""
}

type EventHandler func(ctx context.Context, event *Event) error

type Subscription interface {
	Unsubscribe() error
	IsValid() bool
}

// Publisher is the write side of the bus, all a write queue or workspace
// needs.
type Publisher interface {
	Publish(ctx context.Context, subject string, event *Event) error
}

// EventBus routes events on dot-separated subjects such as
// session.<id>.board.sync.failed.
type EventBus interface {
	Publisher
	// Subscribe accepts * for one token and > for the remaining tokens.
	Subscribe(subject string, handler EventHandler) (Subscription, error)
	Close()
	IsConnected() bool
}

// Package events defines the subjects published by the board service.
package events

import "fmt"

// Event types for board synchronisation.
const (
	BoardSyncFailed    = "board.sync.failed"
	BoardSyncRecovered = "board.sync.recovered"
	BoardReconciled    = "board.reconciled"
)

// Event types for sessions.
const (
	SessionOpened = "session.opened"
	SessionClosed = "session.closed"
)

// Event types for accounts. They are published on their own subject.
const (
	UserRegistered = "user.registered"
)

// SessionSubject scopes an event to one session, so only that session's
// sockets receive it: session.<id>.<event type>.
func SessionSubject(sessionID, eventType string) string {
	return fmt.Sprintf("session.%s.%s", sessionID, eventType)
}

// SessionWildcard matches every event scoped to one session.
func SessionWildcard(sessionID string) string {
	return fmt.Sprintf("session.%s.>", sessionID)
}

// BoardWildcard matches the board events of every session.
func BoardWildcard() string {
	return "session.*.board.>"
}

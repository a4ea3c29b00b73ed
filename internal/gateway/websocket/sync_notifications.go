package websocket

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/events"
	"github.com/kandev/taskboard/internal/events/bus"
	ws "github.com/kandev/taskboard/pkg/websocket"
)

// syncActions maps board event types to the notification sent to the
// owning session's sockets.
var syncActions = map[string]string{
	events.BoardSyncFailed:    ws.ActionBoardSyncFailed,
	events.BoardSyncRecovered: ws.ActionBoardSyncRecovered,
	events.BoardReconciled:    ws.ActionBoardReconciled,
}

// SyncNotifier forwards board sync events to WebSocket clients.
type SyncNotifier struct {
	hub    *Hub
	sub    bus.Subscription
	logger *logger.Logger
}

// RegisterSyncNotifications subscribes to board events of every session.
// The subscription is dropped when ctx ends.
func RegisterSyncNotifications(ctx context.Context, eventBus bus.EventBus, hub *Hub, log *logger.Logger) (*SyncNotifier, error) {
	if eventBus == nil || hub == nil {
		return nil, fmt.Errorf("sync notifications: event bus and hub are required")
	}
	n := &SyncNotifier{
		hub:    hub,
		logger: log.WithFields(zap.String("component", "ws_sync_notifier")),
	}
	sub, err := eventBus.Subscribe(events.BoardWildcard(), n.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe to board events: %w", err)
	}
	n.sub = sub
	go func() {
		<-ctx.Done()
		n.Close()
	}()
	return n, nil
}

// Close drops the bus subscription.
func (n *SyncNotifier) Close() {
	if n.sub != nil && n.sub.IsValid() {
		if err := n.sub.Unsubscribe(); err != nil {
			n.logger.Warn("failed to unsubscribe", zap.Error(err))
		}
	}
}

func (n *SyncNotifier) handle(_ context.Context, event *bus.Event) error {
	action, ok := syncActions[event.Type]
	if !ok {
		return nil
	}
	if !event.SessionScoped() {
		n.logger.Debug("board event without session", zap.String("type", event.Type))
		return nil
	}
	msg, err := ws.NewNotification(action, notificationPayload(event))
	if err != nil {
		n.logger.Error("failed to build websocket notification", zap.String("action", action), zap.Error(err))
		return nil
	}
	n.hub.BroadcastToSession(event.SessionID, msg)
	return nil
}

// notificationPayload flattens the event data and stamps when it happened.
func notificationPayload(event *bus.Event) map[string]interface{} {
	payload := make(map[string]interface{}, len(event.Data)+2)
	for k, v := range event.Data {
		payload[k] = v
	}
	payload["session_id"] = event.SessionID
	payload["occurred_at"] = event.Timestamp
	return payload
}

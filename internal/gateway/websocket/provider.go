package websocket

import (
	"context"

	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/events/bus"
)

// Provide creates the gateway and starts forwarding board events from the
// bus to the owning session's sockets. Both stop when ctx ends.
func Provide(ctx context.Context, allowedOrigins []string, eventBus bus.EventBus, log *logger.Logger) (*Gateway, error) {
	gateway := NewGateway(allowedOrigins, log)
	go gateway.Hub.Run(ctx)
	if _, err := RegisterSyncNotifications(ctx, eventBus, gateway.Hub, log); err != nil {
		return nil, err
	}
	return gateway, nil
}

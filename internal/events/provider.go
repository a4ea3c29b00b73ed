package events

import (
	"fmt"
	"strings"

	"github.com/kandev/taskboard/internal/common/config"
	"github.com/kandev/taskboard/internal/common/logger"
	"github.com/kandev/taskboard/internal/events/bus"
)

// ProvidedBus wraps the active event bus implementation. Exactly one of
// Memory and NATS is set.
type ProvidedBus struct {
	Bus    bus.EventBus
	Memory *bus.MemoryEventBus
	NATS   *bus.NATSEventBus
}

// Provide builds the NATS bus when nats.url is set and the in-memory bus
// otherwise.
func Provide(cfg *config.Config, log *logger.Logger) (*ProvidedBus, func() error, error) {
	if strings.TrimSpace(cfg.NATS.URL) != "" {
		natsBus, err := bus.NewNATSEventBus(cfg.NATS, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize NATS event bus: %w", err)
		}
		cleanup := func() error {
			natsBus.Close()
			return nil
		}
		return &ProvidedBus{Bus: natsBus, NATS: natsBus}, cleanup, nil
	}

	memBus := bus.NewMemoryEventBus(log)
	return &ProvidedBus{Bus: memBus, Memory: memBus}, func() error {
		memBus.Close()
		return nil
	}, nil
}

package eventbus

import (
	"context"

	"go.uber.org/zap"

	"github.com/manfullwel/ska/internal/event"
)

// LogConsumer logs all pipeline events for observability.
type LogConsumer struct {
	log *zap.Logger
}

func NewLogConsumer(log *zap.Logger) *LogConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogConsumer{log: log}
}

func (c *LogConsumer) HandleEvent(_ context.Context, evt event.DomainEvent) error {
	c.log.Info("event",
		zap.String("event_type", evt.EventType),
		zap.String("entity", evt.Entity),
		zap.String("group", evt.Group),
		zap.String("summary", evt.Summary))
	return nil
}

package port

import (
	"context"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

type OutboxRepository interface {
	// ProcessPending claims up to limit unsent events, calls handle for each
	// in order and marks the ones handled without error as sent. The first
	// handler error ends the batch; the rest stay pending. It returns the
	// number of events claimed.
	ProcessPending(ctx context.Context, limit int, handle func(domain.OutboxEvent) error) (int, error)
}

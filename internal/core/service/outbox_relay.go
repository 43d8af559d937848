package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rl1809/retail-pos/internal/core/domain"
	"github.com/rl1809/retail-pos/internal/port"
)

// OutboxRelay forwards sale events written by committed checkouts to the
// event publisher. Several workers may poll concurrently; the repository
// hands each pending event to at most one of them.
type OutboxRelay struct {
	repo      port.OutboxRepository
	publisher port.EventPublisher
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
}

func NewOutboxRelay(repo port.OutboxRepository, publisher port.EventPublisher, batchSize int, interval time.Duration, logger *slog.Logger) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 50
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &OutboxRelay{
		repo:      repo,
		publisher: publisher,
		batchSize: batchSize,
		interval:  interval,
		logger:    logger,
	}
}

// Run starts workerCount polling workers and blocks until ctx is cancelled
// and all of them have returned.
func (r *OutboxRelay) Run(ctx context.Context, workerCount int) {
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.workerLoop(ctx, id)
		}(i)
	}
	r.logger.Info("started outbox relay workers", slog.Int("workers", workerCount))
	wg.Wait()
}

func (r *OutboxRelay) workerLoop(ctx context.Context, id int) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Drain while full batches keep coming back. A batch with publish
		// failures waits for the next tick.
		for {
			n, failed, err := r.relayBatch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					r.logger.Error("outbox batch failed", slog.Int("worker", id), slog.Any("error", err))
				}
				break
			}
			if n < r.batchSize || failed > 0 {
				break
			}
		}
	}
}

// RunOnce relays a single batch and returns how many events were claimed.
func (r *OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	n, _, err := r.relayBatch(ctx)
	return n, err
}

func (r *OutboxRelay) relayBatch(ctx context.Context) (claimed, failed int, err error) {
	claimed, err = r.repo.ProcessPending(ctx, r.batchSize, func(ev domain.OutboxEvent) error {
		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := r.publisher.Publish(pubCtx, ev.Topic, ev.Key, ev.Payload); err != nil {
			failed++
			r.logger.Warn("failed to publish event",
				slog.String("event_id", ev.EventID), slog.String("topic", ev.Topic), slog.Any("error", err))
			return err
		}
		r.logger.Debug("published event", slog.String("event_id", ev.EventID), slog.String("topic", ev.Topic))
		return nil
	})
	return claimed, failed, err
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rl1809/retail-pos/internal/core/domain"
)

// ProcessPending claims unsent outbox rows with SKIP LOCKED so concurrent
// relay workers never receive the same event, and marks the handled ones
// as sent before committing. The batch stops at the first handler error so
// an unreachable broker releases the row locks after one publish timeout.
func (a *SQLAdapter) ProcessPending(ctx context.Context, limit int, handle func(domain.OutboxEvent) error) (int, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := a.query(ctx, tx, `
		SELECT id, event_id, topic, msg_key, payload, created_at
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY id ASC
		LIMIT ?
		FOR UPDATE SKIP LOCKED`, limit,
	)
	if err != nil {
		return 0, fmt.Errorf("claim outbox events: %w", err)
	}

	var events []domain.OutboxEvent
	for rows.Next() {
		var (
			ev      domain.OutboxEvent
			payload []byte
		)
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.Topic, &ev.Key, &payload, &ev.CreatedAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox event: %w", err)
		}
		ev.Payload = payload
		events = append(events, ev)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox events: %w", err)
	}

	for _, ev := range events {
		if err := handle(ev); err != nil {
			break
		}
		if _, err := a.exec(ctx, tx, `UPDATE outbox SET sent_at = ? WHERE id = ?`, time.Now().UTC(), ev.ID); err != nil {
			return 0, fmt.Errorf("mark outbox event sent: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(events), nil
}

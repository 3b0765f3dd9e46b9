package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// newOutboxMessage wraps a subscription change in an event keyed by the
// subscription id.
func newOutboxMessage(eventType EventType, sub Subscription) (OutboxMessage, error) {
	now := time.Now().UTC()
	payload, err := json.Marshal(SubscriptionEvent{
		Type:       eventType,
		OccurredAt: now,
		Data:       sub,
	})
	if err != nil {
		return OutboxMessage{}, err
	}
	return OutboxMessage{
		ID:        uuid.New(),
		EntityID:  sub.ID,
		Payload:   string(payload),
		CreatedAt: now,
	}, nil
}

// recordEvent enqueues the event on tx, so it commits or rolls back with
// the change it describes.
func recordEvent(ctx context.Context, tx pgx.Tx, eventType EventType, sub Subscription) error {
	msg, err := newOutboxMessage(eventType, sub)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		ctx,
		"INSERT INTO outbox_messages (id, entity_id, payload, created_at) VALUES ($1, $2, $3, $4)",
		msg.ID, msg.EntityID, msg.Payload, msg.CreatedAt,
	)
	return err
}

type Outbox struct {
	pool *pgxpool.Pool
}

func NewOutbox(pool *pgxpool.Pool) *Outbox {
	return &Outbox{pool: pool}
}

// ProcessBatch locks up to limit unprocessed messages, oldest first, and
// passes them to fn. They are marked processed only if fn succeeds; locked
// rows are skipped so several processors can run side by side.
func (o *Outbox) ProcessBatch(ctx context.Context, limit int, fn func(context.Context, []OutboxMessage) error) (int, error) {
	tx, err := o.pool.Begin(ctx)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(
		ctx,
		"SELECT id, entity_id, payload, created_at FROM outbox_messages WHERE processed_at IS NULL ORDER BY created_at LIMIT $1 FOR UPDATE SKIP LOCKED",
		limit,
	)
	if err != nil {
		return 0, Error.Wrap(err)
	}

	var messages []OutboxMessage
	for rows.Next() {
		var outboxMessage OutboxMessage
		if err := rows.Scan(&outboxMessage.ID, &outboxMessage.EntityID, &outboxMessage.Payload, &outboxMessage.CreatedAt); err != nil {
			rows.Close()
			return 0, Error.Wrap(err)
		}
		messages = append(messages, outboxMessage)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, Error.Wrap(err)
	}

	if len(messages) == 0 {
		return 0, nil
	}

	if err := fn(ctx, messages); err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID.String())
	}
	_, err = tx.Exec(
		ctx,
		"UPDATE outbox_messages SET processed_at=$1 WHERE id = ANY($2::uuid[])",
		time.Now(), ids,
	)
	if err != nil {
		return 0, Error.Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, Error.Wrap(err)
	}
	return len(messages), nil
}

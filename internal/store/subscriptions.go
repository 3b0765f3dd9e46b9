package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultTimeout = 5 * time.Second

const subscriptionColumns = "subscription_id, status, customer_email, created_at, updated_at"

// Subscriptions is the subscription record store. Each mutation is a single
// conditional statement on the primary key, so concurrent duplicates are
// serialized by Postgres row locking.
type Subscriptions struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewSubscriptions(pool *pgxpool.Pool, timeout time.Duration) *Subscriptions {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Subscriptions{pool: pool, timeout: timeout}
}

// Activate marks a not yet active subscription as active. It reports 0
// affected rows, and a nil subscription, when no such row exists or the
// subscription was already active.
func (s *Subscriptions) Activate(ctx context.Context, subscriptionID string) (*Subscription, int64, error) {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}
	defer tx.Rollback(ctx)

	var sub Subscription
	err = tx.QueryRow(
		ctx,
		"UPDATE subscriptions SET status=$1, updated_at=$2 WHERE subscription_id=$3 AND status<>$1 RETURNING "+subscriptionColumns,
		StatusActive, time.Now(), subscriptionID,
	).Scan(&sub.ID, &sub.Status, &sub.CustomerEmail, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, Error.Wrap(err)
	}

	if err := recordEvent(ctx, tx, EventSubscriptionActivated, sub); err != nil {
		return nil, 0, Error.Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, Error.Wrap(err)
	}
	return &sub, 1, nil
}

// Remove deletes the subscription. Removing an absent subscription affects
// 0 rows and is not an error.
func (s *Subscriptions) Remove(ctx context.Context, subscriptionID string) (int64, error) {
	ctx, cancel := s.detach(ctx)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	defer tx.Rollback(ctx)

	var sub Subscription
	err = tx.QueryRow(
		ctx,
		"DELETE FROM subscriptions WHERE subscription_id=$1 RETURNING "+subscriptionColumns,
		subscriptionID,
	).Scan(&sub.ID, &sub.Status, &sub.CustomerEmail, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, Error.Wrap(err)
	}

	sub.Status = StatusCancelled
	sub.UpdatedAt = time.Now()
	if err := recordEvent(ctx, tx, EventSubscriptionRemoved, sub); err != nil {
		return 0, Error.Wrap(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, Error.Wrap(err)
	}
	return 1, nil
}

// Get is used by tooling and tests; the reconciliation path never reads
// before it writes.
func (s *Subscriptions) Get(ctx context.Context, subscriptionID string) (*Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var sub Subscription
	err := s.pool.QueryRow(
		ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE subscription_id=$1",
		subscriptionID,
	).Scan(&sub.ID, &sub.Status, &sub.CustomerEmail, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return &sub, nil
}

// Create inserts a pending subscription, as the checkout flow does.
func (s *Subscriptions) Create(ctx context.Context, subscriptionID string, customerEmail *string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now()
	_, err := s.pool.Exec(
		ctx,
		"INSERT INTO subscriptions (subscription_id, status, customer_email, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)",
		subscriptionID, StatusPending, customerEmail, now, now,
	)
	return Error.Wrap(err)
}

// detach bounds a mutation by the store timeout only. Caller cancellation
// does not abort it.
func (s *Subscriptions) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
}

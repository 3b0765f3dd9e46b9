package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "payment:"

// PaymentCache keeps raw gateway payment bodies for a short time, so status
// polling from checkout pages does not hit the gateway on every tick.
type PaymentCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPaymentCache(rdb *redis.Client, ttl time.Duration) *PaymentCache {
	return &PaymentCache{rdb: rdb, ttl: ttl}
}

func (c *PaymentCache) Get(ctx context.Context, paymentID string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, keyPrefix+paymentID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *PaymentCache) Set(ctx context.Context, paymentID string, body []byte) error {
	return c.rdb.Set(ctx, keyPrefix+paymentID, body, c.ttl).Err()
}

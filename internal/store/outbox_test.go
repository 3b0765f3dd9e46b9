package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOutboxMessage(t *testing.T) {
	email := "ana@example.com"
	sub := Subscription{
		ID:            "sub-123",
		Status:        StatusActive,
		CustomerEmail: &email,
	}

	msg, err := newOutboxMessage(EventSubscriptionActivated, sub)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, msg.ID)
	assert.Equal(t, "sub-123", msg.EntityID)
	assert.Nil(t, msg.ProcessedAt)
	assert.WithinDuration(t, time.Now(), msg.CreatedAt, time.Minute)

	var event SubscriptionEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	assert.Equal(t, EventSubscriptionActivated, event.Type)
	assert.True(t, msg.CreatedAt.Equal(event.OccurredAt))
	assert.Equal(t, "sub-123", event.Data.ID)
	assert.Equal(t, StatusActive, event.Data.Status)
	require.NotNil(t, event.Data.CustomerEmail)
	assert.Equal(t, email, *event.Data.CustomerEmail)
}

func TestNewOutboxMessageUniqueIDs(t *testing.T) {
	sub := Subscription{ID: "sub-123", Status: StatusCancelled}

	a, err := newOutboxMessage(EventSubscriptionRemoved, sub)
	require.NoError(t, err)
	b, err := newOutboxMessage(EventSubscriptionRemoved, sub)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.EntityID, b.EntityID)
}

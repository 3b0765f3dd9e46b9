package store

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

type Subscription struct {
	ID            string    `json:"subscription_id"`
	Status        Status    `json:"status"`
	CustomerEmail *string   `json:"customer_email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type EventType string

const (
	EventSubscriptionActivated EventType = "subscription_activated"
	EventSubscriptionRemoved   EventType = "subscription_removed"
)

// SubscriptionEvent is the outbox payload relayed to Kafka.
type SubscriptionEvent struct {
	Type       EventType    `json:"type"`
	OccurredAt time.Time    `json:"occurred_at"`
	Data       Subscription `json:"data"`
}

type OutboxMessage struct {
	ID          uuid.UUID  `json:"id"`
	EntityID    string     `json:"entity_id"`
	Payload     string     `json:"payload"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

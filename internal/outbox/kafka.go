package outbox

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/Rhuan78/mercado-pago-qartinha/internal/store"
)

// KafkaPublisher writes outbox messages keyed by subscription id, so events
// for one subscription land on one partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, messages []store.OutboxMessage) error {
	return p.writer.WriteMessages(ctx, toKafkaMessages(messages)...)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func toKafkaMessages(messages []store.OutboxMessage) []kafka.Message {
	out := make([]kafka.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, kafka.Message{
			Key:   []byte(m.EntityID),
			Value: []byte(m.Payload),
			Time:  m.CreatedAt,
			Headers: []kafka.Header{
				{Key: "outbox_id", Value: []byte(m.ID.String())},
			},
		})
	}
	return out
}

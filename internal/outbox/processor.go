package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Rhuan78/mercado-pago-qartinha/internal/store"
)

type Source interface {
	ProcessBatch(ctx context.Context, limit int, fn func(context.Context, []store.OutboxMessage) error) (int, error)
}

type Publisher interface {
	Publish(ctx context.Context, messages []store.OutboxMessage) error
}

// Processor relays subscription events from the outbox table to the broker.
// Delivery is at least once: a batch whose publish fails stays unprocessed
// and is retried on the next tick.
type Processor struct {
	log       *zap.Logger
	source    Source
	publisher Publisher
	interval  time.Duration
	batchSize int
}

func NewProcessor(logger *zap.Logger, source Source, publisher Publisher, interval time.Duration, batchSize int) *Processor {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Processor{
		log:       logger.Named("outbox"),
		source:    source,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run processes batches until ctx is done.
func (p *Processor) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.drain(ctx); err != nil {
				p.log.Error("processing outbox messages", zap.Error(err))
			}
		}
	}
}

// drain processes full batches back to back until the outbox is empty.
func (p *Processor) drain(ctx context.Context) error {
	for ctx.Err() == nil {
		n, err := p.ProcessMessages(ctx)
		if err != nil {
			return err
		}
		if n < p.batchSize {
			return nil
		}
	}
	return nil
}

func (p *Processor) ProcessMessages(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := p.source.ProcessBatch(ctx, p.batchSize, func(ctx context.Context, messages []store.OutboxMessage) error {
		p.log.Debug("publishing outbox messages", zap.Int("count", len(messages)))
		if err := p.publisher.Publish(ctx, messages); err != nil {
			publishFailures.Inc()
			return err
		}
		return nil
	})
	batchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, err
	}

	if n > 0 {
		messagesPublished.Add(float64(n))
		p.log.Info("outbox messages published", zap.Int("count", n))
	}
	return n, nil
}

// Package notify delivers best-effort confirmation messages. Delivery
// failures are logged and never returned: the result of a reconciliation
// must not depend on whether a customer got an email.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "qartinha",
	Subsystem: "notify",
	Name:      "messages_total",
	Help:      "Notifications handed to a channel, by channel and result",
}, []string{"channel", "result"})

// Message is a channel-agnostic payload. Channels pick the fields they need.
type Message struct {
	Recipient string
	Text      string
}

// Channel is a single delivery provider.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher sends messages in the background, each bounded by timeout and
// detached from the caller's cancellation.
type Dispatcher struct {
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(logger *zap.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		log:     logger.Named("notify"),
		timeout: timeout,
	}
}

// Notify hands msg to ch and returns immediately.
func (d *Dispatcher) Notify(ctx context.Context, ch Channel, msg Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("notification channel panicked", zap.String("channel", ch.Name()), zap.Any("panic", r))
				notificationsSent.WithLabelValues(ch.Name(), "failed").Inc()
			}
		}()

		if err := ch.Send(ctx, msg); err != nil {
			d.log.Error("fail sending notification",
				zap.String("channel", ch.Name()),
				zap.Error(err),
			)
			notificationsSent.WithLabelValues(ch.Name(), "failed").Inc()
			return
		}

		d.log.Info("notification sent", zap.String("channel", ch.Name()))
		notificationsSent.WithLabelValues(ch.Name(), "sent").Inc()
	}()
}

// Wait blocks until every pending notification has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

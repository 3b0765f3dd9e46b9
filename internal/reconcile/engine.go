package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/Rhuan78/mercado-pago-qartinha/internal/correlation"
	"github.com/Rhuan78/mercado-pago-qartinha/internal/gateway"
	"github.com/Rhuan78/mercado-pago-qartinha/internal/notify"
	"github.com/Rhuan78/mercado-pago-qartinha/internal/store"
)

const TopicPayment = "payment"

var outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "qartinha",
	Subsystem: "reconcile",
	Name:      "outcomes_total",
	Help:      "Payment notifications handled, by outcome",
}, []string{"outcome"})

// Notification is an inbound gateway webhook call.
type Notification struct {
	Topic     string
	PaymentID string
}

type Payments interface {
	FetchPayment(ctx context.Context, paymentID string) (*gateway.Payment, error)
}

type Subscriptions interface {
	Activate(ctx context.Context, subscriptionID string) (*store.Subscription, int64, error)
	Remove(ctx context.Context, subscriptionID string) (int64, error)
}

type Notifier interface {
	Notify(ctx context.Context, ch notify.Channel, msg notify.Message)
}

// Channels are the confirmation channels. A nil channel is skipped.
type Channels struct {
	Email     notify.Channel
	Messaging notify.Channel
}

// Engine brings local subscription state in line with the gateway. It keeps
// no state between calls and is safe for concurrent use.
type Engine struct {
	log           *zap.Logger
	payments      Payments
	subscriptions Subscriptions
	notifier      Notifier
	channels      Channels
}

func New(
	logger *zap.Logger,
	payments Payments,
	subscriptions Subscriptions,
	notifier Notifier,
	channels Channels,
) *Engine {
	return &Engine{
		log:           logger.Named("reconcile"),
		payments:      payments,
		subscriptions: subscriptions,
		notifier:      notifier,
		channels:      channels,
	}
}

func (e *Engine) Reconcile(ctx context.Context, n Notification) Outcome {
	o := e.reconcile(ctx, n)
	outcomesTotal.WithLabelValues(o.Kind.String()).Inc()
	return o
}

func (e *Engine) reconcile(ctx context.Context, n Notification) Outcome {
	paymentID := strings.TrimSpace(n.PaymentID)
	o := Outcome{PaymentID: paymentID}
	log := e.log.With(zap.String("payment_id", paymentID))

	if n.Topic != TopicPayment || paymentID == "" {
		log.Warn("invalid notification", zap.String("topic", n.Topic))
		o.Kind = KindInvalid
		return o
	}

	payment, err := e.payments.FetchPayment(ctx, paymentID)
	if errors.Is(err, gateway.ErrPaymentNotFound) {
		log.Warn("payment not found, probably a test notification")
		o.Kind = KindIgnored
		return o
	}
	if err != nil {
		log.Error("fetch payment", zap.Error(err))
		o.Kind = KindGatewayFailure
		o.Err = err
		return o
	}
	o.PaymentStatus = payment.Status

	subscriptionID, err := correlation.Extract(payment.Description)
	if err != nil {
		log.Warn("subscription_id not found in description", zap.String("description", payment.Description))
		o.Kind = KindUnresolved
		o.Err = err
		return o
	}
	o.SubscriptionID = subscriptionID
	log = log.With(
		zap.String("subscription_id", subscriptionID),
		zap.String("status", string(payment.Status)),
	)

	switch {
	case payment.Status == gateway.StatusApproved:
		return e.activate(ctx, log, o, payment)
	case removes(payment.Status):
		return e.remove(ctx, log, o)
	default:
		log.Info("payment not approved yet")
		o.Kind = KindPending
		return o
	}
}

func (e *Engine) activate(ctx context.Context, log *zap.Logger, o Outcome, payment *gateway.Payment) Outcome {
	sub, affected, err := e.subscriptions.Activate(ctx, o.SubscriptionID)
	if err != nil {
		log.Error("activate subscription", zap.Error(err))
		o.Kind = KindStoreFailure
		o.Err = err
		return o
	}
	if affected == 0 || sub == nil {
		log.Warn("no subscription updated, id may not exist or is already active")
		o.Kind = KindUnmatched
		return o
	}

	log.Info("subscription activated")
	o.Kind = KindActivated

	if sub.CustomerEmail != nil && *sub.CustomerEmail != "" {
		e.send(ctx, e.channels.Email, notify.Message{Recipient: *sub.CustomerEmail})
	} else {
		log.Warn("subscription has no customer email")
	}
	e.send(ctx, e.channels.Messaging, notify.Message{Text: confirmationText(payment)})

	return o
}

func (e *Engine) remove(ctx context.Context, log *zap.Logger, o Outcome) Outcome {
	affected, err := e.subscriptions.Remove(ctx, o.SubscriptionID)
	if err != nil {
		log.Error("remove subscription", zap.Error(err))
		o.Kind = KindStoreFailure
		o.Err = err
		return o
	}

	log.Info("subscription removed", zap.Int64("affected", affected))
	o.Kind = KindRemoved
	return o
}

func (e *Engine) send(ctx context.Context, ch notify.Channel, msg notify.Message) {
	if ch == nil || e.notifier == nil {
		return
	}
	e.notifier.Notify(ctx, ch, msg)
}

func removes(status gateway.PaymentStatus) bool {
	switch status {
	case gateway.StatusCancelled, gateway.StatusRejected, gateway.StatusExpired, gateway.StatusRefunded:
		return true
	}
	return false
}

func confirmationText(payment *gateway.Payment) string {
	email := payment.Payer.Email
	if email == "" {
		email = "desconhecido"
	}
	return fmt.Sprintf("✅ Nova assinatura confirmada!\nPlano: %s\nEmail: %s", payment.Description, email)
}

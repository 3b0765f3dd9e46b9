package reconcile

import "github.com/Rhuan78/mercado-pago-qartinha/internal/gateway"

// Kind tags the terminal step a notification reached.
type Kind int

const (
	// KindInvalid: wrong topic or missing payment id. Nothing was fetched.
	KindInvalid Kind = iota
	// KindIgnored: the gateway does not know the payment (sandbox traffic).
	KindIgnored
	// KindUnresolved: the payment carries no subscription id.
	KindUnresolved
	// KindActivated: the subscription transitioned to active.
	KindActivated
	// KindUnmatched: approved, but no pending subscription matched.
	KindUnmatched
	// KindRemoved: negative terminal status, subscription removed if present.
	KindRemoved
	// KindPending: non-terminal payment status, nothing changed.
	KindPending
	// KindGatewayFailure: the payment could not be fetched. Retryable.
	KindGatewayFailure
	// KindStoreFailure: the subscription write failed. Retryable.
	KindStoreFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindIgnored:
		return "ignored"
	case KindUnresolved:
		return "unresolved"
	case KindActivated:
		return "activated"
	case KindUnmatched:
		return "unmatched"
	case KindRemoved:
		return "removed"
	case KindPending:
		return "pending"
	case KindGatewayFailure:
		return "gateway_failure"
	case KindStoreFailure:
		return "store_failure"
	default:
		return "unknown"
	}
}

type Outcome struct {
	Kind           Kind
	PaymentID      string
	SubscriptionID string
	PaymentStatus  gateway.PaymentStatus
	Err            error
}

// Retryable reports whether the notification should be redelivered.
func (o Outcome) Retryable() bool {
	return o.Kind == KindGatewayFailure || o.Kind == KindStoreFailure
}

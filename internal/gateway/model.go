package gateway

import "github.com/shopspring/decimal"

type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusInProcess PaymentStatus = "in_process"
	StatusApproved  PaymentStatus = "approved"
	StatusCancelled PaymentStatus = "cancelled"
	StatusRejected  PaymentStatus = "rejected"
	StatusExpired   PaymentStatus = "expired"
	StatusRefunded  PaymentStatus = "refunded"
)

type Identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type Payer struct {
	Email          string          `json:"email,omitempty"`
	Identification *Identification `json:"identification,omitempty"`
}

// Payment is the subset of a Mercado Pago payment resource this service reads.
type Payment struct {
	ID                int64           `json:"id"`
	Status            PaymentStatus   `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	Description       string          `json:"description"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	Payer             Payer           `json:"payer"`
}

type PixRequest struct {
	Amount      decimal.Decimal
	Description string
	Email       string
	CPF         string
}

type createPaymentRequest struct {
	TransactionAmount float64 `json:"transaction_amount"`
	Description       string  `json:"description,omitempty"`
	PaymentMethodID   string  `json:"payment_method_id"`
	Payer             Payer   `json:"payer"`
}

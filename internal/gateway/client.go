package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

var (
	// Error is the error class for failures talking to the payment gateway.
	Error = errs.Class("gateway")

	ErrPaymentNotFound = errors.New("payment not found")
)

// StatusError carries a non-2xx upstream response for diagnostics.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status: %d: %s", e.StatusCode, e.Body)
}

type Config struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// Client is a Mercado Pago REST client. It holds no per-request state and is
// safe for concurrent use.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
	log     *zap.Logger
}

func New(logger *zap.Logger, cfg Config) *Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 100

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.AccessToken,
		timeout: cfg.Timeout,
		http:    &http.Client{Transport: t},
		log:     logger.Named("gateway"),
	}
}

// FetchPayment returns the authoritative state of a payment. An upstream 404
// is reported as ErrPaymentNotFound; every other failure is of class Error.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	body, err := c.PaymentBody(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	var payment Payment
	if err := json.Unmarshal(body, &payment); err != nil {
		return nil, Error.New("decode payment %s: %v", paymentID, err)
	}
	return &payment, nil
}

// PaymentBody returns the raw payment resource as sent by the gateway.
func (c *Client) PaymentBody(ctx context.Context, paymentID string) ([]byte, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, Error.New("payment id is required")
	}

	body, err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, nil)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("payment %s: %w", paymentID, ErrPaymentNotFound)
		}
		return nil, err
	}
	return body, nil
}

// CreatePixPayment asks the gateway for a new PIX charge and returns the
// created payment resource untouched, QR code included.
func (c *Client) CreatePixPayment(ctx context.Context, req PixRequest) ([]byte, error) {
	payload := createPaymentRequest{
		TransactionAmount: req.Amount.Round(2).InexactFloat64(),
		Description:       req.Description,
		PaymentMethodID:   "pix",
		Payer: Payer{
			Email: req.Email,
			Identification: &Identification{
				Type:   "CPF",
				Number: req.CPF,
			},
		},
	}

	headers := map[string]string{
		"X-Idempotency-Key": uuid.NewString(),
	}
	return c.do(ctx, http.MethodPost, "/v1/payments", payload, headers)
}

func (c *Client) do(ctx context.Context, method, path string, payload any, headers map[string]string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, Error.New("encode request: %v", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, Error.New("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return nil, Error.New("do request: %v", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, Error.New("read body: %v", err)
	}

	c.log.Debug("gateway request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", res.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, Error.Wrap(&StatusError{StatusCode: res.StatusCode, Body: body})
	}
	return body, nil
}

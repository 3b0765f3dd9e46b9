package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

type BrevoConfig struct {
	BaseURL     string
	APIKey      string
	TemplateID  int64
	SenderName  string
	SenderEmail string
}

type brevoContact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoEmail struct {
	Sender     brevoContact   `json:"sender"`
	ReplyTo    brevoContact   `json:"replyTo"`
	To         []brevoContact `json:"to"`
	TemplateID int64          `json:"templateId"`
}

// Brevo sends the subscription confirmation template through the Brevo
// transactional email API. Message.Recipient is the customer address.
type Brevo struct {
	cfg  BrevoConfig
	http *http.Client
}

func NewBrevo(cfg BrevoConfig) *Brevo {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Brevo{cfg: cfg, http: &http.Client{}}
}

func (b *Brevo) Name() string { return "email" }

func (b *Brevo) Send(ctx context.Context, msg Message) error {
	if msg.Recipient == "" {
		return errors.New("email recipient is required")
	}

	sender := brevoContact{Name: b.cfg.SenderName, Email: b.cfg.SenderEmail}
	payload, err := json.Marshal(brevoEmail{
		Sender:     sender,
		ReplyTo:    sender,
		To:         []brevoContact{{Email: msg.Recipient}},
		TemplateID: b.cfg.TemplateID,
	})
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/v3/smtp/email", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", b.cfg.APIKey)

	res, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		d, _ := io.ReadAll(res.Body)
		return fmt.Errorf("http status: %d: %s", res.StatusCode, d)
	}
	return nil
}

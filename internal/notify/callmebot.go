package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type CallMeBotConfig struct {
	BaseURL string
	APIKey  string
	Phone   string
}

// CallMeBot posts WhatsApp messages to the operator's phone. An empty
// Message.Recipient falls back to the configured phone.
type CallMeBot struct {
	cfg  CallMeBotConfig
	http *http.Client
}

func NewCallMeBot(cfg CallMeBotConfig) *CallMeBot {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &CallMeBot{cfg: cfg, http: &http.Client{}}
}

func (c *CallMeBot) Name() string { return "whatsapp" }

func (c *CallMeBot) Send(ctx context.Context, msg Message) error {
	phone := msg.Recipient
	if phone == "" {
		phone = c.cfg.Phone
	}

	q := url.Values{}
	q.Set("phone", phone)
	q.Set("text", msg.Text)
	q.Set("apikey", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/whatsapp.php?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		d, _ := io.ReadAll(res.Body)
		return fmt.Errorf("http status: %d: %s", res.StatusCode, d)
	}
	return nil
}

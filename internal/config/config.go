package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type HttpServer struct {
	Address string
}

type Postgres struct {
	DSN     string
	Timeout time.Duration
}

type MercadoPago struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

type Brevo struct {
	BaseURL     string
	APIKey      string
	TemplateID  int64
	SenderName  string
	SenderEmail string
}

type CallMeBot struct {
	BaseURL string
	APIKey  string
	Phone   string
}

type Redis struct {
	Address string
	TTL     time.Duration
}

type Kafka struct {
	Brokers []string
	Topic   string
}

type Notify struct {
	Timeout time.Duration
}

type Outbox struct {
	Interval  time.Duration
	BatchSize int
}

// minTimeout rejects durations given without a unit, which viper reads
// as nanoseconds.
const minTimeout = time.Millisecond

type Config struct {
	Http        HttpServer
	Postgres    Postgres
	MercadoPago MercadoPago
	Brevo       Brevo
	CallMeBot   CallMeBot
	Notify      Notify
	Redis       Redis
	Kafka       Kafka
	Outbox      Outbox
	LogLevel    string
}

// Load reads the configuration from the environment, falling back to
// defaults for everything that has a sensible one.
func Load() Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDRESS", ":8080")
	v.SetDefault("STORE_TIMEOUT", 5*time.Second)
	v.SetDefault("MERCADO_PAGO_BASE_URL", "https://api.mercadopago.com")
	v.SetDefault("GATEWAY_TIMEOUT", 10*time.Second)
	v.SetDefault("BREVO_BASE_URL", "https://api.brevo.com")
	v.SetDefault("BREVO_TEMPLATE_ID", 3)
	v.SetDefault("BREVO_SENDER_NAME", "Qartinha")
	v.SetDefault("BREVO_SENDER_EMAIL", "contato@qartinha.com.br")
	v.SetDefault("CALLMEBOT_BASE_URL", "https://api.callmebot.com")
	v.SetDefault("NOTIFY_TIMEOUT", 10*time.Second)
	v.SetDefault("REDIS_TTL", 5*time.Second)
	v.SetDefault("KAFKA_TOPIC", "subscription-events")
	v.SetDefault("OUTBOX_INTERVAL", time.Second)
	v.SetDefault("OUTBOX_BATCH_SIZE", 100)
	v.SetDefault("LOG_LEVEL", "info")

	var brokers []string
	for _, b := range strings.Split(v.GetString("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return Config{
		Http: HttpServer{
			Address: v.GetString("HTTP_ADDRESS"),
		},
		Postgres: Postgres{
			DSN:     v.GetString("POSTGRES_DSN"),
			Timeout: v.GetDuration("STORE_TIMEOUT"),
		},
		MercadoPago: MercadoPago{
			BaseURL:     v.GetString("MERCADO_PAGO_BASE_URL"),
			AccessToken: v.GetString("MERCADO_PAGO_ACCESS_TOKEN"),
			Timeout:     v.GetDuration("GATEWAY_TIMEOUT"),
		},
		Brevo: Brevo{
			BaseURL:     v.GetString("BREVO_BASE_URL"),
			APIKey:      v.GetString("BREVO_API_KEY"),
			TemplateID:  v.GetInt64("BREVO_TEMPLATE_ID"),
			SenderName:  v.GetString("BREVO_SENDER_NAME"),
			SenderEmail: v.GetString("BREVO_SENDER_EMAIL"),
		},
		CallMeBot: CallMeBot{
			BaseURL: v.GetString("CALLMEBOT_BASE_URL"),
			APIKey:  v.GetString("CALLMEBOT_API_KEY"),
			Phone:   v.GetString("CALLMEBOT_PHONE"),
		},
		Notify: Notify{
			Timeout: v.GetDuration("NOTIFY_TIMEOUT"),
		},
		Redis: Redis{
			Address: v.GetString("REDIS_ADDRESS"),
			TTL:     v.GetDuration("REDIS_TTL"),
		},
		Kafka: Kafka{
			Brokers: brokers,
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		Outbox: Outbox{
			Interval:  v.GetDuration("OUTBOX_INTERVAL"),
			BatchSize: v.GetInt("OUTBOX_BATCH_SIZE"),
		},
		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),
	}
}

func (c Config) ValidateWebhook() error {
	var errs []error
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required"))
	}
	if c.MercadoPago.AccessToken == "" {
		errs = append(errs, errors.New("MERCADO_PAGO_ACCESS_TOKEN is required"))
	}
	errs = append(errs,
		checkTimeout("STORE_TIMEOUT", c.Postgres.Timeout),
		checkTimeout("GATEWAY_TIMEOUT", c.MercadoPago.Timeout),
		checkTimeout("NOTIFY_TIMEOUT", c.Notify.Timeout),
	)
	if c.Redis.Address != "" {
		errs = append(errs, checkTimeout("REDIS_TTL", c.Redis.TTL))
	}
	return errors.Join(errs...)
}

func (c Config) ValidateOutbox() error {
	var errs []error
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required"))
	}
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required"))
	}
	if c.Outbox.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", c.Outbox.BatchSize))
	}
	errs = append(errs, checkTimeout("OUTBOX_INTERVAL", c.Outbox.Interval))
	return errors.Join(errs...)
}

func checkTimeout(key string, d time.Duration) error {
	if d < minTimeout {
		return fmt.Errorf("%s must be at least %s, got %s (use a unit, e.g. 5s)", key, minTimeout, d)
	}
	return nil
}

func (c Config) NewLogger() (*zap.Logger, error) {
	if c.LogLevel == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

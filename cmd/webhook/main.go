package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Rhuan78/mercado-pago-qartinha/internal/api"
	"github.com/Rhuan78/mercado-pago-qartinha/internal/cache"
	"github.com/Rhuan78/mercado-pago-qartinha/internal/config"
	"github.com/Rhuan78/mercado-pago-qartinha/internal/gateway"
	"github.com/Rhuan78/mercado-pago-qartinha/internal/notify"
	"github.com/Rhuan78/mercado-pago-qartinha/internal/reconcile"
	"github.com/Rhuan78/mercado-pago-qartinha/internal/store"
)

func main() {
	if err := command().Execute(); err != nil {
		os.Exit(1)
	}
}

func command() *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Serve the Mercado Pago webhook and PIX endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cnf := config.Load()
			if err := cnf.ValidateWebhook(); err != nil {
				return err
			}

			logger, err := cnf.NewLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			cmd.SilenceUsage = true

			return run(cmd.Context(), logger, cnf, skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply database migrations on start")

	return cmd
}

func run(ctx context.Context, logger *zap.Logger, cnf config.Config, skipMigrations bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !skipMigrations {
		if err := store.Migrate(cnf.Postgres.DSN); err != nil {
			return err
		}
	}

	dbpool, err := store.Open(ctx, cnf.Postgres.DSN)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	payments := gateway.New(logger, gateway.Config{
		BaseURL:     cnf.MercadoPago.BaseURL,
		AccessToken: cnf.MercadoPago.AccessToken,
		Timeout:     cnf.MercadoPago.Timeout,
	})

	dispatcher := notify.NewDispatcher(logger, cnf.Notify.Timeout)
	defer dispatcher.Wait()

	var channels reconcile.Channels
	if cnf.Brevo.APIKey != "" {
		channels.Email = notify.NewBrevo(notify.BrevoConfig{
			BaseURL:     cnf.Brevo.BaseURL,
			APIKey:      cnf.Brevo.APIKey,
			TemplateID:  cnf.Brevo.TemplateID,
			SenderName:  cnf.Brevo.SenderName,
			SenderEmail: cnf.Brevo.SenderEmail,
		})
	} else {
		logger.Warn("BREVO_API_KEY not set, confirmation emails disabled")
	}
	if cnf.CallMeBot.APIKey != "" && cnf.CallMeBot.Phone != "" {
		channels.Messaging = notify.NewCallMeBot(notify.CallMeBotConfig{
			BaseURL: cnf.CallMeBot.BaseURL,
			APIKey:  cnf.CallMeBot.APIKey,
			Phone:   cnf.CallMeBot.Phone,
		})
	} else {
		logger.Warn("CALLMEBOT_API_KEY or CALLMEBOT_PHONE not set, WhatsApp messages disabled")
	}

	engine := reconcile.New(
		logger,
		payments,
		store.NewSubscriptions(dbpool, cnf.Postgres.Timeout),
		dispatcher,
		channels,
	)

	var paymentCache api.PaymentCache
	if cnf.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cnf.Redis.Address})
		defer rdb.Close()
		paymentCache = cache.NewPaymentCache(rdb, cnf.Redis.TTL)
	}

	e := api.New(logger, engine, payments, paymentCache, dbpool).Echo()

	errc := make(chan error, 1)
	go func() {
		logger.Info("server started", zap.String("address", cnf.Http.Address))
		if err := e.Start(cnf.Http.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Rhuan78/mercado-pago-qartinha/internal/config"
	"github.com/Rhuan78/mercado-pago-qartinha/internal/outbox"
	"github.com/Rhuan78/mercado-pago-qartinha/internal/store"
)

func main() {
	if err := command().Execute(); err != nil {
		os.Exit(1)
	}
}

func command() *cobra.Command {
	var metricsAddress string

	cmd := &cobra.Command{
		Use:   "outbox-processor",
		Short: "Relay subscription events from the outbox table to Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			cnf := config.Load()
			if err := cnf.ValidateOutbox(); err != nil {
				return err
			}

			logger, err := cnf.NewLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			cmd.SilenceUsage = true

			return run(cmd.Context(), logger, cnf, metricsAddress)
		},
	}
	cmd.Flags().StringVar(&metricsAddress, "metrics-address", ":9090", "address to expose prometheus metrics on, empty to disable")

	return cmd
}

func run(ctx context.Context, logger *zap.Logger, cnf config.Config, metricsAddress string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbpool, err := store.Open(ctx, cnf.Postgres.DSN)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	publisher := outbox.NewKafkaPublisher(cnf.Kafka.Brokers, cnf.Kafka.Topic)
	defer publisher.Close()

	if metricsAddress != "" {
		srv := &http.Server{Addr: metricsAddress, Handler: promhttp.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	processor := outbox.NewProcessor(
		logger,
		store.NewOutbox(dbpool),
		publisher,
		cnf.Outbox.Interval,
		cnf.Outbox.BatchSize,
	)

	logger.Info("outbox processor started",
		zap.Strings("brokers", cnf.Kafka.Brokers),
		zap.String("topic", cnf.Kafka.Topic),
	)
	return processor.Run(ctx)
}

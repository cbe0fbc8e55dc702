package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashendes/order-saga/internal/clients"
	"github.com/ashendes/order-saga/internal/config"
	"github.com/ashendes/order-saga/internal/logging"
	"github.com/ashendes/order-saga/internal/orders"
	"github.com/ashendes/order-saga/internal/server"
	"github.com/ashendes/order-saga/internal/tracing"
	log "github.com/sirupsen/logrus"
)

const serviceName = "order-service"

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("Order service stopped")
	}
}

func run() error {
	cfg, err := config.Load(config.Env("ORDER_CONFIG_FILE", ""))
	if err != nil {
		return err
	}
	logger := logging.New(serviceName, cfg.LogLevel)

	tp, err := tracing.InitTracerProvider(serviceName, cfg.Tracing.JaegerEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Warn("Tracer shutdown failed")
		}
	}()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var publisher orders.Publisher = orders.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := orders.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer func() {
			if err := kp.Close(); err != nil {
				logger.WithError(err).Warn("Kafka writer close failed")
			}
		}()
		publisher = kp
	}

	res := clients.ResilienceFromConfig(serviceName, cfg)
	catalog := clients.NewCatalogClient(cfg.Endpoints, res, logger)
	payments := clients.NewPaymentClient(cfg.Endpoints, cfg.Retry, res, logger)

	svc := orders.NewService(catalog, payments, store, logger, orders.Options{
		ReserveStock:        cfg.ReserveStock,
		CompensationTimeout: cfg.Endpoints.Timeout,
		Publisher:           publisher,
	})

	router := server.NewRouter(serviceName, logger)
	orders.NewHandler(svc, logger, catalog.Circuit(), payments.Circuit()).Register(router)

	logger.WithFields(log.Fields{
		"catalog_url":   cfg.Endpoints.CatalogBaseURL,
		"payment_url":   cfg.Endpoints.PaymentBaseURL,
		"timeout":       cfg.Endpoints.Timeout.String(),
		"max_attempts":  cfg.Retry.MaxAttempts,
		"reserve_stock": cfg.ReserveStock,
		"store":         cfg.Store.Driver,
		"kafka":         len(cfg.Kafka.Brokers) > 0,
	}).Info("Order service starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx, cfg.HTTPAddr, router, logger)
}

func openStore(cfg config.Config) (orders.Store, func(), error) {
	if cfg.Store.Driver != config.DriverMySQL {
		return orders.NewMemoryStore(), func() {}, nil
	}
	gs, err := orders.OpenGormStore(cfg.Store.DSN)
	if err != nil {
		return nil, nil, err
	}
	return gs, func() { _ = gs.Close() }, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashendes/order-saga/internal/config"
	"github.com/ashendes/order-saga/internal/logging"
	"github.com/ashendes/order-saga/internal/patterns"
	"github.com/ashendes/order-saga/internal/payments"
	"github.com/ashendes/order-saga/internal/server"
	"github.com/ashendes/order-saga/internal/tracing"
	log "github.com/sirupsen/logrus"
)

const serviceName = "payment-service"

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("Payment service stopped")
	}
}

func run() error {
	logger := logging.New(serviceName, config.Env("LOG_LEVEL", "info"))

	tp, err := tracing.InitTracerProvider(serviceName, config.Env("JAEGER_ENDPOINT", ""))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	svc := payments.NewService(logger)
	router := server.NewRouter(serviceName, logger)
	payments.NewHandler(svc, patterns.NewChaos(serviceName, logger), logger).Register(router)

	addr := config.Env("PAYMENT_HTTP_ADDR", ":8082")
	logger.Info("Payment service starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx, addr, router, logger)
}

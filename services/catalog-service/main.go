package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashendes/order-saga/internal/catalog"
	"github.com/ashendes/order-saga/internal/config"
	"github.com/ashendes/order-saga/internal/logging"
	"github.com/ashendes/order-saga/internal/patterns"
	"github.com/ashendes/order-saga/internal/server"
	"github.com/ashendes/order-saga/internal/tracing"
	log "github.com/sirupsen/logrus"
)

const serviceName = "catalog-service"

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("Catalog service stopped")
	}
}

func run() error {
	logger := logging.New(serviceName, config.Env("LOG_LEVEL", "info"))

	tp, err := tracing.InitTracerProvider(serviceName, config.Env("JAEGER_ENDPOINT", ""))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	products := catalog.DefaultSeed()
	if path := config.Env("CATALOG_SEED_FILE", ""); path != "" {
		if products, err = catalog.LoadSeed(path); err != nil {
			return err
		}
	}

	svc := catalog.NewService(logger, products...)
	router := server.NewRouter(serviceName, logger)
	catalog.NewHandler(svc, patterns.NewChaos(serviceName, logger), logger).Register(router)

	addr := config.Env("CATALOG_HTTP_ADDR", ":8081")
	logger.WithField("products", len(products)).Info("Catalog service starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Run(ctx, addr, router, logger)
}

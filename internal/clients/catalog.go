package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ashendes/order-saga/internal/config"
	"github.com/ashendes/order-saga/internal/metrics"
	"github.com/ashendes/order-saga/internal/models"
	"github.com/ashendes/order-saga/internal/patterns"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CatalogClient reads product snapshots and reserves stock. It is safe for concurrent use.
type CatalogClient struct {
	http     *resty.Client
	breaker  *patterns.CircuitBreakerWrapper
	bulkhead *patterns.Bulkhead
	logger   log.FieldLogger
	tracer   trace.Tracer
}

// NewCatalogClient builds a client for ep.CatalogBaseURL.
func NewCatalogClient(ep config.Endpoints, r Resilience, logger log.FieldLogger) *CatalogClient {
	logger = logger.WithField("dependency", "catalog")
	return &CatalogClient{
		http:     newResty(ep.CatalogBaseURL, ep, logger),
		breaker:  patterns.NewCircuitBreaker("Catalog", r.Service, r.breaker(ErrProductNotFound, errOutOfStock), logger),
		bulkhead: patterns.NewBulkhead(r.BulkheadSize, "catalog", r.Service),
		logger:   logger,
		tracer:   otel.Tracer("catalog-client"),
	}
}

// Circuit exposes the breaker for status reporting.
func (c *CatalogClient) Circuit() *patterns.CircuitBreakerWrapper {
	return c.breaker
}

// FetchProduct makes one GET for the product. Failures are logged and returned
// as ErrProductNotFound or ErrCatalogUnavailable, both of which match
// ErrProductNotAvailable.
func (c *CatalogClient) FetchProduct(ctx context.Context, id string) (*models.Product, error) {
	ctx, span := c.tracer.Start(ctx, "catalog.FetchProduct", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	var product *models.Product
	err := c.call(ctx, "fetch_product", func() (interface{}, error) {
		resp, err := newRequest(ctx, c.http).
			SetPathParam("id", id).
			Get("/products/{id}/")
		if err != nil {
			return nil, fmt.Errorf("HTTP error: %w", err)
		}
		if resp.StatusCode() == http.StatusNotFound {
			return nil, ErrProductNotFound
		}
		if !resp.IsSuccess() {
			return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode())
		}

		var p models.Product
		if err := json.Unmarshal(resp.Body(), &p); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		return &p, nil
	}, func(v interface{}) { product = v.(*models.Product) })

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch product failed")
		c.logger.WithFields(log.Fields{"product_id": id, "error": err.Error()}).Warn("Failed to fetch product")
		if errors.Is(err, ErrProductNotFound) {
			return nil, fmt.Errorf("product %s: %w", id, ErrProductNotFound)
		}
		return nil, fmt.Errorf("product %s: %w: %w", id, ErrCatalogUnavailable, err)
	}
	return product, nil
}

// ReserveStock atomically takes one unit of the product. Any refusal or
// failure is reported as ErrReservationFailed.
func (c *CatalogClient) ReserveStock(ctx context.Context, id string) error {
	ctx, span := c.tracer.Start(ctx, "catalog.ReserveStock", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	err := c.call(ctx, "reserve_stock", func() (interface{}, error) {
		return nil, c.postStock(ctx, id, "reserve")
	}, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reserve stock failed")
		c.logger.WithFields(log.Fields{"product_id": id, "error": err.Error()}).Warn("Failed to reserve stock")
		return fmt.Errorf("product %s: %w: %w", id, ErrReservationFailed, err)
	}
	return nil
}

// ReleaseStock gives one unit back. It compensates an earlier ReserveStock.
func (c *CatalogClient) ReleaseStock(ctx context.Context, id string) error {
	ctx, span := c.tracer.Start(ctx, "catalog.ReleaseStock", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	err := c.call(ctx, "release_stock", func() (interface{}, error) {
		return nil, c.postStock(ctx, id, "release")
	}, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "release stock failed")
		c.logger.WithFields(log.Fields{"product_id": id, "error": err.Error()}).Error("Failed to release stock")
		return fmt.Errorf("release product %s: %w", id, err)
	}
	return nil
}

func (c *CatalogClient) postStock(ctx context.Context, id, action string) error {
	resp, err := newRequest(ctx, c.http).
		SetPathParam("id", id).
		Post("/products/{id}/" + action + "/")
	if err != nil {
		return fmt.Errorf("HTTP error: %w", err)
	}
	switch {
	case resp.IsSuccess():
		return nil
	case resp.StatusCode() == http.StatusConflict:
		return errOutOfStock
	case resp.StatusCode() == http.StatusNotFound:
		return ErrProductNotFound
	default:
		return fmt.Errorf("catalog returned status %d", resp.StatusCode())
	}
}

// call runs fn behind the bulkhead and the breaker and records the outcome.
func (c *CatalogClient) call(ctx context.Context, op string, fn func() (interface{}, error), onResult func(interface{})) error {
	start := time.Now()
	err := c.bulkhead.Execute(ctx, func() error {
		res, err := c.breaker.Execute(fn)
		if err != nil {
			return err
		}
		if onResult != nil {
			onResult(res)
		}
		return nil
	})
	metrics.ObserveUpstream("catalog", op, start, err)
	return err
}

// Package orders owns the order lifecycle: placement, persistence and the
// HTTP API in front of them.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashendes/order-saga/internal/metrics"
	"github.com/ashendes/order-saga/internal/models"
	"github.com/ashendes/order-saga/internal/patterns"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidInput is returned before any order is created.
var ErrInvalidInput = errors.New("invalid order input")

// ReasonPaymentFailed is the cancellation reason when payment is unavailable or declined.
const ReasonPaymentFailed = "Payment failed"

// Options tunes optional behaviour of the Service.
type Options struct {
	// ReserveStock turns on atomic reservation after the stock check.
	ReserveStock bool
	// CompensationTimeout bounds each stock release. Zero uses patterns.DefaultTimeout.
	CompensationTimeout time.Duration
	// Publisher receives terminal order events. Nil drops them.
	Publisher Publisher
}

// Service places orders and composes order details. It holds no
// per-request state and is safe for concurrent use.
type Service struct {
	catalog   CatalogGateway
	payments  PaymentGateway
	store     Store
	publisher Publisher
	opts      Options
	logger    log.FieldLogger
	tracer    trace.Tracer
}

// NewService wires the orchestrator to its collaborators.
func NewService(catalog CatalogGateway, payments PaymentGateway, store Store, logger log.FieldLogger, opts Options) *Service {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Service{
		catalog:   catalog,
		payments:  payments,
		store:     store,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		tracer:    otel.Tracer("order-service"),
	}
}

// CreateOrder runs the placement saga and returns the order in its final
// state. A CANCELLED order is a normal result, not an error. Errors are
// ErrInvalidInput or a store failure.
//
// Once input is accepted the saga runs to completion even if ctx is
// cancelled. Only the per-call client timeouts bound it.
func (s *Service) CreateOrder(ctx context.Context, customerName string, productIDs []string) (*models.Order, error) {
	if strings.TrimSpace(customerName) == "" {
		return nil, fmt.Errorf("%w: customer_name is required", ErrInvalidInput)
	}
	if len(productIDs) == 0 {
		return nil, fmt.Errorf("%w: product_ids must not be empty", ErrInvalidInput)
	}
	for i, id := range productIDs {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("%w: product_ids[%d] is blank", ErrInvalidInput, i)
		}
	}

	// The recorded outcome has to match the calls actually made, so a caller
	// hanging up must not abort a stage halfway.
	ctx = context.WithoutCancel(ctx)
	ctx, span := s.tracer.Start(ctx, "orders.CreateOrder", trace.WithAttributes(
		attribute.Int("order.product_count", len(productIDs)),
	))
	defer span.End()

	order := models.NewOrder(customerName)
	span.SetAttributes(attribute.String("order.id", order.ID))
	if err := s.store.Create(ctx, order); err != nil {
		return nil, s.storeFailure(span, order, err)
	}

	logger := s.logger.WithField("order_id", order.ID)
	logger.WithFields(log.Fields{
		"customer": customerName,
		"products": len(productIDs),
	}).Info("Processing new order")

	products, missing := s.fetchProducts(ctx, productIDs)
	if missing != "" {
		return s.cancel(ctx, span, order, fmt.Sprintf("Product %s not found", missing))
	}

	if err := CheckStock(products); err != nil {
		return s.cancel(ctx, span, order, err.Error())
	}

	var reserved []string
	if s.opts.ReserveStock {
		var failed *models.Product
		reserved, failed = s.reserve(ctx, order.ID, products)
		if failed != nil {
			s.release(ctx, order.ID, reserved)
			return s.cancel(ctx, span, order, (&OutOfStockError{Name: failed.Name}).Error())
		}
	}

	total := models.Money{}
	for _, p := range products {
		total = total.Add(p.Price)
	}
	if err := order.MarkAwaitingPayment(total); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, order); err != nil {
		s.release(ctx, order.ID, reserved)
		return nil, s.storeFailure(span, order, err)
	}
	logger.WithField("total", total.String()).Info("Order awaiting payment")

	if !s.pay(ctx, order.ID, total) {
		s.release(ctx, order.ID, reserved)
		return s.cancel(ctx, span, order, ReasonPaymentFailed)
	}

	if err := order.MarkPaid(); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, order); err != nil {
		return nil, s.storeFailure(span, order, err)
	}
	s.finish(ctx, span, order)
	return order, nil
}

// GetOrderDetails returns the stored order with the live payment status.
// A failed status lookup leaves the status nil instead of failing the read.
func (s *Service) GetOrderDetails(ctx context.Context, id string) (*models.OrderDetailsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "orders.GetOrderDetails", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := s.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load order failed")
		}
		return nil, err
	}

	details := &models.OrderDetailsResponse{Order: order}
	status, err := s.payments.PaymentStatus(ctx, id)
	if err == nil {
		details.PaymentStatus = &status
	}
	return details, nil
}

// fetchProducts reads each id in order and stops at the first failure,
// returning the id that could not be resolved.
func (s *Service) fetchProducts(ctx context.Context, ids []string) ([]models.Product, string) {
	ctx, done := s.stage(ctx, "fetch_products")
	products := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		p, err := s.catalog.FetchProduct(ctx, id)
		if err != nil {
			done(err)
			return nil, id
		}
		products = append(products, *p)
	}
	done(nil)
	return products, ""
}

// reserve takes one unit per product in order. It returns the ids reserved
// so far and the product that could not be reserved, if any.
func (s *Service) reserve(ctx context.Context, orderID string, products []models.Product) ([]string, *models.Product) {
	ctx, done := s.stage(ctx, "reserve_stock")
	reserved := make([]string, 0, len(products))
	for i := range products {
		if err := s.catalog.ReserveStock(ctx, products[i].ID); err != nil {
			s.logger.WithFields(log.Fields{
				"order_id":   orderID,
				"product_id": products[i].ID,
				"error":      err.Error(),
			}).Warn("Stock reservation failed")
			done(err)
			return reserved, &products[i]
		}
		reserved = append(reserved, products[i].ID)
	}
	done(nil)
	return reserved, nil
}

// release compensates reservations. It runs even if ctx was cancelled.
func (s *Service) release(ctx context.Context, orderID string, ids []string) {
	if len(ids) == 0 {
		return
	}
	ctx, done := s.stage(context.WithoutCancel(ctx), "release_stock")
	var errs []error
	for _, id := range ids {
		callCtx, cancel := patterns.WithTimeout(ctx, s.opts.CompensationTimeout)
		if err := s.catalog.ReleaseStock(callCtx, id); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}
	err := errors.Join(errs...)
	done(err)
	if err != nil {
		s.logger.WithFields(log.Fields{"order_id": orderID, "error": err.Error()}).Error("Failed to release reserved stock")
		return
	}
	s.logger.WithFields(log.Fields{"order_id": orderID, "released": len(ids)}).Info("Released reserved stock")
}

// pay reports whether the payment service settled the charge.
func (s *Service) pay(ctx context.Context, orderID string, total models.Money) bool {
	ctx, done := s.stage(ctx, "submit_payment")
	payment, err := s.payments.SubmitPayment(ctx, orderID, total)
	done(err)
	if err != nil {
		return false
	}
	if payment.Status != models.PaymentStatusCompleted {
		s.logger.WithFields(log.Fields{
			"order_id": orderID,
			"status":   payment.Status,
		}).Warn("Payment declined")
		return false
	}
	return true
}

func (s *Service) cancel(ctx context.Context, span trace.Span, order *models.Order, reason string) (*models.Order, error) {
	if err := order.Cancel(reason); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, order); err != nil {
		return nil, s.storeFailure(span, order, err)
	}
	s.finish(ctx, span, order)
	return order, nil
}

// finish records a terminal order and publishes its event.
func (s *Service) finish(ctx context.Context, span trace.Span, order *models.Order) {
	metrics.OrdersTotal.WithLabelValues(string(order.Status)).Inc()
	span.SetAttributes(attribute.String("order.status", string(order.Status)))

	fields := log.Fields{"order_id": order.ID, "status": order.Status}
	if order.CancellationReason != nil {
		fields["reason"] = *order.CancellationReason
		span.SetStatus(codes.Error, *order.CancellationReason)
	}
	s.logger.WithFields(fields).Info("Order finalized")

	pubCtx, cancel := patterns.WithTimeout(context.WithoutCancel(ctx), s.opts.CompensationTimeout)
	defer cancel()
	if err := s.publisher.Publish(pubCtx, models.EventFor(order)); err != nil {
		metrics.OrderEventsPublished.WithLabelValues("error").Inc()
		s.logger.WithFields(log.Fields{"order_id": order.ID, "error": err.Error()}).Error("Failed to publish order event")
		return
	}
	metrics.OrderEventsPublished.WithLabelValues("ok").Inc()
}

func (s *Service) storeFailure(span trace.Span, order *models.Order, err error) error {
	metrics.OrdersTotal.WithLabelValues("store_error").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, "persist order failed")
	s.logger.WithFields(log.Fields{"order_id": order.ID, "status": order.Status, "error": err.Error()}).Error("Failed to persist order")
	return fmt.Errorf("persist order %s: %w", order.ID, err)
}

// stage opens a span and a timer for one step of the saga.
func (s *Service) stage(ctx context.Context, name string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "orders."+name)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, name+" failed")
		}
		span.End()
		metrics.OrderStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

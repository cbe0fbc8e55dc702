package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
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

// PaymentClient submits charges with bounded retries and looks up payment
// status. It is safe for concurrent use.
type PaymentClient struct {
	submit      *resty.Client
	lookup      *resty.Client
	maxAttempts int
	breaker     *patterns.CircuitBreakerWrapper
	bulkhead    *patterns.Bulkhead
	logger      log.FieldLogger
	tracer      trace.Tracer
}

// NewPaymentClient builds a client for ep.PaymentBaseURL. Submissions make up
// to retry.MaxAttempts attempts with jittered exponential backoff between
// retry.BaseDelay and retry.MaxDelay.
func NewPaymentClient(ep config.Endpoints, retry config.Retry, r Resilience, logger log.FieldLogger) *PaymentClient {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	logger = logger.WithField("dependency", "payment")
	c := &PaymentClient{
		lookup:      newResty(ep.PaymentBaseURL, ep, logger),
		maxAttempts: retry.MaxAttempts,
		logger:      logger,
		tracer:      otel.Tracer("payment-client"),
	}
	c.breaker = patterns.NewCircuitBreaker("Payment", r.Service, r.breaker(errPaymentNotFound), c.logger)
	c.bulkhead = patterns.NewBulkhead(r.BulkheadSize, "payment", r.Service)
	c.submit = newResty(ep.PaymentBaseURL, ep, logger).
		SetRetryCount(retry.MaxAttempts - 1).
		SetRetryWaitTime(retry.BaseDelay).
		SetRetryMaxWaitTime(retry.MaxDelay).
		AddRetryCondition(c.attemptFailed)
	return c
}

// Circuit exposes the breaker for status reporting.
func (c *PaymentClient) Circuit() *patterns.CircuitBreakerWrapper {
	return c.breaker
}

// SubmitPayment charges amount for orderID. The first successful attempt wins.
// When every attempt fails the result is ErrPaymentUnavailable. A declined
// charge is not an error: the returned record carries status FAILED.
func (c *PaymentClient) SubmitPayment(ctx context.Context, orderID string, amount models.Money) (*models.Payment, error) {
	ctx, span := c.tracer.Start(ctx, "payment.SubmitPayment", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("payment.amount", amount.String()),
	))
	defer span.End()

	start := time.Now()
	var payment *models.Payment
	err := c.bulkhead.Execute(ctx, func() error {
		res, err := c.breaker.Execute(func() (interface{}, error) {
			resp, err := newRequest(ctx, c.submit).
				SetHeader("Content-Type", "application/json").
				SetBody(models.ChargeRequest{OrderID: orderID, Amount: &amount}).
				Post("/payments/")
			if err != nil {
				return nil, fmt.Errorf("HTTP error: %w", err)
			}
			if !resp.IsSuccess() {
				return nil, fmt.Errorf("payment service returned status %d: %s", resp.StatusCode(), resp.String())
			}

			var p models.Payment
			if err := json.Unmarshal(resp.Body(), &p); err != nil {
				return nil, fmt.Errorf("failed to parse response: %w", err)
			}
			return &p, nil
		})
		if err != nil {
			return err
		}
		payment = res.(*models.Payment)
		return nil
	})
	metrics.ObserveUpstream("payment", "submit_payment", start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment unavailable")
		c.logger.WithFields(log.Fields{
			"order_id":     orderID,
			"max_attempts": c.maxAttempts,
			"error":        err.Error(),
		}).Error("Payment attempts exhausted")
		return nil, fmt.Errorf("order %s: %w: %w", orderID, ErrPaymentUnavailable, err)
	}

	span.SetAttributes(attribute.String("payment.status", string(payment.Status)))
	return payment, nil
}

// PaymentStatus makes one lookup for orderID. Any failure, including an
// unknown order, is ErrPaymentStatusUnknown.
func (c *PaymentClient) PaymentStatus(ctx context.Context, orderID string) (models.PaymentStatus, error) {
	ctx, span := c.tracer.Start(ctx, "payment.PaymentStatus", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	start := time.Now()
	var status models.PaymentStatus
	err := c.bulkhead.Execute(ctx, func() error {
		res, err := c.breaker.Execute(func() (interface{}, error) {
			resp, err := newRequest(ctx, c.lookup).
				SetPathParam("order_id", orderID).
				Get("/payments/{order_id}/")
			if err != nil {
				return nil, fmt.Errorf("HTTP error: %w", err)
			}
			if resp.StatusCode() == http.StatusNotFound {
				return nil, errPaymentNotFound
			}
			if !resp.IsSuccess() {
				return nil, fmt.Errorf("payment service returned status %d", resp.StatusCode())
			}

			var p models.Payment
			if err := json.Unmarshal(resp.Body(), &p); err != nil {
				return nil, fmt.Errorf("failed to parse response: %w", err)
			}
			return p.Status, nil
		})
		if err != nil {
			return err
		}
		status = res.(models.PaymentStatus)
		return nil
	})
	metrics.ObserveUpstream("payment", "payment_status", start, err)

	if err != nil {
		level := log.WarnLevel
		if errors.Is(err, errPaymentNotFound) {
			level = log.DebugLevel
		}
		c.logger.WithFields(log.Fields{"order_id": orderID, "error": err.Error()}).Log(level, "Payment status lookup failed")
		return "", fmt.Errorf("order %s: %w: %w", orderID, ErrPaymentStatusUnknown, err)
	}
	return status, nil
}

// attemptFailed is the retry condition. It runs after every attempt, so it
// is also where failed attempts are logged and counted.
func (c *PaymentClient) attemptFailed(resp *resty.Response, err error) bool {
	if err == nil && resp != nil && resp.IsSuccess() {
		return false
	}

	attempt := 0
	fields := log.Fields{}
	if resp != nil && resp.Request != nil {
		attempt = resp.Request.Attempt
		fields["status_code"] = resp.StatusCode()
		trace.SpanFromContext(resp.Request.Context()).AddEvent("payment attempt failed",
			trace.WithAttributes(attribute.Int("attempt", attempt)))
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	fields["attempt"] = attempt
	fields["max_attempts"] = c.maxAttempts

	metrics.PaymentAttemptFailures.WithLabelValues(strconv.Itoa(attempt)).Inc()
	c.logger.WithFields(fields).Warn("Payment attempt failed")
	return true
}

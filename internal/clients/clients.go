// Package clients holds the HTTP clients the order service uses to reach
// the catalog and payment services.
package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashendes/order-saga/internal/config"
	"github.com/ashendes/order-saga/internal/patterns"
	"github.com/ashendes/order-saga/internal/tracing"
	"github.com/go-resty/resty/v2"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrProductNotAvailable covers every reason a product snapshot could not be obtained.
	ErrProductNotAvailable = errors.New("product not available")
	// ErrProductNotFound means the catalog answered 404.
	ErrProductNotFound = fmt.Errorf("product not found: %w", ErrProductNotAvailable)
	// ErrCatalogUnavailable means the catalog could not give a usable answer.
	ErrCatalogUnavailable = fmt.Errorf("catalog unavailable: %w", ErrProductNotAvailable)
	// ErrReservationFailed means a stock reservation was refused or could not be made.
	ErrReservationFailed = errors.New("stock reservation failed")
	// ErrPaymentUnavailable means every payment attempt failed.
	ErrPaymentUnavailable = errors.New("payment service unavailable")
	// ErrPaymentStatusUnknown means the payment status lookup failed.
	ErrPaymentStatusUnknown = errors.New("payment status unknown")

	errOutOfStock      = errors.New("out of stock")
	errPaymentNotFound = errors.New("payment not found")
)

// Resilience bundles the breaker and bulkhead settings shared by both clients.
type Resilience struct {
	Service      string
	Breaker      patterns.BreakerSettings
	BulkheadSize int
}

// ResilienceFromConfig maps the order-service config onto client settings.
func ResilienceFromConfig(service string, cfg config.Config) Resilience {
	return Resilience{
		Service: service,
		Breaker: patterns.BreakerSettings{
			MinRequests:      cfg.Breaker.MinRequests,
			FailureRatio:     cfg.Breaker.FailureRatio,
			HalfOpenRequests: cfg.Breaker.HalfOpenRequests,
			Interval:         cfg.Breaker.Interval,
			OpenTimeout:      cfg.Breaker.OpenTimeout,
		},
		BulkheadSize: cfg.BulkheadSize,
	}
}

// breaker returns the breaker settings with definitive answers, such as a
// 404, counted as successes.
func (r Resilience) breaker(definitive ...error) patterns.BreakerSettings {
	s := r.Breaker
	if s.MinRequests == 0 {
		s = patterns.DefaultBreakerSettings()
	}
	s.IsSuccessful = func(err error) bool {
		if err == nil {
			return true
		}
		for _, d := range definitive {
			if errors.Is(err, d) {
				return true
			}
		}
		return false
	}
	return s
}

// newResty builds a client whose own warnings go to logger.
func newResty(baseURL string, ep config.Endpoints, logger log.FieldLogger) *resty.Client {
	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = patterns.DefaultTimeout
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetLogger(logger.WithField("component", "resty")).
		SetRetryCount(0)
}

func newRequest(ctx context.Context, c *resty.Client) *resty.Request {
	req := c.R().SetContext(ctx)
	tracing.InjectHeaders(ctx, req.Header)
	return req
}

// Package payments is the payment service that settles order charges.
package payments

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ashendes/order-saga/internal/metrics"
	"github.com/ashendes/order-saga/internal/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrPaymentNotFound is returned when an order has no payment record.
var ErrPaymentNotFound = errors.New("payment not found")

// Service keeps one payment record per order. It is safe for concurrent use.
type Service struct {
	mu       sync.RWMutex
	payments map[string]*models.Payment // by order id
	logger   log.FieldLogger
	now      func() time.Time
}

// NewService returns an empty payment service.
func NewService(logger log.FieldLogger) *Service {
	return &Service{
		payments: make(map[string]*models.Payment),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Charge settles amount for orderID. A non-positive amount is recorded as
// FAILED. Charging the same order again overwrites its record.
func (s *Service) Charge(orderID string, amount models.Money) models.Payment {
	status := models.PaymentStatusCompleted
	if !amount.IsPositive() {
		status = models.PaymentStatusFailed
	}

	s.mu.Lock()
	p, ok := s.payments[orderID]
	if !ok {
		p = &models.Payment{ID: uuid.New().String(), OrderID: orderID}
		s.payments[orderID] = p
	}
	p.Amount = amount
	p.Status = status
	p.Timestamp = s.now()
	out := *p
	s.mu.Unlock()

	f, _ := amount.Float64()
	metrics.PaymentAmount.WithLabelValues(string(status)).Observe(f)

	s.logger.WithFields(log.Fields{
		"payment_id": out.ID,
		"order_id":   orderID,
		"amount":     amount.String(),
		"status":     status,
		"updated":    ok,
	}).Info("Payment processed")
	return out
}

// Get returns the payment recorded for orderID.
func (s *Service) Get(orderID string) (models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[orderID]
	if !ok {
		return models.Payment{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, orderID)
	}
	return *p, nil
}

package patterns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashendes/order-saga/internal/metrics"
)

// ErrBulkheadFull is returned when no slot frees up within the acquire timeout.
var ErrBulkheadFull = errors.New("bulkhead full")

// DefaultAcquireTimeout bounds how long a caller waits for a bulkhead slot.
const DefaultAcquireTimeout = 1 * time.Second

// Bulkhead implements the bulkhead pattern for resource isolation
type Bulkhead struct {
	semaphore      chan struct{}
	name           string
	service        string
	acquireTimeout time.Duration
}

// NewBulkhead creates a new bulkhead with specified capacity
func NewBulkhead(size int, name, service string) *Bulkhead {
	if size < 1 {
		size = 1
	}
	return &Bulkhead{
		semaphore:      make(chan struct{}, size),
		name:           name,
		service:        service,
		acquireTimeout: DefaultAcquireTimeout,
	}
}

// Execute runs fn once a slot is free. It gives up when ctx is done or the
// acquire timeout passes, whichever comes first.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	timer := time.NewTimer(b.acquireTimeout)
	defer timer.Stop()

	select {
	case b.semaphore <- struct{}{}:
		metrics.BulkheadActiveRequests.WithLabelValues(b.service, b.name).Inc()
		defer func() {
			<-b.semaphore
			metrics.BulkheadActiveRequests.WithLabelValues(b.service, b.name).Dec()
		}()
		return fn()

	case <-ctx.Done():
		metrics.BulkheadRejectedRequests.WithLabelValues(b.service, b.name).Inc()
		return fmt.Errorf("bulkhead %s: %w", b.name, ctx.Err())

	case <-timer.C:
		metrics.BulkheadRejectedRequests.WithLabelValues(b.service, b.name).Inc()
		return fmt.Errorf("bulkhead %s: %w", b.name, ErrBulkheadFull)
	}
}

// GetName returns the bulkhead name
func (b *Bulkhead) GetName() string {
	return b.name
}

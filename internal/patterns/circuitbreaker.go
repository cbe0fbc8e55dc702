package patterns

import (
	"errors"
	"fmt"
	"time"

	"github.com/ashendes/order-saga/internal/metrics"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when a breaker rejects a call without attempting it.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerSettings tunes when a breaker trips and how long it stays open.
type BreakerSettings struct {
	// MinRequests is how many calls a window needs before it can trip.
	MinRequests  uint32
	FailureRatio float64
	// HalfOpenRequests is how many trial calls pass while half-open.
	// Zero lets one through.
	HalfOpenRequests uint32
	Interval     time.Duration
	OpenTimeout  time.Duration
	// IsSuccessful classifies errors that must not count as failures,
	// such as a definitive "not found". Nil counts every error.
	IsSuccessful func(err error) bool
}

// DefaultBreakerSettings trips at 60% failures once 3 requests were seen.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MinRequests:      3,
		FailureRatio:     0.6,
		HalfOpenRequests: 1,
		Interval:         15 * time.Second,
		OpenTimeout:      30 * time.Second,
	}
}

// CircuitBreakerWrapper wraps gobreaker with metrics
type CircuitBreakerWrapper struct {
	*gobreaker.CircuitBreaker
	name    string
	service string
}

// NewCircuitBreaker creates a new circuit breaker with Prometheus metrics
func NewCircuitBreaker(name, service string, s BreakerSettings, logger log.FieldLogger) *CircuitBreakerWrapper {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         name,
		MaxRequests:  s.HalfOpenRequests,
		Interval:     s.Interval,
		Timeout:      s.OpenTimeout,
		IsSuccessful: s.IsSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(cbName string, from gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(service, cbName).Set(stateValue(to))

			logger.WithFields(log.Fields{
				"circuit": cbName,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	metrics.CircuitBreakerState.WithLabelValues(service, name).Set(0)

	return &CircuitBreakerWrapper{
		CircuitBreaker: cb,
		name:           name,
		service:        service,
	}
}

// Execute runs fn through the breaker. Rejections are reported as ErrCircuitOpen.
func (cb *CircuitBreakerWrapper) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cb.CircuitBreaker.Execute(fn)
	if err != nil {
		metrics.CircuitBreakerFailures.WithLabelValues(cb.service, cb.name).Inc()
	}
	return result, cb.formatError(err)
}

// GetState returns the current state of the circuit breaker
func (cb *CircuitBreakerWrapper) GetState() string {
	return cb.State().String()
}

// GetStateValue returns numeric value for the state (0=closed, 1=open, 2=half-open)
func (cb *CircuitBreakerWrapper) GetStateValue() int {
	return int(stateValue(cb.State()))
}

func (cb *CircuitBreakerWrapper) formatError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name)
	}
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s (half-open, too many requests)", ErrCircuitOpen, cb.name)
	}
	return err
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	case gobreaker.StateClosed:
		return 0
	default:
		return -1
	}
}

package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "endpoint", "status"},
	)

	// RequestDuration tracks HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "endpoint"},
	)

	// CircuitBreakerState tracks circuit breaker state (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service", "circuit_name"},
	)

	// CircuitBreakerFailures tracks circuit breaker failures
	CircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of circuit breaker failures",
		},
		[]string{"service", "circuit_name"},
	)

	// BulkheadActiveRequests tracks active requests in bulkhead
	BulkheadActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bulkhead_active_requests",
			Help: "Number of active requests in bulkhead",
		},
		[]string{"service", "bulkhead_name"},
	)

	// BulkheadRejectedRequests tracks rejected requests by bulkhead
	BulkheadRejectedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkhead_rejected_requests_total",
			Help: "Total number of rejected requests by bulkhead",
		},
		[]string{"service", "bulkhead_name"},
	)

	// OrdersTotal tracks orders by the status they ended the request in
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Total number of orders",
		},
		[]string{"status"},
	)

	// OrderStageDuration tracks how long each orchestration stage takes
	OrderStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "order_stage_duration_seconds",
			Help:    "Duration of each order placement stage in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// OrderEventsPublished tracks order event publishing by result
	OrderEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_events_published_total",
			Help: "Total number of order events handed to the publisher",
		},
		[]string{"result"},
	)

	// UpstreamRequestDuration tracks outbound calls to collaborator services
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Outbound request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dependency", "operation", "outcome"},
	)

	// PaymentAttemptFailures tracks failed payment submission attempts
	PaymentAttemptFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_attempt_failures_total",
			Help: "Total number of failed payment submission attempts",
		},
		[]string{"attempt"},
	)

	// InventoryLevel tracks current stock per product
	InventoryLevel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inventory_level",
			Help: "Current inventory level",
		},
		[]string{"product_id"},
	)

	// StockReservations tracks catalog reservation outcomes
	StockReservations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_reservations_total",
			Help: "Total number of stock reservation requests by result",
		},
		[]string{"result"},
	)

	// PaymentAmount tracks payment amounts by resulting status
	PaymentAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_amount_dollars",
			Help:    "Payment amounts in dollars",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000},
		},
		[]string{"status"},
	)

	// ChaosFailureRate tracks chaos engineering failure simulations
	ChaosFailureRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chaos_failure_enabled",
			Help: "Whether chaos failure mode is enabled (1=enabled, 0=disabled)",
		},
		[]string{"service"},
	)

	// ChaosSlowMode tracks slow response simulation
	ChaosSlowMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chaos_slow_mode_enabled",
			Help: "Whether chaos slow mode is enabled (1=enabled, 0=disabled)",
		},
		[]string{"service"},
	)
)

// ObserveUpstream records one outbound call that started at start.
func ObserveUpstream(dependency, operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	UpstreamRequestDuration.WithLabelValues(dependency, operation, outcome).Observe(time.Since(start).Seconds())
}

// PrometheusMiddleware creates a Gin middleware for automatic metrics collection
func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		// unmatched routes share one label so random paths can't blow up cardinality
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestsTotal.WithLabelValues(serviceName, c.Request.Method, endpoint, status).Inc()
		RequestDuration.WithLabelValues(serviceName, c.Request.Method, endpoint).Observe(duration)
	}
}

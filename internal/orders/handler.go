package orders

import (
	"errors"
	"net/http"

	"github.com/ashendes/order-saga/internal/metrics"
	"github.com/ashendes/order-saga/internal/models"
	"github.com/ashendes/order-saga/internal/patterns"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Handler exposes the Service over HTTP.
type Handler struct {
	svc      *Service
	logger   log.FieldLogger
	circuits []*patterns.CircuitBreakerWrapper
}

// NewHandler returns a Handler. circuits are reported by the circuit status endpoint.
func NewHandler(svc *Service, logger log.FieldLogger, circuits ...*patterns.CircuitBreakerWrapper) *Handler {
	return &Handler{svc: svc, logger: logger, circuits: circuits}
}

// Register mounts the order routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/orders/", h.createOrder)
	r.GET("/orders/circuit-status", h.circuitStatus)
	r.GET("/orders/:orderId/", h.getOrder)
}

// createOrder answers 201 with the order, or 400 with the order when it was cancelled.
func (h *Handler) createOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.OrdersTotal.WithLabelValues("validation_failed").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	order, err := h.svc.CreateOrder(c.Request.Context(), req.CustomerName, req.ProductIDs)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			metrics.OrdersTotal.WithLabelValues("validation_failed").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithField("error", err.Error()).Error("Order creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if order.Status == models.OrderStatusCancelled {
		c.JSON(http.StatusBadRequest, order)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) getOrder(c *gin.Context) {
	orderID := c.Param("orderId")

	details, err := h.svc.GetOrderDetails(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":    "Order not found",
				"order_id": orderID,
			})
			return
		}
		h.logger.WithFields(log.Fields{"order_id": orderID, "error": err.Error()}).Error("Order lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) circuitStatus(c *gin.Context) {
	status := make(gin.H, len(h.circuits))
	for _, cb := range h.circuits {
		status[cb.Name()] = gin.H{
			"state": cb.GetState(),
			"value": cb.GetStateValue(),
		}
	}
	c.JSON(http.StatusOK, status)
}

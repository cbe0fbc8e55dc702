package payments

import (
	"net/http"

	"github.com/ashendes/order-saga/internal/models"
	"github.com/ashendes/order-saga/internal/patterns"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Handler serves the payment API.
type Handler struct {
	svc    *Service
	chaos  *patterns.Chaos
	logger log.FieldLogger
}

// NewHandler returns a Handler.
func NewHandler(svc *Service, chaos *patterns.Chaos, logger log.FieldLogger) *Handler {
	return &Handler{svc: svc, chaos: chaos, logger: logger}
}

// Register mounts the payment and chaos routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/payments/", h.charge)
	r.GET("/payments/:orderId/", h.getPayment)
	h.chaos.Register(r, "payment")
}

func (h *Handler) charge(c *gin.Context) {
	var req models.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order_id and amount required"})
		return
	}

	if err := h.chaos.Inject(c.Request.Context()); err != nil {
		h.logger.WithFields(log.Fields{
			"order_id": req.OrderID,
			"amount":   req.Amount.String(),
		}).Warn("Chaos: Simulated payment failure")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment service temporarily unavailable"})
		return
	}

	c.JSON(http.StatusCreated, h.svc.Charge(req.OrderID, *req.Amount))
}

func (h *Handler) getPayment(c *gin.Context) {
	orderID := c.Param("orderId")

	p, err := h.svc.Get(orderID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}

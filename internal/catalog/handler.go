package catalog

import (
	"errors"
	"net/http"

	"github.com/ashendes/order-saga/internal/models"
	"github.com/ashendes/order-saga/internal/patterns"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Handler serves the catalog API. Chaos, when enabled, applies to reads and stock changes.
type Handler struct {
	svc    *Service
	chaos  *patterns.Chaos
	logger log.FieldLogger
}

// NewHandler returns a Handler.
func NewHandler(svc *Service, chaos *patterns.Chaos, logger log.FieldLogger) *Handler {
	return &Handler{svc: svc, chaos: chaos, logger: logger}
}

// Register mounts the product and chaos routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/products/", h.listProducts)
	r.POST("/products/", h.createProduct)
	r.GET("/products/:id/", h.getProduct)
	r.POST("/products/:id/reserve/", h.reserve)
	r.POST("/products/:id/release/", h.release)
	h.chaos.Register(r, "catalog")
}

func (h *Handler) listProducts(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.List())
}

func (h *Handler) createProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	p, err := h.svc.Create(req)
	switch {
	case errors.Is(err, ErrInvalidProduct):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product data"})
	case errors.Is(err, ErrProductExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusCreated, p)
	}
}

func (h *Handler) getProduct(c *gin.Context) {
	id := c.Param("id")
	if !h.injectChaos(c, id) {
		return
	}

	p, err := h.svc.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found", "product_id": id})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) reserve(c *gin.Context) {
	id := c.Param("id")
	if !h.injectChaos(c, id) {
		return
	}

	p, err := h.svc.Reserve(id)
	switch {
	case errors.Is(err, ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found", "product_id": id})
	case errors.Is(err, ErrOutOfStock):
		c.JSON(http.StatusConflict, models.StockChangeResponse{ProductID: id, Stock: p.Stock, Message: "Out of stock"})
	default:
		c.JSON(http.StatusOK, models.StockChangeResponse{ProductID: id, Stock: p.Stock, Message: "Reserved"})
	}
}

func (h *Handler) release(c *gin.Context) {
	id := c.Param("id")

	p, err := h.svc.Release(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found", "product_id": id})
		return
	}
	c.JSON(http.StatusOK, models.StockChangeResponse{ProductID: id, Stock: p.Stock, Message: "Released"})
}

// injectChaos reports whether the request may proceed.
func (h *Handler) injectChaos(c *gin.Context, id string) bool {
	if err := h.chaos.Inject(c.Request.Context()); err != nil {
		h.logger.WithField("product_id", id).Warn("Chaos: Simulated failure")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Catalog service temporarily unavailable"})
		return false
	}
	return true
}

// Package catalog is the product and stock service the order service reads from.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ashendes/order-saga/internal/metrics"
	"github.com/ashendes/order-saga/internal/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrProductExists   = errors.New("product already exists")
	ErrInvalidProduct  = errors.New("invalid product data")
	ErrOutOfStock      = errors.New("out of stock")
)

// Service holds products in memory. It is safe for concurrent use.
type Service struct {
	mu       sync.RWMutex
	products map[string]*models.Product
	logger   log.FieldLogger
}

// NewService returns a catalog seeded with products.
func NewService(logger log.FieldLogger, products ...models.Product) *Service {
	s := &Service{
		products: make(map[string]*models.Product, len(products)),
		logger:   logger,
	}
	for i := range products {
		p := products[i]
		s.products[p.ID] = &p
		metrics.InventoryLevel.WithLabelValues(p.ID).Set(float64(p.Stock))
	}
	return s
}

// List returns every product ordered by id.
func (s *Service) List() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns one product.
func (s *Service) Get(id string) (models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return models.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return *p, nil
}

// Create adds a product. Price must be positive and stock non-negative.
func (s *Service) Create(req models.CreateProductRequest) (models.Product, error) {
	if req.Price == nil || !req.Price.IsPositive() || req.Stock == nil || *req.Stock < 0 {
		return models.Product{}, ErrInvalidProduct
	}

	p := models.Product{ID: req.ID, Name: req.Name, Price: *req.Price, Stock: *req.Stock}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.products[p.ID]; exists {
		return models.Product{}, fmt.Errorf("%w: %s", ErrProductExists, p.ID)
	}
	s.products[p.ID] = &p
	metrics.InventoryLevel.WithLabelValues(p.ID).Set(float64(p.Stock))

	s.logger.WithFields(log.Fields{"product_id": p.ID, "stock": p.Stock}).Info("Product created")
	return p, nil
}

// Reserve takes one unit if at least one is left. The check and the
// decrement happen under one lock.
func (s *Service) Reserve(id string) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		metrics.StockReservations.WithLabelValues("not_found").Inc()
		return models.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if p.Stock < 1 {
		metrics.StockReservations.WithLabelValues("out_of_stock").Inc()
		return *p, fmt.Errorf("%w: %s", ErrOutOfStock, id)
	}
	p.Stock--
	metrics.StockReservations.WithLabelValues("reserved").Inc()
	metrics.InventoryLevel.WithLabelValues(id).Set(float64(p.Stock))

	s.logger.WithFields(log.Fields{"product_id": id, "stock": p.Stock}).Info("Stock reserved")
	return *p, nil
}

// Release returns one unit.
func (s *Service) Release(id string) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return models.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	p.Stock++
	metrics.StockReservations.WithLabelValues("released").Inc()
	metrics.InventoryLevel.WithLabelValues(id).Set(float64(p.Stock))

	s.logger.WithFields(log.Fields{"product_id": id, "stock": p.Stock}).Info("Stock released")
	return *p, nil
}

package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ashendes/order-saga/internal/models"
)

// ErrOrderNotFound is returned for unknown order ids.
var ErrOrderNotFound = errors.New("order not found")

// Store persists orders. Implementations reject updates to orders whose
// stored status is terminal with models.ErrOrderFinalized.
type Store interface {
	Create(ctx context.Context, o *models.Order) error
	Update(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, id string) (*models.Order, error)
}

// MemoryStore keeps orders in a map. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*models.Order)}
}

// Create stores a copy of o. Ids must be unique.
func (s *MemoryStore) Create(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	s.orders[o.ID] = o.Clone()
	return nil
}

// Update replaces the stored order unless it already reached a terminal state.
func (s *MemoryStore) Update(_ context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.orders[o.ID]
	if !ok {
		return fmt.Errorf("update %s: %w", o.ID, ErrOrderNotFound)
	}
	if cur.Status.IsTerminal() {
		return fmt.Errorf("update %s: %w", o.ID, models.ErrOrderFinalized)
	}
	s.orders[o.ID] = o.Clone()
	return nil
}

// Get returns a copy of the stored order.
func (s *MemoryStore) Get(_ context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrOrderNotFound)
	}
	return o.Clone(), nil
}

// Len reports how many orders are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

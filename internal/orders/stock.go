package orders

import (
	"fmt"

	"github.com/ashendes/order-saga/internal/models"
)

// OutOfStockError names the first product that cannot be sold.
type OutOfStockError struct {
	Name string
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("Product %s is out of stock.", e.Name)
}

// CheckStock fails on the first product with no stock left. The snapshot
// may be stale by the time payment runs; reservation closes that gap.
func CheckStock(products []models.Product) error {
	for _, p := range products {
		if p.Stock <= 0 {
			return &OutOfStockError{Name: p.Name}
		}
	}
	return nil
}

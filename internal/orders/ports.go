package orders

import (
	"context"

	"github.com/ashendes/order-saga/internal/models"
)

// CatalogGateway is what the orchestrator needs from the catalog.
type CatalogGateway interface {
	FetchProduct(ctx context.Context, id string) (*models.Product, error)
	ReserveStock(ctx context.Context, id string) error
	ReleaseStock(ctx context.Context, id string) error
}

// PaymentGateway is what the orchestrator needs from the payment service.
type PaymentGateway interface {
	SubmitPayment(ctx context.Context, orderID string, amount models.Money) (*models.Payment, error)
	PaymentStatus(ctx context.Context, orderID string) (models.PaymentStatus, error)
}

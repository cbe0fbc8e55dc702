package models

import "time"

// PaymentStatus is the state of a payment record owned by the payment service.
type PaymentStatus string

// PaymentStatus constants
const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Payment represents a payment record. There is at most one per order.
type Payment struct {
	ID        string        `json:"id"`
	OrderID   string        `json:"order_id"`
	Amount    Money         `json:"amount"`
	Status    PaymentStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}

// ChargeRequest represents a payment charge request
type ChargeRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	Amount  *Money `json:"amount" binding:"required"`
}

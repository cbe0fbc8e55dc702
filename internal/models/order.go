package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

// OrderStatus constants
const (
	OrderStatusPendingCreation OrderStatus = "PENDING_CREATION"
	OrderStatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderStatusPaid            OrderStatus = "PAID"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

var (
	// ErrOrderFinalized is returned when a PAID or CANCELLED order is mutated.
	ErrOrderFinalized = errors.New("order is in a terminal state")
	// ErrInvalidTransition is returned for transitions the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Order represents a customer's purchase attempt and its disposition
type Order struct {
	ID                 string      `json:"id"`
	CustomerName       string      `json:"customer_name"`
	TotalAmount        *Money      `json:"total_amount"`
	Status             OrderStatus `json:"status"`
	CancellationReason *string     `json:"cancellation_reason"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// NewOrder creates an order in the pre-validation state with a fresh identifier.
func NewOrder(customerName string) *Order {
	now := time.Now().UTC()
	return &Order{
		ID:           uuid.New().String(),
		CustomerName: customerName,
		Status:       OrderStatusPendingCreation,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// MarkAwaitingPayment records the computed total once stock has been confirmed.
func (o *Order) MarkAwaitingPayment(total Money) error {
	if o.Status != OrderStatusPendingCreation {
		return fmt.Errorf("mark awaiting payment from %s: %w", o.Status, errInvalidTransition(o.Status))
	}
	o.TotalAmount = &total
	o.Status = OrderStatusAwaitingPayment
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkPaid moves an order that is awaiting payment to PAID.
func (o *Order) MarkPaid() error {
	if o.Status != OrderStatusAwaitingPayment {
		return fmt.Errorf("mark paid from %s: %w", o.Status, errInvalidTransition(o.Status))
	}
	o.Status = OrderStatusPaid
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel moves a non-terminal order to CANCELLED. Any total already recorded is kept.
func (o *Order) Cancel(reason string) error {
	if o.Status.IsTerminal() {
		return fmt.Errorf("cancel from %s: %w", o.Status, ErrOrderFinalized)
	}
	o.Status = OrderStatusCancelled
	o.CancellationReason = &reason
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Clone returns a deep copy so stores never share pointers with callers.
func (o *Order) Clone() *Order {
	cp := *o
	if o.TotalAmount != nil {
		total := *o.TotalAmount
		cp.TotalAmount = &total
	}
	if o.CancellationReason != nil {
		reason := *o.CancellationReason
		cp.CancellationReason = &reason
	}
	return &cp
}

func errInvalidTransition(from OrderStatus) error {
	if from.IsTerminal() {
		return ErrOrderFinalized
	}
	return ErrInvalidTransition
}

// CreateOrderRequest represents the request to create a new order
type CreateOrderRequest struct {
	CustomerName string   `json:"customer_name" binding:"required"`
	ProductIDs   []string `json:"product_ids" binding:"required,min=1,dive,required"`
}

// OrderDetailsResponse is an order plus the live payment status, which may be null.
type OrderDetailsResponse struct {
	*Order
	PaymentStatus *PaymentStatus `json:"payment_status"`
}

// OrderEvent is published once an order reaches a terminal state.
type OrderEvent struct {
	OrderID            string      `json:"order_id"`
	Status             OrderStatus `json:"status"`
	TotalAmount        *Money      `json:"total_amount"`
	CancellationReason *string     `json:"cancellation_reason,omitempty"`
	OccurredAt         time.Time   `json:"occurred_at"`
}

// EventFor builds the terminal event for o.
func EventFor(o *Order) OrderEvent {
	cp := o.Clone()
	return OrderEvent{
		OrderID:            cp.ID,
		Status:             cp.Status,
		TotalAmount:        cp.TotalAmount,
		CancellationReason: cp.CancellationReason,
		OccurredAt:         cp.UpdatedAt,
	}
}

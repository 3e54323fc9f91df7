package domain

import (
	"context"
	"time"
)

// ProductFilter narrows product queries for projections.
type ProductFilter struct {
	FarmerID string
	Statuses []ProductStatus
}

// PaymentFilter narrows payment queries for rollups.
type PaymentFilter struct {
	FarmerID string
}

// ProductRepository persists products. UpdateStatus and
// UpdateStatusWithPayment are conditional on the stored status still
// matching expected, returning ErrConcurrentModification otherwise.
// The store never performs unconditional status writes.
type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	Get(ctx context.Context, id string) (*Product, error)
	UpdateStatus(ctx context.Context, p *Product, expected ProductStatus) error
	// UpdateStatusWithPayment applies the status write and the payment
	// insert as one atomic unit: both happen or neither does.
	UpdateStatusWithPayment(ctx context.Context, p *Product, expected ProductStatus, pay *Payment) error
	List(ctx context.Context, filter ProductFilter) ([]*Product, error)
	// FindDueCollections returns scheduled products whose collection
	// date is at or before asOf.
	FindDueCollections(ctx context.Context, asOf time.Time) ([]*Product, error)
}

// OrderRepository persists orders with the same conditional-update
// contract as ProductRepository. UpdateStatusWithPayment must be
// idempotent with respect to the payment: if one already exists for
// the order, the status write still proceeds and no duplicate is
// inserted.
type OrderRepository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	UpdateStatus(ctx context.Context, o *Order, expected OrderStatus) error
	UpdateStatusWithPayment(ctx context.Context, o *Order, expected OrderStatus, pay *Payment) error
	ListByBuyer(ctx context.Context, buyerID string) ([]*Order, error)
}

// PaymentRepository persists payments. Create enforces at most one
// payment per order reference, returning ErrDuplicatePayment on a
// second insert.
type PaymentRepository interface {
	Create(ctx context.Context, pay *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	GetByOrder(ctx context.Context, orderID string) (*Payment, error)
	UpdateStatus(ctx context.Context, pay *Payment, expected PaymentStatus) error
	List(ctx context.Context, filter PaymentFilter) ([]*Payment, error)
}

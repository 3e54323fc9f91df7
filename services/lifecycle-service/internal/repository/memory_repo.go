package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agrilink-system/services/lifecycle-service/internal/domain"
)

// MemoryStore keeps all three collections behind one mutex, which
// gives UpdateStatusWithPayment its both-or-neither guarantee for
// free. Used by tests and local development runs.
type MemoryStore struct {
	mu             sync.Mutex
	products       map[string]*domain.Product
	orders         map[string]*domain.Order
	payments       map[string]*domain.Payment
	paymentByOrder map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:       make(map[string]*domain.Product),
		orders:         make(map[string]*domain.Order),
		payments:       make(map[string]*domain.Payment),
		paymentByOrder: make(map[string]string),
	}
}

func (s *MemoryStore) Products() domain.ProductRepository { return &memoryProducts{s} }
func (s *MemoryStore) Orders() domain.OrderRepository     { return &memoryOrders{s} }
func (s *MemoryStore) Payments() domain.PaymentRepository { return &memoryPayments{s} }

func cloneProduct(p *domain.Product) *domain.Product {
	c := *p
	if p.CollectionDate != nil {
		d := *p.CollectionDate
		c.CollectionDate = &d
	}
	return &c
}

func cloneOrder(o *domain.Order) *domain.Order {
	c := *o
	if o.DeliveryDate != nil {
		d := *o.DeliveryDate
		c.DeliveryDate = &d
	}
	return &c
}

func clonePayment(p *domain.Payment) *domain.Payment {
	c := *p
	if p.ProcessedAt != nil {
		t := *p.ProcessedAt
		c.ProcessedAt = &t
	}
	return &c
}

// insertPayment must be called with the store lock held. Inserting a
// second payment for the same order returns ErrDuplicatePayment.
func (s *MemoryStore) insertPayment(pay *domain.Payment) error {
	if pay.OrderID != "" {
		if _, exists := s.paymentByOrder[pay.OrderID]; exists {
			return domain.ErrDuplicatePayment
		}
	}
	s.payments[pay.ID] = clonePayment(pay)
	if pay.OrderID != "" {
		s.paymentByOrder[pay.OrderID] = pay.ID
	}
	return nil
}

type memoryProducts struct{ store *MemoryStore }

func (r *memoryProducts) Create(ctx context.Context, p *domain.Product) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.products[p.ID]; exists {
		return fmt.Errorf("product %s already exists", p.ID)
	}
	r.store.products[p.ID] = cloneProduct(p)
	return nil
}

func (r *memoryProducts) Get(ctx context.Context, id string) (*domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	return cloneProduct(p), nil
}

func (r *memoryProducts) UpdateStatus(ctx context.Context, p *domain.Product, expected domain.ProductStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.updateLocked(p, expected)
}

func (r *memoryProducts) UpdateStatusWithPayment(ctx context.Context, p *domain.Product, expected domain.ProductStatus, pay *domain.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	// Validate the precondition before touching anything so a conflict
	// leaves no stray payment behind.
	stored, ok := r.store.products[p.ID]
	if !ok {
		return fmt.Errorf("%w: product %s", domain.ErrNotFound, p.ID)
	}
	if stored.Status != expected {
		return fmt.Errorf("%w: product %s is %s, expected %s",
			domain.ErrConcurrentModification, p.ID, stored.Status, expected)
	}
	if err := r.store.insertPayment(pay); err != nil {
		return err
	}
	return r.updateLocked(p, expected)
}

func (r *memoryProducts) updateLocked(p *domain.Product, expected domain.ProductStatus) error {
	stored, ok := r.store.products[p.ID]
	if !ok {
		return fmt.Errorf("%w: product %s", domain.ErrNotFound, p.ID)
	}
	if stored.Status != expected {
		return fmt.Errorf("%w: product %s is %s, expected %s",
			domain.ErrConcurrentModification, p.ID, stored.Status, expected)
	}
	p.Version = stored.Version + 1
	r.store.products[p.ID] = cloneProduct(p)
	return nil
}

func (r *memoryProducts) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*domain.Product
	for _, p := range r.store.products {
		if filter.FarmerID != "" && p.FarmerID != filter.FarmerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, p.Status) {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	return out, nil
}

func (r *memoryProducts) FindDueCollections(ctx context.Context, asOf time.Time) ([]*domain.Product, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*domain.Product
	for _, p := range r.store.products {
		if p.Status != domain.ProductScheduledCollection || p.CollectionDate == nil {
			continue
		}
		if !p.CollectionDate.After(asOf) {
			out = append(out, cloneProduct(p))
		}
	}
	return out, nil
}

func containsStatus(statuses []domain.ProductStatus, s domain.ProductStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

type memoryOrders struct{ store *MemoryStore }

func (r *memoryOrders) Create(ctx context.Context, o *domain.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	r.store.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *memoryOrders) Get(ctx context.Context, id string) (*domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	return cloneOrder(o), nil
}

func (r *memoryOrders) UpdateStatus(ctx context.Context, o *domain.Order, expected domain.OrderStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.updateLocked(o, expected)
}

func (r *memoryOrders) UpdateStatusWithPayment(ctx context.Context, o *domain.Order, expected domain.OrderStatus, pay *domain.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.orders[o.ID]
	if !ok {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, o.ID)
	}
	if stored.Status != expected {
		return fmt.Errorf("%w: order %s is %s, expected %s",
			domain.ErrConcurrentModification, o.ID, stored.Status, expected)
	}
	// A payment already standing for this order is fine: the status
	// write proceeds and no duplicate is inserted.
	if err := r.store.insertPayment(pay); err != nil && err != domain.ErrDuplicatePayment {
		return err
	}
	return r.updateLocked(o, expected)
}

func (r *memoryOrders) updateLocked(o *domain.Order, expected domain.OrderStatus) error {
	stored, ok := r.store.orders[o.ID]
	if !ok {
		return fmt.Errorf("%w: order %s", domain.ErrNotFound, o.ID)
	}
	if stored.Status != expected {
		return fmt.Errorf("%w: order %s is %s, expected %s",
			domain.ErrConcurrentModification, o.ID, stored.Status, expected)
	}
	o.Version = stored.Version + 1
	r.store.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *memoryOrders) ListByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.store.orders {
		if o.BuyerID == buyerID {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

type memoryPayments struct{ store *MemoryStore }

func (r *memoryPayments) Create(ctx context.Context, pay *domain.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.insertPayment(pay)
}

func (r *memoryPayments) Get(ctx context.Context, id string) (*domain.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	pay, ok := r.store.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: payment %s", domain.ErrNotFound, id)
	}
	return clonePayment(pay), nil
}

func (r *memoryPayments) GetByOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	id, ok := r.store.paymentByOrder[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: payment for order %s", domain.ErrNotFound, orderID)
	}
	return clonePayment(r.store.payments[id]), nil
}

func (r *memoryPayments) UpdateStatus(ctx context.Context, pay *domain.Payment, expected domain.PaymentStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.payments[pay.ID]
	if !ok {
		return fmt.Errorf("%w: payment %s", domain.ErrNotFound, pay.ID)
	}
	if stored.Status != expected {
		return fmt.Errorf("%w: payment %s is %s, expected %s",
			domain.ErrConcurrentModification, pay.ID, stored.Status, expected)
	}
	r.store.payments[pay.ID] = clonePayment(pay)
	return nil
}

func (r *memoryPayments) List(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*domain.Payment
	for _, pay := range r.store.payments {
		if filter.FarmerID != "" && pay.FarmerID != filter.FarmerID {
			continue
		}
		out = append(out, clonePayment(pay))
	}
	return out, nil
}

// Package lifecycle implements the marketplace's lifecycle and
// settlement engine: validated state transitions for products and
// orders, payment splitting, and the read-side earnings and
// aggregation projections.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agrilink-system/services/lifecycle-service/internal/domain"

	"github.com/google/uuid"
)

// Engine coordinates lifecycle transitions against the backing
// stores. It is stateless apart from its dependencies and safe for
// concurrent use; conflict detection is delegated to the stores'
// conditional updates.
type Engine struct {
	products  domain.ProductRepository
	orders    domain.OrderRepository
	payments  domain.PaymentRepository
	productSM *domain.StateMachine
	orderSM   *domain.StateMachine
	paymentSM *domain.StateMachine
	now       func() time.Time
}

func NewEngine(products domain.ProductRepository, orders domain.OrderRepository, payments domain.PaymentRepository) *Engine {
	return &Engine{
		products:  products,
		orders:    orders,
		payments:  payments,
		productSM: domain.ProductStateMachine(),
		orderSM:   domain.OrderStateMachine(),
		paymentSM: domain.PaymentStateMachine(),
		now:       time.Now,
	}
}

// Result carries the outcome of one engine operation: the mutated
// entities plus the notifications and change events the caller should
// dispatch. The engine itself never talks to a transport.
type Result struct {
	Product       *domain.Product
	Order         *domain.Order
	Payment       *domain.Payment
	Notifications []domain.Notification
	Changes       []domain.ChangeEvent
}

func (r *Result) notify(n domain.Notification) {
	r.Notifications = append(r.Notifications, n)
}

func (r *Result) changed(entity domain.EntityType, kind domain.ChangeKind, id string) {
	r.Changes = append(r.Changes, domain.ChangeEvent{EntityType: entity, Kind: kind, EntityID: id})
}

// ProductInput is the farmer-supplied content of a new product.
type ProductInput struct {
	Region       string
	Category     string
	Quantity     int64
	Unit         string
	PricePerUnit int64
	QualityGrade domain.QualityGrade
}

// SubmitProduct creates a product in the submitted state. Farmers
// only; the submitting farmer becomes the owner.
func (e *Engine) SubmitProduct(ctx context.Context, actor domain.Actor, in ProductInput) (*Result, error) {
	if actor.Role != domain.RoleFarmer {
		return nil, fmt.Errorf("%w: only farmers submit products", domain.ErrPermissionDenied)
	}
	now := e.now()
	p := &domain.Product{
		ID:                uuid.New().String(),
		FarmerID:          actor.ID,
		Region:            in.Region,
		Category:          in.Category,
		QuantityAvailable: in.Quantity,
		Unit:              in.Unit,
		PricePerUnit:      in.PricePerUnit,
		QualityGrade:      in.QualityGrade,
		Status:            domain.ProductSubmitted,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := e.products.Create(ctx, p); err != nil {
		return nil, err
	}

	res := &Result{Product: p}
	res.changed(domain.EntityProduct, domain.ChangeCreated, p.ID)
	res.notify(domain.Notification{
		TargetUserID:    p.FarmerID,
		Title:           "Product submitted",
		Message:         fmt.Sprintf("%s (%d %s) is awaiting review", p.Category, p.QuantityAvailable, p.Unit),
		Type:            domain.NotificationProduct,
		RelatedEntityID: p.ID,
	})
	return res, nil
}

// ProductTransitionOptions carries the per-edge inputs an admin may
// attach to a product transition.
type ProductTransitionOptions struct {
	// QualityGrade is required when approving and optional (an
	// override) when marking collected.
	QualityGrade domain.QualityGrade
	// CollectionDate defaults to today when scheduling if unset.
	CollectionDate *time.Time
	// Notes become the rejection note on reject, admin notes on
	// collect.
	Notes string
}

// TransitionProduct moves a product along its lifecycle. The write is
// conditional on the status the product had when read, so two racing
// admins cannot both succeed. payment_processed additionally creates
// the collection payment atomically with the status write.
func (e *Engine) TransitionProduct(ctx context.Context, actor domain.Actor, productID string, target domain.ProductStatus, opts ProductTransitionOptions) (*Result, error) {
	p, err := e.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := e.productSM.Validate(string(p.Status), string(target), actor); err != nil {
		return nil, err
	}

	expected := p.Status
	var pay *domain.Payment

	switch target {
	case domain.ProductApproved:
		grade := opts.QualityGrade
		if grade == "" {
			grade = p.QualityGrade
		}
		if !grade.Valid() {
			return nil, fmt.Errorf("%w: approval requires a quality grade", domain.ErrInvalidTransition)
		}
		p.QualityGrade = grade
		p.RejectionNote = ""

	case domain.ProductScheduledCollection:
		if opts.CollectionDate != nil {
			p.CollectionDate = opts.CollectionDate
		} else {
			today := e.now().Truncate(24 * time.Hour)
			p.CollectionDate = &today
		}

	case domain.ProductCollected:
		if opts.QualityGrade != "" {
			if !opts.QualityGrade.Valid() {
				return nil, fmt.Errorf("%w: unknown quality grade %q", domain.ErrInvalidTransition, opts.QualityGrade)
			}
			p.QualityGrade = opts.QualityGrade
		}
		if opts.Notes != "" {
			p.AdminNotes = opts.Notes
		}

	case domain.ProductRejected:
		if opts.Notes == "" {
			return nil, fmt.Errorf("%w: rejection requires a note", domain.ErrInvalidTransition)
		}
		p.RejectionNote = opts.Notes

	case domain.ProductPaymentProcessed:
		pay = e.newCollectionPayment(p)
		if err := pay.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrSettlementFailure, err)
		}
	}

	p.Status = target
	p.UpdatedAt = e.now()

	if pay != nil {
		// Status write and payment insert succeed or fail together, so
		// a product can never be payment_processed without its payment
		// nor vice versa.
		if err := e.products.UpdateStatusWithPayment(ctx, p, expected, pay); err != nil {
			if errors.Is(err, domain.ErrConcurrentModification) || errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrSettlementFailure, err)
		}
	} else {
		if err := e.products.UpdateStatus(ctx, p, expected); err != nil {
			return nil, err
		}
	}

	res := &Result{Product: p, Payment: pay}
	res.changed(domain.EntityProduct, domain.ChangeUpdated, p.ID)
	if pay != nil {
		res.changed(domain.EntityPayment, domain.ChangeCreated, pay.ID)
	}
	res.notify(productNotification(p))
	return res, nil
}

func productNotification(p *domain.Product) domain.Notification {
	msg := fmt.Sprintf("%s is now %s", p.Category, p.Status)
	switch {
	case p.Status == domain.ProductRejected && p.RejectionNote != "":
		msg = fmt.Sprintf("%s was rejected: %s", p.Category, p.RejectionNote)
	case p.AdminNotes != "":
		msg = fmt.Sprintf("%s is now %s (%s)", p.Category, p.Status, p.AdminNotes)
	}
	return domain.Notification{
		TargetUserID:    p.FarmerID,
		Title:           "Product " + string(p.Status),
		Message:         msg,
		Type:            domain.NotificationProduct,
		RelatedEntityID: p.ID,
	}
}

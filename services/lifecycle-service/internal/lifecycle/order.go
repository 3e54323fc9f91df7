package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"agrilink-system/services/lifecycle-service/internal/domain"

	"github.com/google/uuid"
)

// OrderInput is the buyer-supplied content of a new order.
type OrderInput struct {
	ProductID       string
	Quantity        int64
	DeliveryAddress string
}

// PlaceOrder creates an order in the pending state. Buyers only. The
// total is frozen from the product's current unit price and never
// recomputed afterwards.
func (e *Engine) PlaceOrder(ctx context.Context, actor domain.Actor, in OrderInput) (*Result, error) {
	if actor.Role != domain.RoleBuyer {
		return nil, fmt.Errorf("%w: only buyers place orders", domain.ErrPermissionDenied)
	}
	p, err := e.products.Get(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive, got %d", in.Quantity)
	}
	if in.Quantity > p.QuantityAvailable {
		return nil, fmt.Errorf("ordered %d but only %d %s available", in.Quantity, p.QuantityAvailable, p.Unit)
	}

	now := e.now()
	o := &domain.Order{
		ID:              uuid.New().String(),
		BuyerID:         actor.ID,
		ProductID:       p.ID,
		FarmerID:        p.FarmerID,
		Quantity:        in.Quantity,
		UnitPrice:       p.PricePerUnit,
		TotalAmount:     in.Quantity * p.PricePerUnit,
		DeliveryAddress: in.DeliveryAddress,
		Status:          domain.OrderPending,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if err := e.orders.Create(ctx, o); err != nil {
		return nil, err
	}

	res := &Result{Order: o}
	res.changed(domain.EntityOrder, domain.ChangeCreated, o.ID)
	res.notify(domain.Notification{
		TargetUserID:    o.BuyerID,
		Title:           "Order placed",
		Message:         fmt.Sprintf("Order for %d x %s placed, awaiting confirmation", o.Quantity, p.Category),
		Type:            domain.NotificationOrder,
		RelatedEntityID: o.ID,
	})
	return res, nil
}

// OrderTransitionOptions carries the per-edge inputs an admin may
// attach to an order transition.
type OrderTransitionOptions struct {
	// TrackingID overrides the derived identifier when shipping.
	TrackingID string
}

// TransitionOrder moves an order along its lifecycle. Confirmation
// creates the order payment exactly once per order: retried or
// concurrent confirmations reuse the existing payment rather than
// producing a second one. Cancellation is status-only and never
// touches an already-created payment.
func (e *Engine) TransitionOrder(ctx context.Context, actor domain.Actor, orderID string, target domain.OrderStatus, opts OrderTransitionOptions) (*Result, error) {
	o, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := e.orderSM.Validate(string(o.Status), string(target), actor); err != nil {
		return nil, err
	}

	expected := o.Status
	var pay *domain.Payment

	switch target {
	case domain.OrderConfirmed:
		pay = e.newOrderPayment(o)
		if err := pay.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrSettlementFailure, err)
		}

	case domain.OrderShipped:
		if o.TrackingID == "" {
			if opts.TrackingID != "" {
				o.TrackingID = opts.TrackingID
			} else {
				o.TrackingID = domain.TrackingIDFor(o.ID)
			}
		}

	case domain.OrderDelivered:
		if o.DeliveryDate == nil {
			now := e.now()
			o.DeliveryDate = &now
		}
	}

	o.Status = target
	o.UpdatedAt = e.now()

	if pay != nil {
		// The store treats the payment insert as idempotent on the
		// order reference, so a duplicate confirmation race leaves
		// exactly one payment behind.
		if err := e.orders.UpdateStatusWithPayment(ctx, o, expected, pay); err != nil {
			if errors.Is(err, domain.ErrConcurrentModification) || errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrSettlementFailure, err)
		}
		// Report whichever payment actually stands for the order.
		if existing, err := e.payments.GetByOrder(ctx, o.ID); err == nil {
			pay = existing
		}
	} else {
		if err := e.orders.UpdateStatus(ctx, o, expected); err != nil {
			return nil, err
		}
	}

	res := &Result{Order: o, Payment: pay}
	res.changed(domain.EntityOrder, domain.ChangeUpdated, o.ID)
	if pay != nil {
		res.changed(domain.EntityPayment, domain.ChangeCreated, pay.ID)
	}
	res.notify(domain.Notification{
		TargetUserID:    o.BuyerID,
		Title:           "Order " + string(o.Status),
		Message:         orderMessage(o),
		Type:            domain.NotificationOrder,
		RelatedEntityID: o.ID,
	})
	return res, nil
}

func orderMessage(o *domain.Order) string {
	switch o.Status {
	case domain.OrderShipped:
		return fmt.Sprintf("Your order shipped, tracking %s", o.TrackingID)
	case domain.OrderDelivered:
		return "Your order was delivered"
	case domain.OrderCancelled:
		return "Your order was cancelled"
	default:
		return fmt.Sprintf("Your order is now %s", o.Status)
	}
}

// PaymentForOrder returns the payment standing for an order, or
// ErrNotFound if confirmation has not created one yet.
func (e *Engine) PaymentForOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	return e.payments.GetByOrder(ctx, orderID)
}

// MarkPaymentPaid advances an order payment to paid_to_farmer. This
// is a deliberate admin action separate from delivery: delivering an
// order never implicitly releases the payout.
func (e *Engine) MarkPaymentPaid(ctx context.Context, actor domain.Actor, paymentID string) (*Result, error) {
	pay, err := e.payments.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := e.paymentSM.Validate(string(pay.Status), string(domain.PaymentPaidToFarmer), actor); err != nil {
		return nil, err
	}

	expected := pay.Status
	pay.Status = domain.PaymentPaidToFarmer
	now := e.now()
	pay.ProcessedAt = &now
	if err := e.payments.UpdateStatus(ctx, pay, expected); err != nil {
		return nil, err
	}

	res := &Result{Payment: pay}
	res.changed(domain.EntityPayment, domain.ChangeUpdated, pay.ID)
	res.notify(domain.Notification{
		TargetUserID:    pay.FarmerID,
		Title:           "Payout sent",
		Message:         fmt.Sprintf("Payout of %d has been sent to you", pay.FarmerAmount),
		Type:            domain.NotificationPayment,
		RelatedEntityID: pay.ID,
	})
	return res, nil
}

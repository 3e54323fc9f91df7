package lifecycle

import (
	"agrilink-system/services/lifecycle-service/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Producer shares by payment type. Order payments retain 15% for the
// platform, collection payments 5%.
var (
	orderFarmerShare      = decimal.NewFromFloat(0.85)
	collectionFarmerShare = decimal.NewFromFloat(0.95)
)

// splitAmount divides an amount in integer cents between farmer and
// platform. The farmer share is rounded half away from zero and the
// fee is the exact remainder, so amount == farmerAmount + platformFee
// holds for every input.
func splitAmount(amount int64, farmerShare decimal.Decimal) (farmerAmount, platformFee int64) {
	farmerAmount = decimal.NewFromInt(amount).Mul(farmerShare).Round(0).IntPart()
	return farmerAmount, amount - farmerAmount
}

// newOrderPayment builds the incoming buyer payment created when an
// order is confirmed. It starts pending; the payout to the farmer is
// released later by an explicit admin action.
func (e *Engine) newOrderPayment(o *domain.Order) *domain.Payment {
	farmer, fee := splitAmount(o.TotalAmount, orderFarmerShare)
	return &domain.Payment{
		ID:           uuid.New().String(),
		BuyerID:      o.BuyerID,
		FarmerID:     o.FarmerID,
		OrderID:      o.ID,
		Amount:       o.TotalAmount,
		FarmerAmount: farmer,
		PlatformFee:  fee,
		Status:       domain.PaymentPending,
		Direction:    domain.DirectionIncoming,
		Type:         domain.PaymentTypeOrder,
		CreatedAt:    e.now(),
	}
}

// newCollectionPayment builds the outgoing farmer payment created
// when a collected product is settled. Collection settlement is an
// instant payout, so the payment is born paid_to_farmer.
func (e *Engine) newCollectionPayment(p *domain.Product) *domain.Payment {
	amount := p.SettlementAmount()
	farmer, fee := splitAmount(amount, collectionFarmerShare)
	now := e.now()
	return &domain.Payment{
		ID:           uuid.New().String(),
		FarmerID:     p.FarmerID,
		Amount:       amount,
		FarmerAmount: farmer,
		PlatformFee:  fee,
		Status:       domain.PaymentPaidToFarmer,
		Direction:    domain.DirectionOutgoing,
		Type:         domain.PaymentTypeCollection,
		ProcessedAt:  &now,
		CreatedAt:    now,
	}
}

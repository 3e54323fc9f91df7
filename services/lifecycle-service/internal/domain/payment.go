package domain

import (
	"fmt"
	"time"
)

type PaymentStatus string

const (
	PaymentPending      PaymentStatus = "pending"
	PaymentCompleted    PaymentStatus = "completed"
	PaymentPaidToFarmer PaymentStatus = "paid_to_farmer"
)

type PaymentDirection string

const (
	DirectionIncoming PaymentDirection = "incoming"
	DirectionOutgoing PaymentDirection = "outgoing"
)

type PaymentType string

const (
	PaymentTypeOrder      PaymentType = "order"
	PaymentTypeCollection PaymentType = "collection"
)

// Payment records one settlement between the platform and a producer.
// Payments are system-owned: only the settlement logic creates them,
// as a side effect of lifecycle transitions, and they only ever move
// forward in status.
type Payment struct {
	ID           string           `json:"id"`
	BuyerID      string           `json:"buyer_id,omitempty"`
	FarmerID     string           `json:"farmer_id"`
	OrderID      string           `json:"order_id,omitempty"`
	Amount       int64            `json:"amount"`
	FarmerAmount int64            `json:"farmer_amount"`
	PlatformFee  int64            `json:"platform_fee"`
	Status       PaymentStatus    `json:"status"`
	Direction    PaymentDirection `json:"direction"`
	Type         PaymentType      `json:"type"`
	ProcessedAt  *time.Time       `json:"processed_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

func (p *Payment) Validate() error {
	if p.FarmerID == "" {
		return fmt.Errorf("payment missing farmer reference")
	}
	if p.Amount != p.FarmerAmount+p.PlatformFee {
		return fmt.Errorf("payment split broken: %d != %d + %d", p.Amount, p.FarmerAmount, p.PlatformFee)
	}
	if p.Type == PaymentTypeOrder && p.OrderID == "" {
		return fmt.Errorf("order payment missing order reference")
	}
	return nil
}

// Settled reports whether the farmer's share counts as paid rather
// than pending in earnings rollups.
func (p *Payment) Settled() bool {
	return p.Status == PaymentPaidToFarmer || p.Status == PaymentCompleted
}

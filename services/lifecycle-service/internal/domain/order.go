package domain

import (
	"fmt"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// Order is a buyer's purchase against a product (or an aggregated
// pool). TotalAmount is frozen at creation and never recomputed, even
// if the product's price changes later.
type Order struct {
	ID              string      `json:"id"`
	BuyerID         string      `json:"buyer_id"`
	ProductID       string      `json:"product_id"`
	FarmerID        string      `json:"farmer_id"`
	Quantity        int64       `json:"quantity"`
	UnitPrice       int64       `json:"unit_price"`
	TotalAmount     int64       `json:"total_amount"`
	DeliveryAddress string      `json:"delivery_address"`
	TrackingID      string      `json:"tracking_id,omitempty"`
	Status          OrderStatus `json:"status"`
	DeliveryDate    *time.Time  `json:"delivery_date,omitempty"`
	Version         int         `json:"version"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func (o *Order) Validate() error {
	if o.BuyerID == "" {
		return fmt.Errorf("order missing buyer reference")
	}
	if o.ProductID == "" {
		return fmt.Errorf("order missing product reference")
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("order quantity must be positive, got %d", o.Quantity)
	}
	if o.TotalAmount != o.Quantity*o.UnitPrice {
		return fmt.Errorf("order total %d does not match %d x %d", o.TotalAmount, o.Quantity, o.UnitPrice)
	}
	return nil
}

// TrackingIDFor derives a shipment tracking identifier from an order
// identifier. Deterministic so retried ship transitions agree.
func TrackingIDFor(orderID string) string {
	compact := strings.ToUpper(strings.ReplaceAll(orderID, "-", ""))
	if len(compact) > 10 {
		compact = compact[:10]
	}
	return "TRK-" + compact
}

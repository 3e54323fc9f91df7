package domain

import (
	"fmt"
	"time"
)

type ProductStatus string

const (
	ProductSubmitted           ProductStatus = "submitted"
	ProductPendingReview       ProductStatus = "pending_review"
	ProductApproved            ProductStatus = "approved"
	ProductScheduledCollection ProductStatus = "scheduled_collection"
	ProductCollected           ProductStatus = "collected"
	ProductPaymentProcessed    ProductStatus = "payment_processed"
	ProductRejected            ProductStatus = "rejected"
)

type QualityGrade string

const (
	GradeAPlus QualityGrade = "A+"
	GradeA     QualityGrade = "A"
	GradeBPlus QualityGrade = "B+"
	GradeB     QualityGrade = "B"
	GradeC     QualityGrade = "C"
)

func (g QualityGrade) Valid() bool {
	switch g {
	case GradeAPlus, GradeA, GradeBPlus, GradeB, GradeC:
		return true
	}
	return false
}

// Product is a farmer-submitted lot moving through review, collection
// and settlement. Content fields belong to the farmer; status belongs
// to admins. All money is in integer cents.
type Product struct {
	ID                string        `json:"id"`
	FarmerID          string        `json:"farmer_id"`
	Region            string        `json:"region"`
	Category          string        `json:"category"`
	QuantityAvailable int64         `json:"quantity_available"`
	Unit              string        `json:"unit"`
	PricePerUnit      int64         `json:"price_per_unit"`
	QualityGrade      QualityGrade  `json:"quality_grade,omitempty"`
	Status            ProductStatus `json:"status"`
	CollectionDate    *time.Time    `json:"collection_date,omitempty"`
	AdminNotes        string        `json:"admin_notes,omitempty"`
	RejectionNote     string        `json:"rejection_note,omitempty"`
	Version           int           `json:"version"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// SettlementAmount is the value settled at collection: the frozen
// quantity times the frozen unit price.
func (p *Product) SettlementAmount() int64 {
	return p.QuantityAvailable * p.PricePerUnit
}

func (p *Product) Validate() error {
	if p.FarmerID == "" {
		return fmt.Errorf("product missing farmer reference")
	}
	if p.Category == "" {
		return fmt.Errorf("product missing category")
	}
	if p.QuantityAvailable < 0 {
		return fmt.Errorf("quantity available must be non-negative, got %d", p.QuantityAvailable)
	}
	if p.PricePerUnit < 0 {
		return fmt.Errorf("price per unit must be non-negative, got %d", p.PricePerUnit)
	}
	if p.QualityGrade != "" && !p.QualityGrade.Valid() {
		return fmt.Errorf("unknown quality grade %q", p.QualityGrade)
	}
	return nil
}

// AggregatedProduct pools approved products of one category and grade
// for buyer-facing bulk ordering. It is recomputed from the underlying
// products on demand, never stored or mutated directly.
type AggregatedProduct struct {
	Category      string       `json:"category"`
	QualityGrade  QualityGrade `json:"quality_grade"`
	TotalQuantity int64        `json:"total_quantity"`
	StandardPrice int64        `json:"standard_price"`
	FarmerCount   int          `json:"farmer_count"`
	Regions       []string     `json:"regions"`
}

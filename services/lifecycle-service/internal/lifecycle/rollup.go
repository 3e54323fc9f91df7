package lifecycle

import (
	"context"
	"sort"

	"agrilink-system/services/lifecycle-service/internal/domain"
)

// Earnings summarizes one farmer's settlement history. Paid covers
// payments in paid_to_farmer or completed; everything else counts as
// pending. Recomputed from raw payments on every call rather than
// maintained incrementally.
type Earnings struct {
	FarmerID     string `json:"farmer_id"`
	Total        int64  `json:"total"`
	Paid         int64  `json:"paid"`
	Pending      int64  `json:"pending"`
	PaymentCount int    `json:"payment_count"`
}

// FarmerEarnings computes the earnings rollup for one farmer.
func (e *Engine) FarmerEarnings(ctx context.Context, farmerID string) (*Earnings, error) {
	payments, err := e.payments.List(ctx, domain.PaymentFilter{FarmerID: farmerID})
	if err != nil {
		return nil, err
	}
	earned := computeEarnings(payments)
	if got, ok := earned[farmerID]; ok {
		return got, nil
	}
	return &Earnings{FarmerID: farmerID}, nil
}

// TopFarmers ranks farmers by total earnings, descending, ties broken
// by farmer identifier ascending so the ordering is deterministic.
func (e *Engine) TopFarmers(ctx context.Context, n int) ([]Earnings, error) {
	payments, err := e.payments.List(ctx, domain.PaymentFilter{})
	if err != nil {
		return nil, err
	}
	return rankEarnings(computeEarnings(payments), n), nil
}

func computeEarnings(payments []*domain.Payment) map[string]*Earnings {
	byFarmer := make(map[string]*Earnings)
	for _, pay := range payments {
		earned := byFarmer[pay.FarmerID]
		if earned == nil {
			earned = &Earnings{FarmerID: pay.FarmerID}
			byFarmer[pay.FarmerID] = earned
		}
		earned.Total += pay.FarmerAmount
		earned.PaymentCount++
		if pay.Settled() {
			earned.Paid += pay.FarmerAmount
		} else {
			earned.Pending += pay.FarmerAmount
		}
	}
	return byFarmer
}

func rankEarnings(byFarmer map[string]*Earnings, n int) []Earnings {
	ranked := make([]Earnings, 0, len(byFarmer))
	for _, earned := range byFarmer {
		ranked = append(ranked, *earned)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return ranked[i].FarmerID < ranked[j].FarmerID
	})
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

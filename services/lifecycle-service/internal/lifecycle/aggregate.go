package lifecycle

import (
	"context"
	"sort"

	"agrilink-system/services/lifecycle-service/internal/domain"

	"github.com/shopspring/decimal"
)

// AggregatedProducts pools approved and collection-scheduled products
// by category and grade for buyer-facing bulk listings. A stateless
// projection: recomputed from the product store on every call.
func (e *Engine) AggregatedProducts(ctx context.Context) ([]domain.AggregatedProduct, error) {
	products, err := e.products.List(ctx, domain.ProductFilter{
		Statuses: []domain.ProductStatus{domain.ProductApproved, domain.ProductScheduledCollection},
	})
	if err != nil {
		return nil, err
	}
	return aggregateProducts(products), nil
}

type poolKey struct {
	category string
	grade    domain.QualityGrade
}

func aggregateProducts(products []*domain.Product) []domain.AggregatedProduct {
	type pool struct {
		quantity int64
		value    decimal.Decimal // sum of quantity*price, for the weighted average
		farmers  map[string]struct{}
		regions  map[string]struct{}
	}
	pools := make(map[poolKey]*pool)

	for _, p := range products {
		key := poolKey{category: p.Category, grade: p.QualityGrade}
		pl := pools[key]
		if pl == nil {
			pl = &pool{farmers: make(map[string]struct{}), regions: make(map[string]struct{})}
			pools[key] = pl
		}
		pl.quantity += p.QuantityAvailable
		pl.value = pl.value.Add(decimal.NewFromInt(p.QuantityAvailable).Mul(decimal.NewFromInt(p.PricePerUnit)))
		pl.farmers[p.FarmerID] = struct{}{}
		if p.Region != "" {
			pl.regions[p.Region] = struct{}{}
		}
	}

	out := make([]domain.AggregatedProduct, 0, len(pools))
	for key, pl := range pools {
		var standardPrice int64
		if pl.quantity > 0 {
			standardPrice = pl.value.Div(decimal.NewFromInt(pl.quantity)).Round(0).IntPart()
		}
		regions := make([]string, 0, len(pl.regions))
		for region := range pl.regions {
			regions = append(regions, region)
		}
		sort.Strings(regions)
		out = append(out, domain.AggregatedProduct{
			Category:      key.category,
			QualityGrade:  key.grade,
			TotalQuantity: pl.quantity,
			StandardPrice: standardPrice,
			FarmerCount:   len(pl.farmers),
			Regions:       regions,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].QualityGrade < out[j].QualityGrade
	})
	return out
}

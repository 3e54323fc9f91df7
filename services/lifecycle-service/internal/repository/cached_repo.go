package repository

import (
	"context"
	"encoding/json"
	"time"

	"agrilink-system/services/lifecycle-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

// CachedProductRepository is a read-through Redis cache in front of a
// product repository. Single-product reads are cached; every write
// path invalidates, and list queries always go to the primary so the
// projections never see stale pools.
type CachedProductRepository struct {
	primary     domain.ProductRepository
	redisClient *redis.Client
	ttl         time.Duration
}

func NewCachedProductRepository(primary domain.ProductRepository, redisClient *redis.Client, cacheTTL time.Duration) *CachedProductRepository {
	return &CachedProductRepository{
		primary:     primary,
		redisClient: redisClient,
		ttl:         cacheTTL,
	}
}

func productCacheKey(id string) string { return "product:" + id }

func (r *CachedProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	cached, err := r.redisClient.Get(ctx, productCacheKey(id)).Bytes()
	if err == nil {
		var p domain.Product
		if err := json.Unmarshal(cached, &p); err == nil {
			return &p, nil
		}
	}

	p, err := r.primary.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		r.redisClient.Set(ctx, productCacheKey(id), data, r.ttl)
	}
	return p, nil
}

func (r *CachedProductRepository) Create(ctx context.Context, p *domain.Product) error {
	return r.primary.Create(ctx, p)
}

func (r *CachedProductRepository) UpdateStatus(ctx context.Context, p *domain.Product, expected domain.ProductStatus) error {
	defer r.redisClient.Del(ctx, productCacheKey(p.ID))
	return r.primary.UpdateStatus(ctx, p, expected)
}

func (r *CachedProductRepository) UpdateStatusWithPayment(ctx context.Context, p *domain.Product, expected domain.ProductStatus, pay *domain.Payment) error {
	defer r.redisClient.Del(ctx, productCacheKey(p.ID))
	return r.primary.UpdateStatusWithPayment(ctx, p, expected, pay)
}

func (r *CachedProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	return r.primary.List(ctx, filter)
}

func (r *CachedProductRepository) FindDueCollections(ctx context.Context, asOf time.Time) ([]*domain.Product, error) {
	return r.primary.FindDueCollections(ctx, asOf)
}

package catalog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

type productStore interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

// Service resolves products with a Redis read-through in front of Postgres.
// Cache misses and cache errors both fall through to the store; the store
// is authoritative for prices.
type Service struct {
	Store productStore
	Cache *Cache
}

// GetProduct returns the product for id, or ErrNotFound.
func (s Service) GetProduct(ctx context.Context, id string) (Product, error) {
	key := productKey(id)
	var cached Product
	hit, err := s.Cache.GetJSON(ctx, key, &cached)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("product_id", id).Msg("catalog cache read failed")
	}
	if hit {
		return cached, nil
	}

	p, err := s.Store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := s.Cache.SetJSON(ctx, key, p); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("product_id", id).Msg("catalog cache write failed")
	}
	return p, nil
}

// List returns every product in the catalog.
func (s Service) List(ctx context.Context) ([]Product, error) {
	const key = "catalog:products:all"
	var cached []Product
	if hit, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	products, err := s.Store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Cache.SetJSON(ctx, key, products); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("catalog cache write failed")
	}
	return products, nil
}

func productKey(id string) string {
	return fmt.Sprintf("catalog:product:%s", id)
}

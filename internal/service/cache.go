package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shopflow/internal/model"

	"github.com/redis/go-redis/v9"
)

const (
	priceCachePrefix = "shopflow:price:"
	priceCacheTTL    = 15 * time.Minute
)

// PriceView is the cached storefront display snapshot of one product.
type PriceView struct {
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
	Stock      int    `json:"stock"`
}

// PriceCache is a redis read-through cache for price/inventory display.
type PriceCache struct {
	rdb *redis.Client
}

func NewPriceCache(rdb *redis.Client) *PriceCache {
	return &PriceCache{rdb: rdb}
}

func (c *PriceCache) Get(ctx context.Context, sku string) (*PriceView, error) {
	if c.rdb == nil {
		return nil, nil
	}
	raw, err := c.rdb.Get(ctx, priceCachePrefix+sku).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var view PriceView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		return nil, fmt.Errorf("decode cached price for %s: %w", sku, err)
	}
	return &view, nil
}

// Refresh overwrites the cache entry from the current product row.
func (c *PriceCache) Refresh(ctx context.Context, product *model.Product) error {
	if c.rdb == nil {
		return nil
	}
	view := PriceView{
		SKU:        product.SKU,
		Name:       product.Name,
		PriceCents: product.PriceCents,
		Currency:   product.Currency,
		Stock:      product.Stock,
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, priceCachePrefix+product.SKU, raw, priceCacheTTL).Err()
}

func (c *PriceCache) Invalidate(ctx context.Context, sku string) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, priceCachePrefix+sku).Err()
}

package processor

import (
	"context"
	"fmt"

	"shopflow/internal/model"
	"shopflow/internal/repository"
	"shopflow/internal/service"
)

// PriceRefresh rebuilds the redis price/inventory cache entry for the
// product. Registered once per work type that affects the displayed price.
type PriceRefresh struct {
	workType string
	products repository.ProductInterface
	cache    *service.PriceCache
}

func NewPriceRefresh(workType string, products repository.ProductInterface, cache *service.PriceCache) *PriceRefresh {
	return &PriceRefresh{workType: workType, products: products, cache: cache}
}

func (p *PriceRefresh) WorkType() string { return p.workType }

func (p *PriceRefresh) Name() string { return "price-refresh" }

func (p *PriceRefresh) Process(ctx context.Context, item *model.QueueItem) error {
	product, err := p.products.GetByID(ctx, item.SubjectID)
	if err != nil {
		return err
	}
	if product == nil {
		return fmt.Errorf("product %d not found", item.SubjectID)
	}
	return p.cache.Refresh(ctx, product)
}

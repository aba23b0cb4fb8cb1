package service

import (
	"context"
	"errors"

	"shopflow/internal/dto/req"
	"shopflow/internal/dto/resp"
	"shopflow/internal/model"
	"shopflow/internal/queue"
	"shopflow/internal/repository"
	"shopflow/pkg/constraints"
	"shopflow/pkg/logger"

	"go.uber.org/zap"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrSKUTaken        = errors.New("sku already exists")
)

// ProductService owns the catalog. Creating a product enqueues NEW_ITEM
// work; a price change enqueues PRICE_CHANGE. The queue drives everything
// downstream (announcement, cache refresh) asynchronously.
type ProductService struct {
	products repository.ProductInterface
	queue    *queue.Service
	cache    *PriceCache
}

func NewProductService(products repository.ProductInterface, queueSvc *queue.Service, cache *PriceCache) *ProductService {
	return &ProductService{
		products: products,
		queue:    queueSvc,
		cache:    cache,
	}
}

func (s *ProductService) CreateProduct(ctx context.Context, r req.CreateProductRequest) (*resp.ProductItem, error) {
	existing, err := s.products.GetBySKU(ctx, r.SKU)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSKUTaken
	}

	product := &model.Product{
		SKU:         r.SKU,
		Name:        r.Name,
		Description: r.Description,
		PriceCents:  r.PriceCents,
		Currency:    r.Currency,
		Stock:       r.Stock,
		Active:      true,
	}
	if product.Currency == "" {
		product.Currency = "USD"
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}

	if _, err := s.queue.Enqueue(ctx, product.ID, constraints.WorkTypeNewItem); err != nil {
		logger.Error("failed to enqueue new item work",
			zap.Uint64("product_id", product.ID),
			zap.String("sku", product.SKU),
			zap.Error(err))
	}
	return productItem(product), nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, sku string, r req.UpdateProductRequest) (*resp.ProductItem, error) {
	product, err := s.products.GetBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	priceChanged := false
	if r.Name != nil {
		product.Name = *r.Name
	}
	if r.Description != nil {
		product.Description = *r.Description
	}
	if r.PriceCents != nil && *r.PriceCents != product.PriceCents {
		product.PriceCents = *r.PriceCents
		priceChanged = true
	}
	if r.Stock != nil {
		product.Stock = *r.Stock
	}
	if r.Active != nil {
		product.Active = *r.Active
	}
	if err := s.products.Save(ctx, product); err != nil {
		return nil, err
	}

	if priceChanged {
		if err := s.cache.Invalidate(ctx, product.SKU); err != nil {
			logger.Warn("price cache invalidation failed",
				zap.String("sku", product.SKU), zap.Error(err))
		}
		if _, err := s.queue.Enqueue(ctx, product.ID, constraints.WorkTypePriceChange); err != nil {
			logger.Error("failed to enqueue price change work",
				zap.Uint64("product_id", product.ID),
				zap.String("sku", product.SKU),
				zap.Error(err))
		}
	}
	return productItem(product), nil
}

func (s *ProductService) GetProduct(ctx context.Context, sku string) (*resp.ProductItem, error) {
	product, err := s.products.GetBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return productItem(product), nil
}

// GetPrice serves the storefront price/inventory view through the redis
// cache, falling back to the catalog on a miss.
func (s *ProductService) GetPrice(ctx context.Context, sku string) (*PriceView, error) {
	view, err := s.cache.Get(ctx, sku)
	if err != nil {
		logger.Warn("price cache read failed", zap.String("sku", sku), zap.Error(err))
	}
	if view != nil {
		return view, nil
	}

	product, err := s.products.GetBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if err := s.cache.Refresh(ctx, product); err != nil {
		logger.Warn("price cache refresh failed", zap.String("sku", sku), zap.Error(err))
	}
	return &PriceView{
		SKU:        product.SKU,
		Name:       product.Name,
		PriceCents: product.PriceCents,
		Currency:   product.Currency,
		Stock:      product.Stock,
	}, nil
}

func (s *ProductService) ListProducts(ctx context.Context, search string, activeOnly bool, offset, limit int) (*resp.ProductListResponse, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	products, total, err := s.products.List(ctx, search, activeOnly, offset, limit)
	if err != nil {
		return nil, err
	}
	items := make([]resp.ProductItem, 0, len(products))
	for i := range products {
		items = append(items, *productItem(&products[i]))
	}
	return &resp.ProductListResponse{Items: items, Total: total}, nil
}

func productItem(p *model.Product) *resp.ProductItem {
	return &resp.ProductItem{
		ID:          p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		PriceCents:  p.PriceCents,
		Currency:    p.Currency,
		Stock:       p.Stock,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

package req

type CreateProductRequest struct {
	SKU         string `json:"sku" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents" binding:"required"`
	Currency    string `json:"currency"`
	Stock       int    `json:"stock"`
}

type UpdateProductRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	PriceCents  *int64  `json:"price_cents"`
	Stock       *int    `json:"stock"`
	Active      *bool   `json:"active"`
}

type GetProductRequest struct {
	SKU string `uri:"sku" binding:"required"`
}

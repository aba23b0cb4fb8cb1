package model

import "time"

type Product struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	SKU         string    `gorm:"size:64;uniqueIndex" json:"sku"`
	Name        string    `gorm:"size:255" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `gorm:"size:8;default:USD" json:"currency"`
	Stock       int       `gorm:"default:0" json:"stock"`
	Active      bool      `gorm:"default:true" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

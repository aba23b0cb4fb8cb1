package model

// StoreClient is an API-key credential for storefront read access.
type StoreClient struct {
	ID     uint64 `gorm:"primaryKey"`
	AppID  string `gorm:"size:64;not null"`
	APIKey string `gorm:"size:64;not null"`
	Status int    `gorm:"default:1"`
}

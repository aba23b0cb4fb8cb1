package repository

import (
	"context"
	"errors"

	"shopflow/internal/model"

	"gorm.io/gorm"
)

// ClientRepository defines the interface for storefront API key validation.
type ClientRepository interface {
	ValidateAPIKey(ctx context.Context, apiKey string) (bool, error)
}

type StoreClientRepository struct {
	db *gorm.DB
}

func NewStoreClientRepository(db *gorm.DB) *StoreClientRepository {
	return &StoreClientRepository{db: db}
}

func (r *StoreClientRepository) ValidateAPIKey(ctx context.Context, apiKey string) (bool, error) {
	var client model.StoreClient
	err := r.db.WithContext(ctx).
		Where("api_key = ? AND status = 1", apiKey).
		First(&client).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

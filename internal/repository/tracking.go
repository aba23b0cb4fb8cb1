package repository

import (
	"context"
	"errors"
	"time"

	"shopflow/internal/model"

	"gorm.io/gorm"
)

// TrackingInterface defines persistence for per-processor tracking rows.
type TrackingInterface interface {
	CreateBatch(ctx context.Context, rows []model.ProcessorTracking) error
	FindByItemAndName(ctx context.Context, itemID int64, processorName string) (*model.ProcessorTracking, error)
	ListByItem(ctx context.Context, itemID int64) ([]model.ProcessorTracking, error)
	MarkProcessing(ctx context.Context, id int64) error
	MarkCompleted(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, message string, at time.Time) error
	CountIncomplete(ctx context.Context, itemID int64) (int64, error)
	DeleteByItem(ctx context.Context, itemID int64) error
	WithTx(tx *gorm.DB) TrackingInterface
}

type TrackingRepository struct {
	db *gorm.DB
}

func NewTrackingRepository(db *gorm.DB) *TrackingRepository {
	return &TrackingRepository{db: db}
}

func (r *TrackingRepository) CreateBatch(ctx context.Context, rows []model.ProcessorTracking) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, 50).Error
}

func (r *TrackingRepository) FindByItemAndName(ctx context.Context, itemID int64, processorName string) (*model.ProcessorTracking, error) {
	var row model.ProcessorTracking
	err := r.db.WithContext(ctx).
		Where("queue_item_id = ? AND processor_name = ?", itemID, processorName).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *TrackingRepository) ListByItem(ctx context.Context, itemID int64) ([]model.ProcessorTracking, error) {
	var rows []model.ProcessorTracking
	err := r.db.WithContext(ctx).
		Where("queue_item_id = ?", itemID).
		Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *TrackingRepository) MarkProcessing(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&model.ProcessorTracking{}).Where("id = ?", id).Updates(map[string]any{
		"status":   model.StatusProcessing,
		"attempts": gorm.Expr("attempts + 1"),
	}).Error
}

func (r *TrackingRepository) MarkCompleted(ctx context.Context, id int64, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.ProcessorTracking{}).Where("id = ?", id).Updates(map[string]any{
		"status":       model.StatusCompleted,
		"completed_at": &at,
	}).Error
}

func (r *TrackingRepository) MarkFailed(ctx context.Context, id int64, message string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.ProcessorTracking{}).Where("id = ?", id).Updates(map[string]any{
		"status":        model.StatusFailed,
		"failed_at":     &at,
		"error_message": message,
	}).Error
}

// CountIncomplete counts tracking rows of the item that have not reached
// completed. Zero means the fan-in barrier is satisfied.
func (r *TrackingRepository) CountIncomplete(ctx context.Context, itemID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ProcessorTracking{}).
		Where("queue_item_id = ? AND status <> ?", itemID, model.StatusCompleted).
		Count(&count).Error
	return count, err
}

func (r *TrackingRepository) DeleteByItem(ctx context.Context, itemID int64) error {
	return r.db.WithContext(ctx).
		Where("queue_item_id = ?", itemID).
		Delete(&model.ProcessorTracking{}).Error
}

func (r *TrackingRepository) WithTx(tx *gorm.DB) TrackingInterface {
	return &TrackingRepository{db: tx}
}

package repository

import (
	"context"
	"errors"
	"time"

	"shopflow/internal/model"

	"gorm.io/gorm"
)

// QueueItemInterface defines persistence for queue items.
type QueueItemInterface interface {
	Create(ctx context.Context, item *model.QueueItem) error
	FindByID(ctx context.Context, id int64) (*model.QueueItem, error)
	FindLive(ctx context.Context, subjectID uint64, workType string) (*model.QueueItem, error)
	LiveSubjectIDs(ctx context.Context, subjectIDs []uint64, workType string) ([]uint64, error)
	FetchPending(ctx context.Context, limit int, workType string) ([]model.QueueItem, error)
	MarkProcessing(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, message string) error
	ResetToPending(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	ListFailed(ctx context.Context, limit int) ([]model.QueueItem, error)
	ListStuckProcessing(ctx context.Context, olderThan time.Time, limit int) ([]model.QueueItem, error)
	CountByStatus(ctx context.Context) (map[int]int64, error)
	PingContext(ctx context.Context) error
	WithTx(tx *gorm.DB) QueueItemInterface
}

type QueueItemRepository struct {
	db *gorm.DB
}

func NewQueueItemRepository(db *gorm.DB) *QueueItemRepository {
	return &QueueItemRepository{db: db}
}

func (r *QueueItemRepository) Create(ctx context.Context, item *model.QueueItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *QueueItemRepository) FindByID(ctx context.Context, id int64) (*model.QueueItem, error) {
	var item model.QueueItem
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// FindLive returns the pending or processing item for (subject, workType),
// or nil when none exists.
func (r *QueueItemRepository) FindLive(ctx context.Context, subjectID uint64, workType string) (*model.QueueItem, error) {
	var item model.QueueItem
	err := r.db.WithContext(ctx).
		Where("subject_id = ? AND work_type = ? AND status IN ?",
			subjectID, workType, []int{model.StatusPending, model.StatusProcessing}).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// LiveSubjectIDs returns the subset of subjectIDs that already have a live
// item for workType. Used by bulk enqueue to skip duplicates in one query.
func (r *QueueItemRepository) LiveSubjectIDs(ctx context.Context, subjectIDs []uint64, workType string) ([]uint64, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&model.QueueItem{}).
		Where("subject_id IN ? AND work_type = ? AND status IN ?",
			subjectIDs, workType, []int{model.StatusPending, model.StatusProcessing}).
		Pluck("subject_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FetchPending returns up to limit pending items in FIFO order, optionally
// filtered to one work type.
func (r *QueueItemRepository) FetchPending(ctx context.Context, limit int, workType string) ([]model.QueueItem, error) {
	var items []model.QueueItem
	query := r.db.WithContext(ctx).Where("status = ?", model.StatusPending)
	if workType != "" {
		query = query.Where("work_type = ?", workType)
	}
	if err := query.Order("created_at ASC, id ASC").Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *QueueItemRepository) MarkProcessing(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&model.QueueItem{}).Where("id = ?", id).Updates(map[string]any{
		"status":   model.StatusProcessing,
		"attempts": gorm.Expr("attempts + 1"),
	}).Error
}

func (r *QueueItemRepository) MarkFailed(ctx context.Context, id int64, message string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.QueueItem{}).Where("id = ?", id).Updates(map[string]any{
		"status":        model.StatusFailed,
		"failed_at":     &now,
		"error_message": message,
	}).Error
}

func (r *QueueItemRepository) ResetToPending(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&model.QueueItem{}).Where("id = ?", id).Updates(map[string]any{
		"status":        model.StatusPending,
		"failed_at":     nil,
		"error_message": "",
	}).Error
}

func (r *QueueItemRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.QueueItem{}, id).Error
}

func (r *QueueItemRepository) ListFailed(ctx context.Context, limit int) ([]model.QueueItem, error) {
	var items []model.QueueItem
	err := r.db.WithContext(ctx).
		Where("status = ?", model.StatusFailed).
		Order("failed_at DESC").Limit(limit).Find(&items).Error
	return items, err
}

// ListStuckProcessing finds items claimed longer ago than olderThan and never
// finished, for operator review. Nothing resets them automatically.
func (r *QueueItemRepository) ListStuckProcessing(ctx context.Context, olderThan time.Time, limit int) ([]model.QueueItem, error) {
	var items []model.QueueItem
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", model.StatusProcessing, olderThan).
		Order("updated_at ASC").Limit(limit).Find(&items).Error
	return items, err
}

func (r *QueueItemRepository) CountByStatus(ctx context.Context) (map[int]int64, error) {
	type row struct {
		Status int
		Total  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&model.QueueItem{}).
		Select("status, count(*) as total").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[int]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

func (r *QueueItemRepository) PingContext(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *QueueItemRepository) WithTx(tx *gorm.DB) QueueItemInterface {
	return &QueueItemRepository{db: tx}
}

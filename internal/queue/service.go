package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shopflow/internal/model"
	"shopflow/internal/repository"
	"shopflow/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrTrackingRowMissing = errors.New("tracking row missing")

const bulkChunkSize = 50

// Service owns every queue state transition. All mutations that must be
// atomic (enqueue fan-out, the fan-in barrier) run inside one transaction.
type Service struct {
	db       *gorm.DB
	items    repository.QueueItemInterface
	tracking repository.TrackingInterface
	registry *Registry
}

func NewService(db *gorm.DB, items repository.QueueItemInterface, tracking repository.TrackingInterface, registry *Registry) *Service {
	return &Service{
		db:       db,
		items:    items,
		tracking: tracking,
		registry: registry,
	}
}

// withTx runs fn against transaction-bound repositories. A nil db (tests)
// runs fn against the base repositories directly.
func (s *Service) withTx(ctx context.Context, fn func(items repository.QueueItemInterface, tracking repository.TrackingInterface) error) error {
	if s.db == nil {
		return fn(s.items, s.tracking)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.items.WithTx(tx), s.tracking.WithTx(tx))
	})
}

// Enqueue creates a pending item for (subjectID, workType) plus one pending
// tracking row per processor currently registered for workType. It returns
// nil when a live item already exists; the unique index backstops the
// check against concurrent enqueues, and losing that race is also a no-op.
func (s *Service) Enqueue(ctx context.Context, subjectID uint64, workType string) (*model.QueueItem, error) {
	existing, err := s.items.FindLive(ctx, subjectID, workType)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.Debug("enqueue skipped, live item exists",
			zap.Uint64("subject_id", subjectID),
			zap.String("work_type", workType),
			zap.Int64("item_id", existing.ID))
		return nil, nil
	}

	names, err := s.registry.ProcessorNames(workType)
	if err != nil {
		logger.Warn("enqueueing work type with no registered processors",
			zap.Uint64("subject_id", subjectID),
			zap.String("work_type", workType))
		names = nil
	}

	item := &model.QueueItem{
		SubjectID: subjectID,
		WorkType:  workType,
		Status:    model.StatusPending,
	}
	err = s.withTx(ctx, func(items repository.QueueItemInterface, tracking repository.TrackingInterface) error {
		if err := items.Create(ctx, item); err != nil {
			return err
		}
		rows := make([]model.ProcessorTracking, 0, len(names))
		for _, name := range names {
			rows = append(rows, model.ProcessorTracking{
				QueueItemID:   item.ID,
				ProcessorName: name,
				Status:        model.StatusPending,
			})
		}
		return tracking.CreateBatch(ctx, rows)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil
		}
		return nil, err
	}
	return item, nil
}

// EnqueueBulk enqueues workType for every subject that does not already have
// a live item, persisting in bounded chunks. Returns the count created.
func (s *Service) EnqueueBulk(ctx context.Context, subjectIDs []uint64, workType string) (int, error) {
	live, err := s.items.LiveSubjectIDs(ctx, subjectIDs, workType)
	if err != nil {
		return 0, err
	}
	liveSet := make(map[uint64]bool, len(live))
	for _, id := range live {
		liveSet[id] = true
	}

	names, err := s.registry.ProcessorNames(workType)
	if err != nil {
		logger.Warn("bulk enqueueing work type with no registered processors",
			zap.String("work_type", workType),
			zap.Int("subjects", len(subjectIDs)))
		names = nil
	}

	candidates := make([]uint64, 0, len(subjectIDs))
	seen := make(map[uint64]bool, len(subjectIDs))
	for _, id := range subjectIDs {
		if liveSet[id] || seen[id] {
			continue
		}
		seen[id] = true
		candidates = append(candidates, id)
	}

	created := 0
	for start := 0; start < len(candidates); start += bulkChunkSize {
		end := start + bulkChunkSize
		if end > len(candidates) {
			end = len(candidates)
		}
		chunk := candidates[start:end]
		err := s.withTx(ctx, func(items repository.QueueItemInterface, tracking repository.TrackingInterface) error {
			for _, subjectID := range chunk {
				item := &model.QueueItem{
					SubjectID: subjectID,
					WorkType:  workType,
					Status:    model.StatusPending,
				}
				if err := items.Create(ctx, item); err != nil {
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						continue
					}
					return err
				}
				rows := make([]model.ProcessorTracking, 0, len(names))
				for _, name := range names {
					rows = append(rows, model.ProcessorTracking{
						QueueItemID:   item.ID,
						ProcessorName: name,
						Status:        model.StatusPending,
					})
				}
				if err := tracking.CreateBatch(ctx, rows); err != nil {
					return err
				}
				created++
			}
			return nil
		})
		if err != nil {
			return created, err
		}
	}
	return created, nil
}

// FetchPending returns up to limit pending items in FIFO order.
func (s *Service) FetchPending(ctx context.Context, limit int, workType string) ([]model.QueueItem, error) {
	return s.items.FetchPending(ctx, limit, workType)
}

// MarkProcessing claims the item: processing status plus one more attempt.
// A claimed item no longer matches the pending fetch, which is what keeps
// overlapping dispatcher runs from double-claiming.
func (s *Service) MarkProcessing(ctx context.Context, item *model.QueueItem) error {
	if err := s.items.MarkProcessing(ctx, item.ID); err != nil {
		return err
	}
	item.Status = model.StatusProcessing
	item.Attempts++
	return nil
}

// MarkItemFailed parks the whole item as failed with an operator-facing
// error message. Used when the item cannot be dispatched at all.
func (s *Service) MarkItemFailed(ctx context.Context, item *model.QueueItem, message string) error {
	if err := s.items.MarkFailed(ctx, item.ID, message); err != nil {
		return err
	}
	item.Status = model.StatusFailed
	item.ErrorMessage = message
	return nil
}

// MarkProcessorProcessing transitions the (item, processorName) tracking row
// to processing. A missing row is a configuration mismatch between the
// registry at enqueue time and at dispatch time and is reported loudly.
func (s *Service) MarkProcessorProcessing(ctx context.Context, item *model.QueueItem, processorName string) error {
	row, err := s.tracking.FindByItemAndName(ctx, item.ID, processorName)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("%w: item %d, processor %q", ErrTrackingRowMissing, item.ID, processorName)
	}
	return s.tracking.MarkProcessing(ctx, row.ID)
}

// MarkProcessorComplete completes the tracking row and evaluates the fan-in
// barrier: when every tracking row of the item is completed, the item and
// its rows are deleted. Status write and barrier check share one
// transaction. Returns true when the item was retired.
func (s *Service) MarkProcessorComplete(ctx context.Context, item *model.QueueItem, processorName string) (bool, error) {
	retired := false
	err := s.withTx(ctx, func(items repository.QueueItemInterface, tracking repository.TrackingInterface) error {
		row, err := tracking.FindByItemAndName(ctx, item.ID, processorName)
		if err != nil {
			return err
		}
		if row == nil {
			return fmt.Errorf("%w: item %d, processor %q", ErrTrackingRowMissing, item.ID, processorName)
		}
		if err := tracking.MarkCompleted(ctx, row.ID, time.Now()); err != nil {
			return err
		}
		incomplete, err := tracking.CountIncomplete(ctx, item.ID)
		if err != nil {
			return err
		}
		if incomplete > 0 {
			return nil
		}
		if err := tracking.DeleteByItem(ctx, item.ID); err != nil {
			return err
		}
		if err := items.Delete(ctx, item.ID); err != nil {
			return err
		}
		retired = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if retired {
		logger.Info("queue item retired",
			zap.Int64("item_id", item.ID),
			zap.Uint64("subject_id", item.SubjectID),
			zap.String("work_type", item.WorkType))
	}
	return retired, nil
}

// MarkProcessorFailed records the failure on the single tracking row.
// Sibling rows and the item itself are untouched.
func (s *Service) MarkProcessorFailed(ctx context.Context, item *model.QueueItem, processorName, message string) error {
	row, err := s.tracking.FindByItemAndName(ctx, item.ID, processorName)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("%w: item %d, processor %q", ErrTrackingRowMissing, item.ID, processorName)
	}
	return s.tracking.MarkFailed(ctx, row.ID, message, time.Now())
}

func (s *Service) FailedItems(ctx context.Context, limit int) ([]model.QueueItem, error) {
	return s.items.ListFailed(ctx, limit)
}

// StuckItems lists items claimed before the horizon and never finished.
// Read-only; resetting one is a manual operator action via RequeueItem.
func (s *Service) StuckItems(ctx context.Context, horizon time.Duration, limit int) ([]model.QueueItem, error) {
	return s.items.ListStuckProcessing(ctx, time.Now().Add(-horizon), limit)
}

var ErrItemNotFound = errors.New("queue item not found")

// RequeueItem manually resets a processing or failed item back to pending.
func (s *Service) RequeueItem(ctx context.Context, id int64) error {
	item, err := s.items.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	if item.Status == model.StatusPending {
		return nil
	}
	return s.items.ResetToPending(ctx, id)
}

func (s *Service) TrackingForItem(ctx context.Context, itemID int64) ([]model.ProcessorTracking, error) {
	return s.tracking.ListByItem(ctx, itemID)
}

func (s *Service) Stats(ctx context.Context) (map[int]int64, error) {
	return s.items.CountByStatus(ctx)
}

func (s *Service) Health(ctx context.Context) error {
	return s.items.PingContext(ctx)
}

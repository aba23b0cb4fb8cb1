package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"shopflow/internal/model"
	"shopflow/internal/repository"
	"shopflow/pkg/logger"

	"gorm.io/gorm"
)

func init() {
	logger.InitLogger("test")
}

// fakeItemRepo is an in-memory QueueItemInterface enforcing the same
// composite unique constraint as the real table.
type fakeItemRepo struct {
	mu     sync.Mutex
	nextID int64
	base   time.Time
	items  map[int64]*model.QueueItem
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{
		base:  time.Now(),
		items: make(map[int64]*model.QueueItem),
	}
}

func (r *fakeItemRepo) Create(ctx context.Context, item *model.QueueItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.SubjectID == item.SubjectID &&
			existing.WorkType == item.WorkType &&
			existing.Status == item.Status {
			return gorm.ErrDuplicatedKey
		}
	}
	r.nextID++
	item.ID = r.nextID
	item.CreatedAt = r.base.Add(time.Duration(r.nextID) * time.Millisecond)
	item.UpdatedAt = item.CreatedAt
	clone := *item
	r.items[item.ID] = &clone
	return nil
}

func (r *fakeItemRepo) FindByID(ctx context.Context, id int64) (*model.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	clone := *item
	return &clone, nil
}

func (r *fakeItemRepo) FindLive(ctx context.Context, subjectID uint64, workType string) (*model.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.SubjectID == subjectID && item.WorkType == workType &&
			(item.Status == model.StatusPending || item.Status == model.StatusProcessing) {
			clone := *item
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeItemRepo) LiveSubjectIDs(ctx context.Context, subjectIDs []uint64, workType string) ([]uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[uint64]bool, len(subjectIDs))
	for _, id := range subjectIDs {
		wanted[id] = true
	}
	var out []uint64
	for _, item := range r.items {
		if wanted[item.SubjectID] && item.WorkType == workType &&
			(item.Status == model.StatusPending || item.Status == model.StatusProcessing) {
			out = append(out, item.SubjectID)
		}
	}
	return out, nil
}

func (r *fakeItemRepo) FetchPending(ctx context.Context, limit int, workType string) ([]model.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.QueueItem
	for _, item := range r.items {
		if item.Status != model.StatusPending {
			continue
		}
		if workType != "" && item.WorkType != workType {
			continue
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeItemRepo) MarkProcessing(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.items[id]; ok {
		item.Status = model.StatusProcessing
		item.Attempts++
		item.UpdatedAt = time.Now()
	}
	return nil
}

func (r *fakeItemRepo) MarkFailed(ctx context.Context, id int64, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.items[id]; ok {
		now := time.Now()
		item.Status = model.StatusFailed
		item.FailedAt = &now
		item.ErrorMessage = message
	}
	return nil
}

func (r *fakeItemRepo) ResetToPending(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item, ok := r.items[id]; ok {
		item.Status = model.StatusPending
		item.FailedAt = nil
		item.ErrorMessage = ""
	}
	return nil
}

func (r *fakeItemRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *fakeItemRepo) ListFailed(ctx context.Context, limit int) ([]model.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.QueueItem
	for _, item := range r.items {
		if item.Status == model.StatusFailed {
			out = append(out, *item)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeItemRepo) ListStuckProcessing(ctx context.Context, olderThan time.Time, limit int) ([]model.QueueItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.QueueItem
	for _, item := range r.items {
		if item.Status == model.StatusProcessing && item.UpdatedAt.Before(olderThan) {
			out = append(out, *item)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeItemRepo) CountByStatus(ctx context.Context) (map[int]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[int]int64)
	for _, item := range r.items {
		counts[item.Status]++
	}
	return counts, nil
}

func (r *fakeItemRepo) PingContext(ctx context.Context) error { return nil }

func (r *fakeItemRepo) WithTx(tx *gorm.DB) repository.QueueItemInterface { return r }

func (r *fakeItemRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func (r *fakeItemRepo) get(id int64) *model.QueueItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil
	}
	clone := *item
	return &clone
}

// fakeTrackingRepo is an in-memory TrackingInterface.
type fakeTrackingRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.ProcessorTracking
}

func newFakeTrackingRepo() *fakeTrackingRepo {
	return &fakeTrackingRepo{rows: make(map[int64]*model.ProcessorTracking)}
}

func (r *fakeTrackingRepo) CreateBatch(ctx context.Context, rows []model.ProcessorTracking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range rows {
		for _, existing := range r.rows {
			if existing.QueueItemID == rows[i].QueueItemID &&
				existing.ProcessorName == rows[i].ProcessorName {
				return gorm.ErrDuplicatedKey
			}
		}
		r.nextID++
		rows[i].ID = r.nextID
		rows[i].CreatedAt = time.Now()
		clone := rows[i]
		r.rows[clone.ID] = &clone
	}
	return nil
}

func (r *fakeTrackingRepo) FindByItemAndName(ctx context.Context, itemID int64, processorName string) (*model.ProcessorTracking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.QueueItemID == itemID && row.ProcessorName == processorName {
			clone := *row
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeTrackingRepo) ListByItem(ctx context.Context, itemID int64) ([]model.ProcessorTracking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ProcessorTracking
	for _, row := range r.rows {
		if row.QueueItemID == itemID {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTrackingRepo) MarkProcessing(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		row.Status = model.StatusProcessing
		row.Attempts++
	}
	return nil
}

func (r *fakeTrackingRepo) MarkCompleted(ctx context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		row.Status = model.StatusCompleted
		row.CompletedAt = &at
	}
	return nil
}

func (r *fakeTrackingRepo) MarkFailed(ctx context.Context, id int64, message string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.rows[id]; ok {
		row.Status = model.StatusFailed
		row.FailedAt = &at
		row.ErrorMessage = message
	}
	return nil
}

func (r *fakeTrackingRepo) CountIncomplete(ctx context.Context, itemID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, row := range r.rows {
		if row.QueueItemID == itemID && row.Status != model.StatusCompleted {
			count++
		}
	}
	return count, nil
}

func (r *fakeTrackingRepo) DeleteByItem(ctx context.Context, itemID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, row := range r.rows {
		if row.QueueItemID == itemID {
			delete(r.rows, id)
		}
	}
	return nil
}

func (r *fakeTrackingRepo) WithTx(tx *gorm.DB) repository.TrackingInterface { return r }

func (r *fakeTrackingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *fakeTrackingRepo) statusFor(itemID int64, processorName string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.QueueItemID == itemID && row.ProcessorName == processorName {
			return row.Status
		}
	}
	return -1
}

// stubProcessor records the items it sees and can be forced to fail.
type stubProcessor struct {
	name     string
	workType string
	err      error
	seen     []int64
}

func (p *stubProcessor) Process(ctx context.Context, item *model.QueueItem) error {
	p.seen = append(p.seen, item.ID)
	return p.err
}

func (p *stubProcessor) WorkType() string { return p.workType }

func (p *stubProcessor) Name() string { return p.name }

// recordingNotifier captures notification messages.
type recordingNotifier struct {
	mu       sync.Mutex
	err      error
	messages []string
}

func (n *recordingNotifier) Notify(ctx context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

func newTestService(registry *Registry) (*Service, *fakeItemRepo, *fakeTrackingRepo) {
	items := newFakeItemRepo()
	tracking := newFakeTrackingRepo()
	return NewService(nil, items, tracking, registry), items, tracking
}

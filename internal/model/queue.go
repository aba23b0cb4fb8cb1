package model

import "time"

// QueueItem is one unit of requested work against a subject (product).
// The composite unique index keeps at most one live (pending/processing)
// item per (subject, work type); concurrent enqueues race on the insert
// and the loser sees a duplicate key error.
type QueueItem struct {
	ID           int64      `json:"id" gorm:"primaryKey"`
	SubjectID    uint64     `json:"subject_id" gorm:"uniqueIndex:idx_subject_work_status,priority:1"`
	WorkType     string     `json:"work_type" gorm:"size:64;uniqueIndex:idx_subject_work_status,priority:2"`
	Status       int        `json:"status" gorm:"uniqueIndex:idx_subject_work_status,priority:3;index"`
	Attempts     int        `json:"attempts" gorm:"default:0"`
	ErrorMessage string     `json:"error_message" gorm:"type:text"`
	FailedAt     *time.Time `json:"failed_at"`
	CreatedAt    time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ProcessorTracking is per-processor progress for one QueueItem. The full
// set of rows for an item is created at enqueue time, one per processor
// registered for the item's work type.
type ProcessorTracking struct {
	ID            int64      `json:"id" gorm:"primaryKey"`
	QueueItemID   int64      `json:"queue_item_id" gorm:"uniqueIndex:idx_item_processor,priority:1"`
	ProcessorName string     `json:"processor_name" gorm:"size:128;uniqueIndex:idx_item_processor,priority:2"`
	Status        int        `json:"status" gorm:"index"`
	Attempts      int        `json:"attempts" gorm:"default:0"`
	ErrorMessage  string     `json:"error_message" gorm:"type:text"`
	CompletedAt   *time.Time `json:"completed_at"`
	FailedAt      *time.Time `json:"failed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

const (
	StatusPending    = 0
	StatusProcessing = 1
	StatusCompleted  = 2
	StatusFailed     = 3
)

// StatusName maps a status constant to its wire/display name.
func StatusName(status int) string {
	switch status {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

package resp

import "time"

type EnqueueResponse struct {
	Enqueued bool  `json:"enqueued"`
	ItemID   int64 `json:"item_id,omitempty"`
}

type EnqueueBulkResponse struct {
	Created int `json:"created"`
}

type QueueItemView struct {
	ID           int64          `json:"id"`
	SubjectID    uint64         `json:"subject_id"`
	WorkType     string         `json:"work_type"`
	Status       string         `json:"status"`
	Attempts     int            `json:"attempts"`
	ErrorMessage string         `json:"error_message,omitempty"`
	FailedAt     *time.Time     `json:"failed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	Tracking     []TrackingView `json:"tracking,omitempty"`
}

type TrackingView struct {
	ProcessorName string     `json:"processor_name"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	FailedAt      *time.Time `json:"failed_at,omitempty"`
}

type QueueStatsResponse struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Failed     int64 `json:"failed"`
}

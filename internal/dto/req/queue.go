package req

type EnqueueRequest struct {
	SubjectID uint64 `json:"subject_id" binding:"required"`
	WorkType  string `json:"work_type" binding:"required"`
}

type EnqueueBulkRequest struct {
	SubjectIDs []uint64 `json:"subject_ids" binding:"required"`
	WorkType   string   `json:"work_type" binding:"required"`
}

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"shopflow/internal/dto/req"
	"shopflow/internal/dto/resp"
	"shopflow/internal/model"

	"github.com/gin-gonic/gin"
)

// QueueProvider is the queue service surface the control plane needs.
type QueueProvider interface {
	Enqueue(ctx context.Context, subjectID uint64, workType string) (*model.QueueItem, error)
	EnqueueBulk(ctx context.Context, subjectIDs []uint64, workType string) (int, error)
	FailedItems(ctx context.Context, limit int) ([]model.QueueItem, error)
	StuckItems(ctx context.Context, horizon time.Duration, limit int) ([]model.QueueItem, error)
	RequeueItem(ctx context.Context, id int64) error
	TrackingForItem(ctx context.Context, itemID int64) ([]model.ProcessorTracking, error)
	Stats(ctx context.Context) (map[int]int64, error)
	Health(ctx context.Context) error
}

type QueueHandler struct {
	service      QueueProvider
	stuckHorizon time.Duration
}

func NewQueueHandler(service QueueProvider, stuckHorizon time.Duration) *QueueHandler {
	if stuckHorizon <= 0 {
		stuckHorizon = time.Hour
	}
	return &QueueHandler{service: service, stuckHorizon: stuckHorizon}
}

func (h *QueueHandler) Enqueue(c *gin.Context) {
	var r req.EnqueueRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON format error"})
		return
	}

	item, err := h.service.Enqueue(c.Request.Context(), r.SubjectID, r.WorkType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if item == nil {
		c.JSON(http.StatusOK, resp.EnqueueResponse{Enqueued: false})
		return
	}
	c.JSON(http.StatusCreated, resp.EnqueueResponse{Enqueued: true, ItemID: item.ID})
}

func (h *QueueHandler) EnqueueBulk(c *gin.Context) {
	var r req.EnqueueBulkRequest
	if err := c.ShouldBindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON format error"})
		return
	}

	created, err := h.service.EnqueueBulk(c.Request.Context(), r.SubjectIDs, r.WorkType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp.EnqueueBulkResponse{Created: created})
}

func (h *QueueHandler) ListFailed(c *gin.Context) {
	limit := queryInt(c, "limit", 100)
	items, err := h.service.FailedItems(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.itemViews(c, items, true))
}

func (h *QueueHandler) ListStuck(c *gin.Context) {
	limit := queryInt(c, "limit", 100)
	horizon := h.stuckHorizon
	if raw := c.Query("older_than"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid older_than duration"})
			return
		}
		horizon = parsed
	}

	items, err := h.service.StuckItems(c.Request.Context(), horizon, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.itemViews(c, items, false))
}

func (h *QueueHandler) Requeue(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}
	if err := h.service.RequeueItem(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "requeued"})
}

func (h *QueueHandler) Stats(c *gin.Context) {
	counts, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp.QueueStatsResponse{
		Pending:    counts[model.StatusPending],
		Processing: counts[model.StatusProcessing],
		Failed:     counts[model.StatusFailed],
	})
}

func (h *QueueHandler) HealthCheck(c *gin.Context) {
	if err := h.service.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *QueueHandler) itemViews(c *gin.Context, items []model.QueueItem, withTracking bool) []resp.QueueItemView {
	views := make([]resp.QueueItemView, 0, len(items))
	for i := range items {
		item := &items[i]
		view := resp.QueueItemView{
			ID:           item.ID,
			SubjectID:    item.SubjectID,
			WorkType:     item.WorkType,
			Status:       model.StatusName(item.Status),
			Attempts:     item.Attempts,
			ErrorMessage: item.ErrorMessage,
			FailedAt:     item.FailedAt,
			CreatedAt:    item.CreatedAt,
		}
		if withTracking {
			rows, err := h.service.TrackingForItem(c.Request.Context(), item.ID)
			if err == nil {
				for _, row := range rows {
					view.Tracking = append(view.Tracking, resp.TrackingView{
						ProcessorName: row.ProcessorName,
						Status:        model.StatusName(row.Status),
						Attempts:      row.Attempts,
						ErrorMessage:  row.ErrorMessage,
						CompletedAt:   row.CompletedAt,
						FailedAt:      row.FailedAt,
					})
				}
			}
		}
		views = append(views, view)
	}
	return views
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yongsang930/batchScript/app/database"
	"github.com/yongsang930/batchScript/app/tasks"
)

const (
	defaultRunLogLimit = 20
	maxRunLogLimit     = 200
)

func NewHandler(db Pinger, feedRepo database.FeedRepository, keywordRepo database.KeywordRepository,
	postRepo database.PostRepository, runLogRepo database.RunLogRepository,
	factory tasks.TaskFactory, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		db:          db,
		feedRepo:    feedRepo,
		keywordRepo: keywordRepo,
		postRepo:    postRepo,
		runLogRepo:  runLogRepo,
		factory:     factory,
		scheduler:   scheduler,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	health := gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if err := h.db.PingContext(ctx); err != nil {
		slog.Error("Database ping failed", "error", err)
		health["status"] = "unavailable"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	health["status"] = "ok"

	if n, err := h.countAll(ctx); err == nil {
		health["counts"] = n
	}

	c.JSON(http.StatusOK, health)
}

// GetStats reports table counts and the latest run log rows, optionally
// filtered by ?job=RSS_CRAWLER|CLEANUP_OLD_POSTS and bounded by ?limit=.
func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	limit := defaultRunLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(n, maxRunLogLimit)
	}

	n, err := h.countAll(ctx)
	if err != nil {
		slog.Error("Database error", "operation", "count", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	logs, err := h.runLogRepo.ListRecent(ctx, c.Query("job"), limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_run_logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	views := make([]runLogView, 0, len(logs))
	for _, l := range logs {
		views = append(views, newRunLogView(l))
	}

	c.JSON(http.StatusOK, gin.H{
		"counts":   n,
		"run_logs": views,
	})
}

func (h *Handler) TriggerCrawl(c *gin.Context) {
	h.enqueue(c, h.factory.NewCrawlTask())
}

func (h *Handler) TriggerCleanup(c *gin.Context) {
	h.enqueue(c, h.factory.NewCleanupTask())
}

func (h *Handler) enqueue(c *gin.Context, task tasks.TaskInterface) {
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing task", "type", string(task.GetType()), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue task",
			"details": err.Error(),
		})
		return
	}

	slog.Info("Task enqueued via API", "type", string(task.GetType()), "id", task.GetID())

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"task": gin.H{
			"id":   task.GetID(),
			"type": task.GetType(),
		},
	})
}

func (h *Handler) countAll(ctx context.Context) (counts, error) {
	var n counts
	var err error

	if n.Feeds, err = h.feedRepo.GetFeedCount(ctx); err != nil {
		return n, err
	}
	if n.Keywords, err = h.keywordRepo.GetKeywordCount(ctx); err != nil {
		return n, err
	}
	if n.Posts, err = h.postRepo.GetPostCount(ctx); err != nil {
		return n, err
	}
	return n, nil
}

func newRunLogView(l database.RunLog) runLogView {
	view := runLogView{
		ID:            l.ID,
		JobType:       l.JobType,
		Level:         l.Level,
		Status:        l.Status,
		AffectedCount: l.AffectedCount,
		Detail:        l.Detail,
		ErrorMessage:  l.ErrorMessage,
		CreatedAt:     l.CreatedAt.UTC().Format(time.RFC3339),
	}

	// Detail is stored as JSON text; surface it as an object when it parses.
	var detail map[string]any
	if err := json.Unmarshal([]byte(l.Detail), &detail); err == nil {
		view.Detail = detail
	}

	return view
}

package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/yongsang930/batchScript/app/database"
	"github.com/yongsang930/batchScript/app/logger"
)

const (
	JobTypeCleanup = "CLEANUP_OLD_POSTS"

	DefaultKeepPerKeyword = 30
)

type CleanupStats struct {
	RunID           string
	Keywords        int
	DeletedPosts    int
	DeletedMappings int
	Duration        time.Duration
}

type cleanupDetail struct {
	RunID           string `json:"run_id"`
	TotalKeywords   int    `json:"total_keywords"`
	DeletedPosts    int    `json:"total_deleted_posts"`
	DeletedMappings int    `json:"total_deleted_mappings"`
}

// CleanupTask runs the retention passes in order: per-keyword cap, zombie
// posts, inactive-only posts. Each pass commits on its own; the first failing
// pass stops the run and is returned after the summary row is written.
type CleanupTask struct {
	Task
	retentionRepo database.RetentionRepository
	runLogRepo    database.RunLogRepository
	keep          int
	now           func() time.Time

	stats CleanupStats
}

func NewCleanupTask(retentionRepo database.RetentionRepository, runLogRepo database.RunLogRepository, keep int) *CleanupTask {
	if keep <= 0 {
		keep = DefaultKeepPerKeyword
	}
	return &CleanupTask{
		Task:          NewTask(TaskTypeCleanup),
		retentionRepo: retentionRepo,
		runLogRepo:    runLogRepo,
		keep:          keep,
		now:           time.Now,
	}
}

func (t *CleanupTask) Execute(ctx context.Context) error {
	_, err := t.Run(ctx)
	return err
}

func (t *CleanupTask) Stats() CleanupStats {
	return t.stats
}

func (t *CleanupTask) Run(ctx context.Context) (CleanupStats, error) {
	started := t.now()
	ctx = logger.Ctx(ctx, slog.String("job", JobTypeCleanup), slog.String("run_id", t.ID))

	stats := CleanupStats{RunID: t.ID}
	err := t.sweep(ctx, &stats)
	stats.Duration = t.now().Sub(started)
	t.stats = stats

	t.record(ctx, stats, err)

	if err != nil {
		return stats, err
	}

	slog.InfoContext(ctx, "Task completed",
		"type", "Cleanup",
		"duration", stats.Duration,
		"keywords", stats.Keywords,
		"deleted_posts", stats.DeletedPosts,
		"deleted_mappings", stats.DeletedMappings)

	return stats, nil
}

func (t *CleanupTask) sweep(ctx context.Context, stats *CleanupStats) error {
	keywordIDs, err := t.retentionRepo.GetActiveKeywordIDs(ctx)
	if err != nil {
		return fmt.Errorf("cap pass: %w", err)
	}
	stats.Keywords = len(keywordIDs)

	var capped database.PruneResult
	for _, id := range keywordIDs {
		res, err := t.retentionRepo.CapKeywordPosts(ctx, id, t.keep)
		if err != nil {
			return fmt.Errorf("cap pass: %w", err)
		}
		capped.DeletedMappings += res.DeletedMappings
		capped.DeletedPosts += res.DeletedPosts
		stats.DeletedMappings += res.DeletedMappings
		stats.DeletedPosts += res.DeletedPosts
	}
	slog.InfoContext(ctx, "Cap pass finished",
		"keep", t.keep,
		"deleted_posts", capped.DeletedPosts,
		"deleted_mappings", capped.DeletedMappings)

	zombies, err := t.retentionRepo.DeleteZombiePosts(ctx)
	if err != nil {
		return fmt.Errorf("zombie pass: %w", err)
	}
	stats.DeletedPosts += zombies
	slog.InfoContext(ctx, "Zombie pass finished", "deleted_posts", zombies)

	inactive, err := t.retentionRepo.DeleteInactiveOnlyPosts(ctx)
	if err != nil {
		return fmt.Errorf("inactive keyword pass: %w", err)
	}
	stats.DeletedPosts += inactive.DeletedPosts
	stats.DeletedMappings += inactive.DeletedMappings
	slog.InfoContext(ctx, "Inactive keyword pass finished",
		"deleted_posts", inactive.DeletedPosts,
		"deleted_mappings", inactive.DeletedMappings)

	return nil
}

func (t *CleanupTask) record(ctx context.Context, stats CleanupStats, runErr error) {
	entry := database.RunLog{
		JobType:       JobTypeCleanup,
		Level:         database.LevelInfo,
		Status:        database.StatusSuccess,
		AffectedCount: stats.DeletedPosts,
		CreatedAt:     t.now(),
	}

	if runErr != nil {
		msg := runErr.Error()
		entry.Level = database.LevelError
		entry.Status = database.StatusFailed
		entry.ErrorMessage = &msg

		slog.ErrorContext(ctx, "Cleanup failed",
			"deleted_posts", stats.DeletedPosts,
			"deleted_mappings", stats.DeletedMappings,
			"error", runErr)
	}

	detail, err := json.Marshal(cleanupDetail{
		RunID:           stats.RunID,
		TotalKeywords:   stats.Keywords,
		DeletedPosts:    stats.DeletedPosts,
		DeletedMappings: stats.DeletedMappings,
	})
	if err == nil {
		entry.Detail = string(detail)
	}

	if err := t.runLogRepo.Insert(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "Failed to write run log", "error", err)
	}
}

package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yongsang930/batchScript/app/database"
	"github.com/yongsang930/batchScript/app/feed"
)

// SyncSourcesTask registers the feeds and keywords of a sources file.
type SyncSourcesTask struct {
	Task
	path        string
	feedRepo    database.FeedRepository
	keywordRepo database.KeywordRepository
}

func NewSyncSourcesTask(path string, feedRepo database.FeedRepository, keywordRepo database.KeywordRepository) *SyncSourcesTask {
	return &SyncSourcesTask{
		Task:        NewTask(TaskTypeSyncSources),
		path:        path,
		feedRepo:    feedRepo,
		keywordRepo: keywordRepo,
	}
}

func (t *SyncSourcesTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	sources, err := feed.LoadSources(t.path)
	if err != nil {
		return err
	}

	for _, f := range sources.Feeds {
		if _, err := t.feedRepo.UpsertFeed(ctx, f.Region, f.URL, f.IsActive()); err != nil {
			return fmt.Errorf("failed to sync feed: %w", err)
		}
	}

	for _, k := range sources.Keywords {
		if _, err := t.keywordRepo.UpsertKeyword(ctx, k.En, k.Ko, k.IsActive()); err != nil {
			return fmt.Errorf("failed to sync keyword: %w", err)
		}
	}

	slog.InfoContext(ctx, "Task completed",
		"type", "SyncSources",
		"file", t.path,
		"feeds", len(sources.Feeds),
		"keywords", len(sources.Keywords),
		"duration", t.GetDuration())

	return nil
}

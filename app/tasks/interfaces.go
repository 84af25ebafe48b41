package tasks

import (
	"context"

	"github.com/yongsang930/batchScript/app/feed"
)

// TaskSchedulerInterface is what the API and main need from the scheduler.
//
//	scheduler := NewScheduler(factory, crawlInterval, cleanupInterval)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(factory.NewCrawlTask())
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// TaskFactory builds fresh tasks; each run gets its own id and keyword cache.
type TaskFactory interface {
	NewCrawlTask() TaskInterface
	NewCleanupTask() TaskInterface
}

type FeedExtractor interface {
	Extract(ctx context.Context, sourceURL string, limits feed.Limits) (*feed.Extraction, error)
}

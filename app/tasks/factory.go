package tasks

import (
	"github.com/yongsang930/batchScript/app/database"
	"github.com/yongsang930/batchScript/app/feed"
)

var _ TaskFactory = (*Factory)(nil)

type Factory struct {
	FeedRepo      database.FeedRepository
	KeywordRepo   database.KeywordRepository
	PostRepo      database.PostRepository
	RunLogRepo    database.RunLogRepository
	RetentionRepo database.RetentionRepository
	Extractor     FeedExtractor
	Limits        feed.Limits
	Keep          int
}

func (f *Factory) NewCrawlTask() TaskInterface {
	return NewCrawlTask(f.FeedRepo, f.KeywordRepo, f.PostRepo, f.RunLogRepo, f.Extractor, f.Limits)
}

func (f *Factory) NewCleanupTask() TaskInterface {
	return NewCleanupTask(f.RetentionRepo, f.RunLogRepo, f.Keep)
}

func (f *Factory) NewSyncSourcesTask(path string) TaskInterface {
	return NewSyncSourcesTask(path, f.FeedRepo, f.KeywordRepo)
}

package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/yongsang930/batchScript/app/database"
	"github.com/yongsang930/batchScript/app/feed"
	"github.com/yongsang930/batchScript/app/keyword"
	"github.com/yongsang930/batchScript/app/logger"
)

const JobTypeCrawler = "RSS_CRAWLER"

type stage string

const (
	stageFetching   stage = "FETCHING"
	stageExtracted  stage = "EXTRACTED"
	stagePersisting stage = "PERSISTING"
	stageLogged     stage = "LOGGED"
)

type CrawlStats struct {
	RunID      string
	Sources    int
	Succeeded  int
	Failed     int
	New        int
	Duplicates int
	Duration   time.Duration
}

type feedOutcome struct {
	stage      stage
	collected  int
	new        int
	duplicates int
	malformed  bool
	err        error
}

type crawlDetail struct {
	RunID      string `json:"run_id"`
	FeedID     int64  `json:"feed_id"`
	FeedURL    string `json:"feed_url"`
	Region     string `json:"region"`
	Collected  int    `json:"collected"`
	New        int    `json:"new"`
	Duplicates int    `json:"duplicate"`
	Malformed  bool   `json:"malformed,omitempty"`
}

// CrawlTask ingests every active feed once, one feed at a time. A failing feed
// is logged and skipped; only a failure to list feeds fails the task.
type CrawlTask struct {
	Task
	feedRepo    database.FeedRepository
	keywordRepo database.KeywordRepository
	postRepo    database.PostRepository
	runLogRepo  database.RunLogRepository
	extractor   FeedExtractor
	limits      feed.Limits
	now         func() time.Time

	stats CrawlStats
}

func NewCrawlTask(feedRepo database.FeedRepository, keywordRepo database.KeywordRepository,
	postRepo database.PostRepository, runLogRepo database.RunLogRepository,
	extractor FeedExtractor, limits feed.Limits) *CrawlTask {
	return &CrawlTask{
		Task:        NewTask(TaskTypeCrawl),
		feedRepo:    feedRepo,
		keywordRepo: keywordRepo,
		postRepo:    postRepo,
		runLogRepo:  runLogRepo,
		extractor:   extractor,
		limits:      limits,
		now:         time.Now,
	}
}

func (t *CrawlTask) Execute(ctx context.Context) error {
	_, err := t.Run(ctx)
	return err
}

// Stats returns the totals of the last Run.
func (t *CrawlTask) Stats() CrawlStats {
	return t.stats
}

func (t *CrawlTask) Run(ctx context.Context) (CrawlStats, error) {
	started := t.now()
	stats := CrawlStats{RunID: t.ID}
	ctx = logger.Ctx(ctx, slog.String("job", JobTypeCrawler), slog.String("run_id", t.ID))

	feeds, err := t.feedRepo.GetActiveFeeds(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list feeds: %w", err)
	}
	stats.Sources = len(feeds)

	// Keywords are read at most once per run.
	keywords := keyword.NewCache(t.keywordRepo)

	for _, f := range feeds {
		if err := ctx.Err(); err != nil {
			t.stats = stats
			return stats, err
		}

		feedCtx := logger.Ctx(ctx, slog.Int64("feed_id", f.ID), slog.String("feed_url", f.URL))
		outcome := t.processFeed(feedCtx, f, keywords)
		t.record(feedCtx, f, &outcome)

		if outcome.err != nil {
			stats.Failed++
			continue
		}
		stats.Succeeded++
		stats.New += outcome.new
		stats.Duplicates += outcome.duplicates
	}

	stats.Duration = t.now().Sub(started)
	t.stats = stats

	slog.InfoContext(ctx, "Task completed",
		"type", "Crawl",
		"duration", stats.Duration,
		"sources", stats.Sources,
		"success", stats.Succeeded,
		"failed", stats.Failed,
		"new", stats.New,
		"duplicates", stats.Duplicates)

	return stats, nil
}

func (t *CrawlTask) processFeed(ctx context.Context, f database.Feed, keywords *keyword.Cache) feedOutcome {
	outcome := feedOutcome{stage: stageFetching}

	extraction, err := t.extractor.Extract(ctx, f.URL, t.limits)
	if err != nil {
		outcome.err = err
		return outcome
	}
	outcome.stage = stageExtracted
	outcome.collected = len(extraction.Candidates)
	outcome.malformed = extraction.Malformed

	slog.DebugContext(ctx, "Feed extracted",
		"entries", extraction.Entries,
		"candidates", len(extraction.Candidates),
		"skipped", extraction.Skipped)

	matcher, err := keywords.Matcher(ctx)
	if err != nil {
		outcome.err = err
		return outcome
	}

	outcome.stage = stagePersisting
	posts := make([]database.NewPost, len(extraction.Candidates))
	for i, c := range extraction.Candidates {
		posts[i] = database.NewPost{
			Title:       c.Title,
			Link:        c.Link,
			Summary:     c.Body,
			PublishedAt: c.PublishedAt,
		}
	}

	result, err := t.postRepo.SaveBatch(ctx, posts, f.Region, matcher)
	if err != nil {
		outcome.err = err
		return outcome
	}
	outcome.new = result.New
	outcome.duplicates = result.Duplicates

	return outcome
}

// record writes the feed's run log row and touches last_crawled_at whatever
// the outcome. Failures here are logged only.
func (t *CrawlTask) record(ctx context.Context, f database.Feed, outcome *feedOutcome) {
	entry := database.RunLog{
		JobType:       JobTypeCrawler,
		Level:         database.LevelInfo,
		Status:        database.StatusSuccess,
		AffectedCount: outcome.collected,
		CreatedAt:     t.now(),
	}

	if outcome.err != nil {
		msg := fmt.Sprintf("%s: %v", outcome.stage, outcome.err)
		entry.Level = database.LevelError
		entry.Status = database.StatusFailed
		entry.ErrorMessage = &msg

		slog.ErrorContext(ctx, "Feed processing failed", "stage", string(outcome.stage), "error", outcome.err)
	} else {
		if outcome.malformed {
			slog.WarnContext(ctx, "Feed parsed with errors", "collected", outcome.collected)
		}
		slog.InfoContext(ctx, "Feed processed",
			"collected", outcome.collected,
			"new", outcome.new,
			"duplicates", outcome.duplicates)
	}

	detail, err := json.Marshal(crawlDetail{
		RunID:      t.ID,
		FeedID:     f.ID,
		FeedURL:    f.URL,
		Region:     f.Region,
		Collected:  outcome.collected,
		New:        outcome.new,
		Duplicates: outcome.duplicates,
		Malformed:  outcome.malformed,
	})
	if err == nil {
		entry.Detail = string(detail)
	}

	if err := t.runLogRepo.Insert(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "Failed to write run log", "error", err)
	}

	if err := t.feedRepo.TouchLastCrawled(ctx, f.ID, t.now()); err != nil {
		slog.ErrorContext(ctx, "Failed to update last crawled time", "error", err)
	}

	outcome.stage = stageLogged
}

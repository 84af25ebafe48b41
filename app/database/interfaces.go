package database

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type FeedRepository interface {
	GetActiveFeeds(ctx context.Context) ([]Feed, error)
	GetFeedCount(ctx context.Context) (int, error)

	UpsertFeed(ctx context.Context, region, feedURL string, active bool) (int64, error)
	TouchLastCrawled(ctx context.Context, feedID int64, at time.Time) error
}

type KeywordRepository interface {
	GetActiveKeywords(ctx context.Context) ([]Keyword, error)
	GetKeywordCount(ctx context.Context) (int, error)

	UpsertKeyword(ctx context.Context, enName, koName string, active bool) (int64, error)
}

// KeywordMatcher returns the ids of the keywords a post's text matches.
type KeywordMatcher interface {
	Match(title, body string) []int64
}

type PostRepository interface {
	// SaveBatch stores posts in one transaction and tags the newly inserted
	// ones. New+Duplicates always equals len(posts).
	SaveBatch(ctx context.Context, posts []NewPost, region string, matcher KeywordMatcher) (SaveResult, error)
	GetPost(ctx context.Context, linkHash string) (*Post, error)
	GetPostCount(ctx context.Context) (int, error)
	GetPostKeywordIDs(ctx context.Context, postID int64) ([]int64, error)
}

type RunLogRepository interface {
	Insert(ctx context.Context, entry RunLog) error
	// ListRecent returns the newest rows first; an empty jobType matches all.
	ListRecent(ctx context.Context, jobType string, limit int) ([]RunLog, error)
}

// RetentionRepository runs the sweeper passes. Each call commits on its own.
type RetentionRepository interface {
	GetActiveKeywordIDs(ctx context.Context) ([]int64, error)
	CapKeywordPosts(ctx context.Context, keywordID int64, keep int) (PruneResult, error)
	DeleteZombiePosts(ctx context.Context) (int, error)
	DeleteInactiveOnlyPosts(ctx context.Context) (PruneResult, error)
}

package database

import (
	"context"
	"fmt"
	"time"
)

var _ FeedRepository = (*feedRepository)(nil)

type feedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) FeedRepository {
	return &feedRepository{db: db}
}

func (r *feedRepository) GetActiveFeeds(ctx context.Context) ([]Feed, error) {
	var feeds []Feed
	err := r.db.SelectContext(ctx, &feeds, `
		SELECT feed_id, region, feed_url, is_active, last_crawled_at, created_at
		FROM rss_feeds
		WHERE is_active = 1
		ORDER BY feed_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get active feeds: %w", err)
	}
	return feeds, nil
}

func (r *feedRepository) GetFeedCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM rss_feeds`); err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

func (r *feedRepository) UpsertFeed(ctx context.Context, region, feedURL string, active bool) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `
		INSERT INTO rss_feeds (region, feed_url, is_active)
		VALUES (?, ?, ?)
		ON CONFLICT(feed_url) DO UPDATE SET
			region = excluded.region,
			is_active = excluded.is_active
		RETURNING feed_id
	`, region, feedURL, active)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert feed %s: %w", feedURL, err)
	}
	return id, nil
}

func (r *feedRepository) TouchLastCrawled(ctx context.Context, feedID int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE rss_feeds SET last_crawled_at = ? WHERE feed_id = ?`, at.UTC(), feedID)
	if err != nil {
		return fmt.Errorf("failed to update last crawled time: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("feed %d: %w", feedID, ErrNotFound)
	}
	return nil
}

package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// Rows per multi-row INSERT and ids per IN list, well under sqlite's bound
// parameter limit.
const (
	insertChunkSize = 100
	queryChunkSize  = 500
)

var _ PostRepository = (*postRepository)(nil)

type postRepository struct {
	db  *DB
	now func() time.Time
}

func NewPostRepository(db *DB) PostRepository {
	return &postRepository{db: db, now: time.Now}
}

// LinkHash is the dedup fingerprint of a post: hex sha256 of its raw link.
func LinkHash(link string) string {
	hash := sha256.Sum256([]byte(link))
	return hex.EncodeToString(hash[:])
}

func (r *postRepository) SaveBatch(ctx context.Context, posts []NewPost, region string, matcher KeywordMatcher) (SaveResult, error) {
	var result SaveResult
	if len(posts) == 0 {
		return result, nil
	}

	hashes := make([]string, len(posts))
	var unique []string
	firstIndex := make(map[string]int, len(posts))
	for i, p := range posts {
		hashes[i] = LinkHash(p.Link)
		if _, ok := firstIndex[hashes[i]]; !ok {
			firstIndex[hashes[i]] = i
			unique = append(unique, hashes[i])
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := existingHashes(ctx, tx, unique)
	if err != nil {
		return result, err
	}

	// Only the first occurrence of an unseen hash counts as new.
	var fresh []int
	for i, h := range hashes {
		if existing[h] || firstIndex[h] != i {
			result.Duplicates++
			continue
		}
		result.New++
		fresh = append(fresh, i)
	}

	now := r.now().UTC()
	for _, batch := range chunk(unique, insertChunkSize) {
		q := sq.Insert("posts").Columns("title", "link", "link_hash", "summary", "region", "published_at", "created_at")
		for _, h := range batch {
			p := posts[firstIndex[h]]
			published := now
			if p.PublishedAt != nil {
				published = p.PublishedAt.UTC()
			}
			q = q.Values(p.Title, p.Link, h, p.Summary, region, published, now)
		}

		query, args, err := q.Suffix("ON CONFLICT(link_hash) DO NOTHING").ToSql()
		if err != nil {
			return result, fmt.Errorf("failed to build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return result, fmt.Errorf("failed to insert posts: %w", err)
		}
	}

	if len(fresh) > 0 && matcher != nil {
		ids, err := postIDs(ctx, tx, unique)
		if err != nil {
			return result, err
		}

		type mapping struct{ postID, keywordID int64 }
		var mappings []mapping
		for _, i := range fresh {
			postID, ok := ids[hashes[i]]
			if !ok {
				return result, fmt.Errorf("post %s missing after insert", hashes[i])
			}
			for _, keywordID := range matcher.Match(posts[i].Title, posts[i].Summary) {
				mappings = append(mappings, mapping{postID, keywordID})
			}
		}

		for _, batch := range chunk(mappings, insertChunkSize) {
			q := sq.Insert("post_keywords").Columns("post_id", "keyword_id")
			for _, m := range batch {
				q = q.Values(m.postID, m.keywordID)
			}
			query, args, err := q.Suffix("ON CONFLICT(post_id, keyword_id) DO NOTHING").ToSql()
			if err != nil {
				return result, fmt.Errorf("failed to build insert: %w", err)
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return result, fmt.Errorf("failed to insert post keywords: %w", err)
			}
			if n, err := res.RowsAffected(); err == nil {
				result.Mappings += int(n)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return SaveResult{}, fmt.Errorf("failed to commit batch: %w", err)
	}

	return result, nil
}

func (r *postRepository) GetPost(ctx context.Context, linkHash string) (*Post, error) {
	var post Post
	err := r.db.GetContext(ctx, &post, `
		SELECT post_id, title, link, link_hash, summary, region, published_at, created_at
		FROM posts
		WHERE link_hash = ?
	`, linkHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return &post, nil
}

func (r *postRepository) GetPostCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM posts`); err != nil {
		return 0, fmt.Errorf("failed to get post count: %w", err)
	}
	return count, nil
}

func (r *postRepository) GetPostKeywordIDs(ctx context.Context, postID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `SELECT keyword_id FROM post_keywords WHERE post_id = ? ORDER BY keyword_id`, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post keywords: %w", err)
	}
	return ids, nil
}

func existingHashes(ctx context.Context, tx *sqlx.Tx, hashes []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	for _, batch := range chunk(hashes, queryChunkSize) {
		query, args, err := sq.Select("link_hash").From("posts").Where(sq.Eq{"link_hash": batch}).ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build query: %w", err)
		}

		var found []string
		if err := tx.SelectContext(ctx, &found, query, args...); err != nil {
			return nil, fmt.Errorf("failed to query existing posts: %w", err)
		}
		for _, h := range found {
			existing[h] = true
		}
	}
	return existing, nil
}

func postIDs(ctx context.Context, tx *sqlx.Tx, hashes []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(hashes))
	for _, batch := range chunk(hashes, queryChunkSize) {
		query, args, err := sq.Select("post_id", "link_hash").From("posts").Where(sq.Eq{"link_hash": batch}).ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build query: %w", err)
		}

		var rows []struct {
			ID       int64  `db:"post_id"`
			LinkHash string `db:"link_hash"`
		}
		if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, fmt.Errorf("failed to query post ids: %w", err)
		}
		for _, row := range rows {
			ids[row.LinkHash] = row.ID
		}
	}
	return ids, nil
}

func chunk[T any](items []T, size int) [][]T {
	var chunks [][]T
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[:size:size])
	}
	if len(items) > 0 {
		chunks = append(chunks, items)
	}
	return chunks
}

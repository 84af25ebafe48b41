package database

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const orphanCondition = "NOT EXISTS (SELECT 1 FROM post_keywords pk WHERE pk.post_id = posts.post_id)"

var _ RetentionRepository = (*retentionRepository)(nil)

type retentionRepository struct {
	db *DB
}

func NewRetentionRepository(db *DB) RetentionRepository {
	return &retentionRepository{db: db}
}

func (r *retentionRepository) GetActiveKeywordIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids, `
		SELECT keyword_id FROM keywords
		WHERE is_active = 1 AND deleted_at IS NULL
		ORDER BY keyword_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get active keyword ids: %w", err)
	}
	return ids, nil
}

// CapKeywordPosts keeps the newest keep posts of a keyword (ties broken by
// higher post id), unlinks the rest from it and deletes any unlinked post that
// no other keyword still holds.
func (r *retentionRepository) CapKeywordPosts(ctx context.Context, keywordID int64, keep int) (PruneResult, error) {
	var result PruneResult

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var overflow []int64
		err := tx.SelectContext(ctx, &overflow, `
			SELECT pk.post_id
			FROM post_keywords pk
			JOIN posts p ON p.post_id = pk.post_id
			WHERE pk.keyword_id = ?
			ORDER BY p.published_at DESC, p.post_id DESC
			LIMIT -1 OFFSET ?
		`, keywordID, keep)
		if err != nil {
			return fmt.Errorf("failed to select overflow posts: %w", err)
		}

		for _, batch := range chunk(overflow, queryChunkSize) {
			n, err := execDelete(ctx, tx, sq.Delete("post_keywords").
				Where(sq.Eq{"keyword_id": keywordID, "post_id": batch}))
			if err != nil {
				return fmt.Errorf("failed to delete post keywords: %w", err)
			}
			result.DeletedMappings += n

			n, err = execDelete(ctx, tx, sq.Delete("posts").
				Where(sq.Eq{"post_id": batch}).
				Where(orphanCondition))
			if err != nil {
				return fmt.Errorf("failed to delete unlinked posts: %w", err)
			}
			result.DeletedPosts += n
		}
		return nil
	})
	if err != nil {
		return PruneResult{}, fmt.Errorf("keyword %d: %w", keywordID, err)
	}

	return result, nil
}

func (r *retentionRepository) DeleteZombiePosts(ctx context.Context) (int, error) {
	var deleted int
	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		n, err := execDelete(ctx, tx, sq.Delete("posts").Where(orphanCondition))
		if err != nil {
			return fmt.Errorf("failed to delete zombie posts: %w", err)
		}
		deleted = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// DeleteInactiveOnlyPosts removes posts none of whose keywords is active,
// associations first.
func (r *retentionRepository) DeleteInactiveOnlyPosts(ctx context.Context) (PruneResult, error) {
	var result PruneResult

	err := r.inTx(ctx, func(tx *sqlx.Tx) error {
		var ids []int64
		err := tx.SelectContext(ctx, &ids, `
			SELECT DISTINCT pk.post_id
			FROM post_keywords pk
			WHERE NOT EXISTS (
				SELECT 1
				FROM post_keywords active_pk
				JOIN keywords k ON k.keyword_id = active_pk.keyword_id
				WHERE active_pk.post_id = pk.post_id
				  AND k.is_active = 1
				  AND k.deleted_at IS NULL
			)
			ORDER BY pk.post_id
		`)
		if err != nil {
			return fmt.Errorf("failed to select inactive-only posts: %w", err)
		}

		for _, batch := range chunk(ids, queryChunkSize) {
			n, err := execDelete(ctx, tx, sq.Delete("post_keywords").Where(sq.Eq{"post_id": batch}))
			if err != nil {
				return fmt.Errorf("failed to delete post keywords: %w", err)
			}
			result.DeletedMappings += n

			n, err = execDelete(ctx, tx, sq.Delete("posts").Where(sq.Eq{"post_id": batch}))
			if err != nil {
				return fmt.Errorf("failed to delete posts: %w", err)
			}
			result.DeletedPosts += n
		}
		return nil
	})
	if err != nil {
		return PruneResult{}, err
	}

	return result, nil
}

func (r *retentionRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func execDelete(ctx context.Context, tx *sqlx.Tx, q sq.DeleteBuilder) (int, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

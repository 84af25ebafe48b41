package database

import (
	"context"
	"fmt"
)

var _ KeywordRepository = (*keywordRepository)(nil)

type keywordRepository struct {
	db *DB
}

func NewKeywordRepository(db *DB) KeywordRepository {
	return &keywordRepository{db: db}
}

// GetActiveKeywords returns keywords that are flagged active and not soft-deleted.
func (r *keywordRepository) GetActiveKeywords(ctx context.Context) ([]Keyword, error) {
	var keywords []Keyword
	err := r.db.SelectContext(ctx, &keywords, `
		SELECT keyword_id, en_name, ko_name, is_active, deleted_at, created_at
		FROM keywords
		WHERE is_active = 1 AND deleted_at IS NULL
		ORDER BY keyword_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get active keywords: %w", err)
	}
	return keywords, nil
}

func (r *keywordRepository) GetKeywordCount(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM keywords WHERE deleted_at IS NULL`); err != nil {
		return 0, fmt.Errorf("failed to get keyword count: %w", err)
	}
	return count, nil
}

// UpsertKeyword registers a keyword; re-registering a soft-deleted one revives it.
func (r *keywordRepository) UpsertKeyword(ctx context.Context, enName, koName string, active bool) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `
		INSERT INTO keywords (en_name, ko_name, is_active)
		VALUES (?, ?, ?)
		ON CONFLICT(en_name, ko_name) DO UPDATE SET
			is_active = excluded.is_active,
			deleted_at = NULL
		RETURNING keyword_id
	`, enName, koName, active)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert keyword %q/%q: %w", enName, koName, err)
	}
	return id, nil
}

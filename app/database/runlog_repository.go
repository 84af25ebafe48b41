package database

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const maxErrorMessageLength = 1000

var _ RunLogRepository = (*runLogRepository)(nil)

type runLogRepository struct {
	db  *DB
	now func() time.Time
}

func NewRunLogRepository(db *DB) RunLogRepository {
	return &runLogRepository{db: db, now: time.Now}
}

func (r *runLogRepository) Insert(ctx context.Context, entry RunLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	if entry.Detail == "" {
		entry.Detail = "{}"
	}
	if entry.ErrorMessage != nil {
		msg := TruncateError(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO batch_logs (job_type, log_level, status, affected_count, detail, error_message, created_at)
		VALUES (:job_type, :log_level, :status, :affected_count, :detail, :error_message, :created_at)
	`, entry)
	if err != nil {
		return fmt.Errorf("failed to insert run log: %w", err)
	}
	return nil
}

func (r *runLogRepository) ListRecent(ctx context.Context, jobType string, limit int) ([]RunLog, error) {
	q := sq.Select("log_id", "job_type", "log_level", "status", "affected_count", "detail", "error_message", "created_at").
		From("batch_logs").
		OrderBy("created_at DESC", "log_id DESC").
		Limit(uint64(limit))
	if jobType != "" {
		q = q.Where(sq.Eq{"job_type": jobType})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var logs []RunLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list run logs: %w", err)
	}
	return logs, nil
}

// TruncateError cuts msg to at most 1000 characters without splitting a rune.
func TruncateError(msg string) string {
	runes := []rune(msg)
	if len(runes) <= maxErrorMessageLength {
		return msg
	}
	return string(runes[:maxErrorMessageLength])
}

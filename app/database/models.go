package database

import (
	"time"
)

type Feed struct {
	ID            int64      `db:"feed_id"`
	Region        string     `db:"region"`
	URL           string     `db:"feed_url"`
	IsActive      bool       `db:"is_active"`
	LastCrawledAt *time.Time `db:"last_crawled_at"`
	CreatedAt     time.Time  `db:"created_at"`
}

type Keyword struct {
	ID        int64      `db:"keyword_id"`
	EnName    string     `db:"en_name"`
	KoName    string     `db:"ko_name"`
	IsActive  bool       `db:"is_active"`
	DeletedAt *time.Time `db:"deleted_at"`
	CreatedAt time.Time  `db:"created_at"`
}

type Post struct {
	ID          int64     `db:"post_id"`
	Title       string    `db:"title"`
	Link        string    `db:"link"`
	LinkHash    string    `db:"link_hash"`
	Summary     string    `db:"summary"`
	Region      string    `db:"region"`
	PublishedAt time.Time `db:"published_at"`
	CreatedAt   time.Time `db:"created_at"`
}

// NewPost is a post as handed over by ingestion. A nil PublishedAt is stored
// as the save time.
type NewPost struct {
	Title       string
	Link        string
	Summary     string
	PublishedAt *time.Time
}

type SaveResult struct {
	New        int
	Duplicates int
	Mappings   int
}

type PruneResult struct {
	DeletedMappings int
	DeletedPosts    int
}

const (
	LevelInfo  = "INFO"
	LevelError = "ERROR"

	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

type RunLog struct {
	ID            int64     `db:"log_id"`
	JobType       string    `db:"job_type"`
	Level         string    `db:"log_level"`
	Status        string    `db:"status"`
	AffectedCount int       `db:"affected_count"`
	Detail        string    `db:"detail"`
	ErrorMessage  *string   `db:"error_message"`
	CreatedAt     time.Time `db:"created_at"`
}

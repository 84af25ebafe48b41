package api

import (
	"context"

	"github.com/yongsang930/batchScript/app/database"
	"github.com/yongsang930/batchScript/app/tasks"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	db          Pinger
	feedRepo    database.FeedRepository
	keywordRepo database.KeywordRepository
	postRepo    database.PostRepository
	runLogRepo  database.RunLogRepository
	factory     tasks.TaskFactory
	scheduler   tasks.TaskSchedulerInterface
}

type counts struct {
	Feeds    int `json:"feeds"`
	Keywords int `json:"keywords"`
	Posts    int `json:"posts"`
}

type runLogView struct {
	ID            int64   `json:"id"`
	JobType       string  `json:"job_type"`
	Level         string  `json:"level"`
	Status        string  `json:"status"`
	AffectedCount int     `json:"affected_count"`
	Detail        any     `json:"detail"`
	ErrorMessage  *string `json:"error_message,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"

	"github.com/yongsang930/batchScript/app/api"
	"github.com/yongsang930/batchScript/app/cfg"
	"github.com/yongsang930/batchScript/app/database"
	"github.com/yongsang930/batchScript/app/feed"
	"github.com/yongsang930/batchScript/app/logger"
	"github.com/yongsang930/batchScript/app/tasks"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	if c == nil {
		// Help was shown
		return
	}

	slog.SetDefault(logger.New(os.Stdout, c.LogFormat, c.Debug))

	if err := runJob(context.Background(), c); err != nil {
		slog.Error("Job failed", "job", string(c.Job), "error", err)
		os.Exit(1)
	}
}

func runJob(ctx context.Context, c *cfg.Cfg) error {
	slog.Info("Starting", "version", c.Version, "job", string(c.Job), "db_path", c.DBPath)

	db, err := database.NewConnection(c.DBPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	factory := newFactory(db, c)

	if c.SourcesFile != "" {
		if err := factory.NewSyncSourcesTask(c.SourcesFile).Execute(ctx); err != nil {
			return fmt.Errorf("failed to sync sources: %w", err)
		}
	}

	switch c.Job {
	case cfg.JobCrawl:
		return factory.NewCrawlTask().Execute(ctx)
	case cfg.JobCleanup:
		return factory.NewCleanupTask().Execute(ctx)
	case cfg.JobAll:
		if err := factory.NewCrawlTask().Execute(ctx); err != nil {
			return err
		}
		return factory.NewCleanupTask().Execute(ctx)
	case cfg.JobServe:
		return serve(ctx, db, factory, c)
	default:
		return fmt.Errorf("unknown job %q", c.Job)
	}
}

func newFactory(db *database.DB, c *cfg.Cfg) *tasks.Factory {
	fetcher := feed.NewFetcher(&http.Client{}, c.UserAgent, c.RequestTimeout, c.FetchRetries)

	var contentExtractor *feed.ContentExtractor
	if c.ExtractContent {
		contentExtractor = feed.NewContentExtractor()
	}

	return &tasks.Factory{
		FeedRepo:      database.NewFeedRepository(db),
		KeywordRepo:   database.NewKeywordRepository(db),
		PostRepo:      database.NewPostRepository(db),
		RunLogRepo:    database.NewRunLogRepository(db),
		RetentionRepo: database.NewRetentionRepository(db),
		Extractor:     feed.NewExtractor(fetcher, feed.NewParser(), contentExtractor),
		Limits: feed.Limits{
			MaxItems:    c.MaxItems,
			RecencyDays: c.RecencyDays,
		},
		Keep: c.KeepPerKeyword,
	}
}

// serve runs the scheduler and the status server until a signal arrives or
// either of them stops.
func serve(ctx context.Context, db *database.DB, factory *tasks.Factory, c *cfg.Cfg) error {
	scheduler := tasks.NewScheduler(factory, c.CrawlInterval, c.CleanupInterval)

	handler := api.NewHandler(db, factory.FeedRepo, factory.KeywordRepo, factory.PostRepo,
		factory.RunLogRepo, factory, scheduler)
	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      api.NewServer(handler, c.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	var g run.Group

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	schedulerDone := make(chan struct{})
	g.Add(func() error {
		slog.Info("Starting scheduler",
			"crawl_interval", c.CrawlInterval.String(),
			"cleanup_interval", c.CleanupInterval.String())
		scheduler.Start()
		<-schedulerDone
		return nil
	}, func(error) {
		scheduler.Stop()
		close(schedulerDone)
		slog.Info("Scheduler stopped")
	})

	g.Add(func() error {
		slog.Info("Starting HTTP server", "port", c.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
	})

	err := g.Run()

	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		slog.Info("Shutdown complete", "signal", sigErr.Signal.String())
		return nil
	}
	return err
}

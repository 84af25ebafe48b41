package cfg

import "time"

type Job string

const (
	JobCrawl   Job = "crawl"
	JobCleanup Job = "cleanup"
	JobAll     Job = "all"
	JobServe   Job = "serve"
)

type Cfg struct {
	// Storage
	DBPath string

	// Job selection
	Job         Job
	SourcesFile string

	// Ingestion
	MaxItems       int
	RecencyDays    int
	UserAgent      string
	RequestTimeout time.Duration
	FetchRetries   int
	ExtractContent bool

	// Retention
	KeepPerKeyword int

	// Serve mode
	CrawlInterval   time.Duration
	CleanupInterval time.Duration
	Port            string
	APIAccessKey    string

	// Application metadata
	Timezone  string
	Debug     bool
	LogFormat string
	Version   string
}

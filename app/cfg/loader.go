package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

const DefaultUserAgent = "Mozilla/5.0 (compatible; RSSBatch/1.0; +https://example.local)"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/batch.db" description:"SQLite database file"`

	// Job selection
	Job         string `long:"job" env:"JOB" default:"crawl" choice:"crawl" choice:"cleanup" choice:"all" choice:"serve" description:"Job to run"`
	SourcesFile string `long:"sources-file" env:"SOURCES_FILE" description:"YAML file with feeds and keywords to sync before running (optional)"`

	// Ingestion
	MaxItems       int    `long:"max-items" env:"MAX_ITEMS_PER_FEED" default:"50" description:"Maximum entries taken from each feed"`
	RecencyDays    int    `long:"recency-days" env:"RECENCY_DAYS" default:"365" description:"Skip entries older than this many days (0 disables)"`
	UserAgent      string `long:"user-agent" env:"USER_AGENT" default:"Mozilla/5.0 (compatible; RSSBatch/1.0; +https://example.local)" description:"User agent string for HTTP requests"`
	RequestTimeout int    `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"10" description:"Feed request timeout in seconds"`
	FetchRetries   int    `long:"fetch-retries" env:"FETCH_RETRIES" default:"2" description:"Retries for transient fetch failures"`
	ExtractContent bool   `long:"extract-content" env:"EXTRACT_CONTENT" description:"Fetch article text for entries without a body"`

	// Retention
	KeepPerKeyword int `long:"keep-per-keyword" env:"KEEP_PER_KEYWORD" default:"30" description:"Posts retained per active keyword"`

	// Serve mode
	CrawlInterval   int    `long:"crawl-interval" env:"CRAWL_INTERVAL" default:"3600" description:"Crawl interval in seconds (serve mode)"`
	CleanupInterval int    `long:"cleanup-interval" env:"CLEANUP_INTERVAL" default:"86400" description:"Cleanup interval in seconds (serve mode)"`
	Port            string `long:"port" env:"PORT" default:"8080" description:"HTTP server port (serve mode)"`
	APIAccessKey    string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for job triggers (optional)"`

	// Application metadata
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Asia/Seoul)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
	LogFormat string `long:"log-format" env:"LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"Log output format"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return LoadArgs(nil)
}

// LoadArgs parses the given arguments instead of os.Args when args is non-nil.
func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:          raw.DBPath,
		Job:             Job(raw.Job),
		SourcesFile:     raw.SourcesFile,
		MaxItems:        raw.MaxItems,
		RecencyDays:     raw.RecencyDays,
		UserAgent:       cmp.Or(raw.UserAgent, DefaultUserAgent),
		RequestTimeout:  time.Duration(raw.RequestTimeout) * time.Second,
		FetchRetries:    raw.FetchRetries,
		ExtractContent:  raw.ExtractContent,
		KeepPerKeyword:  raw.KeepPerKeyword,
		CrawlInterval:   time.Duration(raw.CrawlInterval) * time.Second,
		CleanupInterval: time.Duration(raw.CleanupInterval) * time.Second,
		Port:            raw.Port,
		APIAccessKey:    raw.APIAccessKey,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		LogFormat:       raw.LogFormat,
		Version:         GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func validate(cfg *Cfg) error {
	if cfg.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if cfg.MaxItems <= 0 {
		return fmt.Errorf("max items must be positive, got %d", cfg.MaxItems)
	}
	if cfg.RecencyDays < 0 {
		return fmt.Errorf("recency days cannot be negative, got %d", cfg.RecencyDays)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if cfg.FetchRetries < 0 {
		return fmt.Errorf("fetch retries cannot be negative, got %d", cfg.FetchRetries)
	}
	if cfg.KeepPerKeyword <= 0 {
		return fmt.Errorf("keep per keyword must be positive, got %d", cfg.KeepPerKeyword)
	}
	if cfg.Job == JobServe && (cfg.CrawlInterval <= 0 || cfg.CleanupInterval <= 0) {
		return fmt.Errorf("crawl and cleanup intervals must be positive in serve mode")
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}

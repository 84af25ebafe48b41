package feed

import (
	"time"
)

// Candidate is one normalized feed entry ready for persistence.
type Candidate struct {
	Title string
	Link  string
	Body  string
	// PublishedAt is nil when the entry carried neither a published nor an
	// updated timestamp.
	PublishedAt *time.Time
}

type Metadata struct {
	Title    string
	Link     string
	Language string
}

type Extraction struct {
	Metadata   Metadata
	Candidates []Candidate
	Entries    int // entries considered after the item cap
	Skipped    int // entries dropped by the recency cutoff
	Malformed  bool
}

type Limits struct {
	MaxItems    int
	RecencyDays int
}

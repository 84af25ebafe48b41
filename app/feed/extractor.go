package feed

import (
	"context"
	"fmt"
	"log/slog"
)

// Extractor fetches a feed and turns it into candidates. When a content
// extractor is set, entries without a body get the readable text of their
// linked page instead.
type Extractor struct {
	fetcher          *Fetcher
	parser           *Parser
	contentExtractor *ContentExtractor
}

func NewExtractor(fetcher *Fetcher, parser *Parser, contentExtractor *ContentExtractor) *Extractor {
	return &Extractor{
		fetcher:          fetcher,
		parser:           parser,
		contentExtractor: contentExtractor,
	}
}

func (e *Extractor) Extract(ctx context.Context, sourceURL string, limits Limits) (*Extraction, error) {
	data, err := e.fetcher.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	result, err := e.parser.Run(data, limits)
	if err != nil {
		return nil, err
	}

	if result.Malformed {
		slog.WarnContext(ctx, "Feed document is malformed, using partial parse", "url", sourceURL)
	}

	if e.contentExtractor != nil {
		e.fillMissingBodies(ctx, result.Candidates)
	}

	return result, nil
}

func (e *Extractor) fillMissingBodies(ctx context.Context, candidates []Candidate) {
	for i := range candidates {
		if candidates[i].Body != "" || candidates[i].Link == "" {
			continue
		}

		page, err := e.fetcher.Fetch(ctx, candidates[i].Link)
		if err != nil {
			slog.DebugContext(ctx, "Article fetch failed", "link", candidates[i].Link, "error", err)
			continue
		}

		text, err := e.contentExtractor.Run(page, candidates[i].Link)
		if err != nil {
			slog.DebugContext(ctx, "Article extraction failed", "link", candidates[i].Link, "error", err)
			continue
		}

		candidates[i].Body = text
	}
}

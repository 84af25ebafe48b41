package feed

import (
	"bytes"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
	now          func() time.Time
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
		now:          time.Now,
	}
}

// Run parses a feed document and returns at most limits.MaxItems candidates in
// document order, minus entries outside the recency window. A document that
// only parses after dropping characters illegal in XML is flagged Malformed.
func (p *Parser) Run(data []byte, limits Limits) (*Extraction, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	malformed := false
	if err != nil {
		cleaned := stripInvalidXMLChars(data)
		if bytes.Equal(cleaned, data) {
			return nil, fmt.Errorf("failed to parse feed: %w", err)
		}
		parsed, err = p.gofeedParser.Parse(bytes.NewReader(cleaned))
		if err != nil {
			return nil, fmt.Errorf("failed to parse feed: %w", err)
		}
		malformed = true
	}

	result := &Extraction{
		Metadata: Metadata{
			Title:    Normalize(parsed.Title),
			Link:     parsed.Link,
			Language: parsed.Language,
		},
		Malformed: malformed,
	}

	items := parsed.Items
	if limits.MaxItems > 0 && len(items) > limits.MaxItems {
		items = items[:limits.MaxItems]
	}
	result.Entries = len(items)

	var cutoff time.Time
	if limits.RecencyDays > 0 {
		cutoff = p.now().AddDate(0, 0, -limits.RecencyDays)
	}

	result.Candidates = make([]Candidate, 0, len(items))
	for _, item := range items {
		if item == nil {
			result.Skipped++
			continue
		}

		candidate := p.normalizeItem(item)

		if !cutoff.IsZero() && (candidate.PublishedAt == nil || candidate.PublishedAt.Before(cutoff)) {
			result.Skipped++
			continue
		}

		result.Candidates = append(result.Candidates, candidate)
	}

	return result, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Candidate {
	candidate := Candidate{
		Title: Normalize(item.Title),
		Link:  item.Link,
	}

	// Atom summary and RSS description both land in Description.
	for _, raw := range []string{item.Description, item.Content} {
		if body := Normalize(raw); body != "" {
			candidate.Body = body
			break
		}
	}

	if item.PublishedParsed != nil {
		published := item.PublishedParsed.UTC()
		candidate.PublishedAt = &published
	} else if item.UpdatedParsed != nil {
		updated := item.UpdatedParsed.UTC()
		candidate.PublishedAt = &updated
	}

	return candidate
}

func stripInvalidXMLChars(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if isXMLChar(r) && !(r == utf8.RuneError && size == 1) {
			out = append(out, data[:size]...)
		}
		data = data[size:]
	}
	return out
}

func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

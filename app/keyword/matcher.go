package keyword

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/yongsang930/batchScript/app/database"
	"github.com/yongsang930/batchScript/app/feed"
)

const patternCacheSize = 2048

var _ database.KeywordMatcher = (*Matcher)(nil)

type Hit struct {
	KeywordID int64
	Strategy  string
}

// Matcher tags post text with keyword ids. It is safe for concurrent use.
type Matcher struct {
	entries    []entry
	strategies []Strategy
	patterns   *lru.Cache[string, *regexp.Regexp]
}

func NewMatcher(keywords []database.Keyword) *Matcher {
	return NewMatcherWithStrategies(keywords, DefaultStrategies)
}

func NewMatcherWithStrategies(keywords []database.Keyword, strategies []Strategy) *Matcher {
	// Only fails for a non-positive size.
	patterns, _ := lru.New[string, *regexp.Regexp](patternCacheSize)

	entries := make([]entry, 0, len(keywords))
	for _, kw := range keywords {
		e := entry{
			id: kw.ID,
			en: strings.ToLower(strings.TrimSpace(kw.EnName)),
			ko: strings.ToLower(strings.TrimSpace(kw.KoName)),
		}
		if e.en == "" && e.ko == "" {
			continue
		}
		entries = append(entries, e)
	}

	return &Matcher{
		entries:    entries,
		strategies: strategies,
		patterns:   patterns,
	}
}

func (m *Matcher) Len() int {
	return len(m.entries)
}

// Match returns the ids of all matching keywords, each at most once, in
// keyword order.
func (m *Matcher) Match(title, body string) []int64 {
	hits := m.Explain(title, body)
	if len(hits) == 0 {
		return nil
	}

	ids := make([]int64, len(hits))
	for i, hit := range hits {
		ids[i] = hit.KeywordID
	}
	return ids
}

// Explain is Match with the name of the strategy that fired for each keyword.
func (m *Matcher) Explain(title, body string) []Hit {
	title = strings.ToLower(feed.Normalize(title))
	body = strings.ToLower(feed.Normalize(body))
	if title == "" && body == "" {
		return nil
	}

	var hits []Hit
	for _, kw := range m.entries {
		for _, s := range m.strategies {
			if s.Applies(kw) && s.Match(m, kw, title, body) {
				hits = append(hits, Hit{KeywordID: kw.id, Strategy: s.Name})
				break
			}
		}
	}
	return hits
}

func (m *Matcher) anyWord(text string, words []string) bool {
	for _, w := range words {
		if m.wordPattern(w).MatchString(text) {
			return true
		}
	}
	return false
}

// wordPattern matches w when not touching another letter, digit or underscore.
func (m *Matcher) wordPattern(w string) *regexp.Regexp {
	if re, ok := m.patterns.Get(w); ok {
		return re
	}
	re := regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(w) + `(?:$|[^\p{L}\p{N}_])`)
	m.patterns.Add(w, re)
	return re
}

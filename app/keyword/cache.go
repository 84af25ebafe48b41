package keyword

import (
	"context"
	"fmt"
	"sync"

	"github.com/yongsang930/batchScript/app/database"
)

// Cache loads the active keyword set once and hands out the same Matcher
// afterwards. Create one per run so a later run sees keyword changes.
type Cache struct {
	repo database.KeywordRepository

	mu      sync.Mutex
	matcher *Matcher
}

func NewCache(repo database.KeywordRepository) *Cache {
	return &Cache{repo: repo}
}

// Matcher returns the run's matcher, loading keywords on first use. A failed
// load is not cached.
func (c *Cache) Matcher(ctx context.Context) (*Matcher, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.matcher != nil {
		return c.matcher, nil
	}

	keywords, err := c.repo.GetActiveKeywords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load keywords: %w", err)
	}

	c.matcher = NewMatcher(keywords)
	return c.matcher, nil
}
